// Package scripted provides a deterministic ChoiceGenerator that replays
// pre-recorded candidate batches. It backs offline play and tests.
package scripted

import (
	"context"
	"sync"
)

// Generator returns one scripted batch per Propose call, in order.
// When Loop is set it starts over after the last batch, otherwise it
// returns no candidates once exhausted.
type Generator struct {
	mu      sync.Mutex
	batches [][]string
	next    int
	calls   []string

	Loop bool
}

// New creates a Generator from the given batches.
func New(batches ...[]string) *Generator {
	return &Generator{batches: batches}
}

// NewLooping creates a Generator that cycles through its batches forever.
func NewLooping(batches ...[]string) *Generator {
	g := New(batches...)
	g.Loop = true
	return g
}

// Propose returns at most count candidates from the next batch.
func (g *Generator) Propose(ctx context.Context, narrativePrefix string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, narrativePrefix)
	if g.next >= len(g.batches) {
		if !g.Loop || len(g.batches) == 0 {
			return nil, nil
		}
		g.next = 0
	}
	batch := g.batches[g.next]
	g.next++

	if count < len(batch) {
		batch = batch[:count]
	}
	return append([]string(nil), batch...), nil
}

// Calls returns the narrative prefixes received so far.
func (g *Generator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}
