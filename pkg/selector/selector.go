// Package selector turns raw continuation candidates into a ChoiceSet of exactly
// three unique, usable choices, whatever the source and however flaky it is.
package selector

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/branchtale/internal/logging"
	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/ports"
)

// ContinuationPrompt is appended to the narrative before asking a generator for candidates.
const ContinuationPrompt = "\nProvide one creative continuation:"

// AttemptOutcome classifies one generator round-trip.
type AttemptOutcome string

const (
	OutcomeAccepted AttemptOutcome = "accepted" // At least one new candidate accepted
	OutcomeRejected AttemptOutcome = "rejected" // Candidates returned, none usable
	OutcomeEmpty    AttemptOutcome = "empty"    // No candidates returned
	OutcomeError    AttemptOutcome = "error"    // Generator returned an error
	OutcomeTimeout  AttemptOutcome = "timeout"  // Attempt deadline exceeded
)

// AttemptEvent describes one generator round-trip.
type AttemptEvent struct {
	Attempt  int
	Outcome  AttemptOutcome
	Proposed int
	Accepted int
	Duration time.Duration
}

// Hooks defines callbacks for selector observability.
type Hooks struct {
	OnAttempt func(context.Context, *AttemptEvent)
}

// Result is a selected ChoiceSet plus how it was obtained.
type Result struct {
	Choices  domain.ChoiceSet
	Attempts int
	Padded   int
}

// Selector implements the bounded, set-based acceptance loop.
// It is stateless between calls and safe for concurrent use.
type Selector struct {
	maxAttempts    int
	attemptTimeout time.Duration
	maxLength      int
	fallbacks      []string
	logger         *slog.Logger
	hooks          Hooks
}

// New creates a Selector with the given options.
func New(opts ...Option) *Selector {
	s := &Selector{
		maxAttempts:    DefaultMaxAttempts,
		attemptTimeout: DefaultAttemptTimeout,
		maxLength:      domain.MaxGeneratedChoiceLength,
		fallbacks:      domain.DefaultFallbackChoices,
		logger:         logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAttempts returns the configured generative attempt ceiling.
func (s *Selector) MaxAttempts() int {
	return s.maxAttempts
}

// FromGraph selects from a node's authored choices in a single deterministic attempt.
// Authored choices are exempt from the generated-length ceiling.
func (s *Selector) FromGraph(choices []domain.Choice) Result {
	acc := newAccumulator()
	for _, c := range choices {
		if acc.full() {
			break
		}
		acc.offer(c.Text, 0)
	}
	return s.finish(acc, 1)
}

// FromGenerator asks gen for candidates until three are accepted or attempts run out.
// It never fails: errors, timeouts and short batches count as failed attempts and the
// result is padded from the fallback list.
func (s *Selector) FromGenerator(ctx context.Context, gen ports.ChoiceGenerator, narrative string) Result {
	acc := newAccumulator()
	prefix := narrative + ContinuationPrompt

	attempts := 0
	for attempts < s.maxAttempts && !acc.full() {
		if ctx.Err() != nil {
			s.logger.Debug("choice selection canceled", "attempt", attempts, "err", ctx.Err())
			break
		}
		attempts++

		start := time.Now()
		candidates, err := s.propose(ctx, gen, prefix, domain.ChoiceSetSize-acc.len())

		event := &AttemptEvent{
			Attempt:  attempts,
			Proposed: len(candidates),
		}
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			event.Outcome = OutcomeTimeout
		case err != nil:
			event.Outcome = OutcomeError
		default:
			for _, c := range candidates {
				if acc.offer(c, s.maxLength) {
					event.Accepted++
				}
			}
			switch {
			case event.Accepted > 0:
				event.Outcome = OutcomeAccepted
			case len(candidates) == 0:
				event.Outcome = OutcomeEmpty
			default:
				event.Outcome = OutcomeRejected
			}
		}
		event.Duration = time.Since(start)

		if err != nil {
			s.logger.Warn("choice generator attempt failed", "attempt", attempts, "err", err)
		}
		if s.hooks.OnAttempt != nil {
			s.hooks.OnAttempt(ctx, event)
		}
	}

	return s.finish(acc, attempts)
}

// propose runs one generator call bounded by the attempt timeout.
// The call runs on its own goroutine so a generator that ignores its context
// still cannot hold the loop past the deadline.
func (s *Selector) propose(ctx context.Context, gen ports.ChoiceGenerator, prefix string, count int) ([]string, error) {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	type reply struct {
		candidates []string
		err        error
	}
	done := make(chan reply, 1)
	go func() {
		candidates, err := gen.Propose(ctx, prefix, count)
		done <- reply{candidates: candidates, err: err}
	}()

	select {
	case r := <-done:
		return r.candidates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish pads the accepted set up to a full ChoiceSet.
func (s *Selector) finish(acc *accumulator, attempts int) Result {
	accepted := acc.len()
	for _, pool := range [][]string{s.fallbacks, domain.DefaultFallbackChoices} {
		for _, f := range pool {
			if acc.full() {
				break
			}
			acc.offer(f, 0)
		}
	}

	padded := acc.len() - accepted
	if padded > 0 {
		s.logger.Debug("choice set padded with fallbacks", "padded", padded, "attempts", attempts)
	}
	return Result{
		Choices:  domain.ChoiceSet(acc.items),
		Attempts: attempts,
		Padded:   padded,
	}
}

// accumulator keeps accepted candidates in insertion order, unique by trimmed text.
type accumulator struct {
	items []string
	seen  map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{
		items: make([]string, 0, domain.ChoiceSetSize),
		seen:  make(map[string]bool, domain.ChoiceSetSize),
	}
}

// offer accepts candidate if it is long enough, shorter than maxLength (0 disables the
// ceiling), not yet accepted, and there is room left.
func (a *accumulator) offer(candidate string, maxLength int) bool {
	if a.full() {
		return false
	}
	text := strings.TrimSpace(candidate)
	n := domain.ChoiceLength(text)
	if n <= domain.MinChoiceLength {
		return false
	}
	if maxLength > 0 && n >= maxLength {
		return false
	}
	if a.seen[text] {
		return false
	}
	a.seen[text] = true
	a.items = append(a.items, text)
	return true
}

func (a *accumulator) len() int {
	return len(a.items)
}

func (a *accumulator) full() bool {
	return len(a.items) >= domain.ChoiceSetSize
}
