// Package graph holds the static, validated story graph used in graph mode.
package graph

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/aretw0/branchtale/pkg/domain"
)

// IntegrityError lists every problem found while validating a story graph.
type IntegrityError struct {
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("found %d errors:\n- %s", len(e.Problems), strings.Join(e.Problems, "\n- "))
}

// Unwrap lets callers match the error with errors.Is(err, domain.ErrInvalidGraph).
func (e *IntegrityError) Unwrap() error {
	return domain.ErrInvalidGraph
}

// Graph implements ports.StoryGraph over an immutable in-memory node set.
// Safe for concurrent use: it is never mutated after New returns.
type Graph struct {
	nodes   map[string]domain.StoryNode
	ids     []string
	entries []string
}

// New validates the nodes and builds a Graph.
// Referential integrity is checked once here, never per traversal.
func New(nodes ...domain.StoryNode) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]domain.StoryNode, len(nodes)),
	}

	var problems []string
	for _, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			problems = append(problems, "node with empty ID")
			continue
		}
		if _, dup := g.nodes[n.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node ID '%s'", n.ID))
			continue
		}
		if strings.TrimSpace(n.Prompt) == "" {
			problems = append(problems, fmt.Sprintf("node '%s' has an empty prompt", n.ID))
		}
		if len(n.Choices) > domain.MaxChoicesPerNode {
			problems = append(problems, fmt.Sprintf("node '%s' has %d choices (max %d)", n.ID, len(n.Choices), domain.MaxChoicesPerNode))
		}
		g.nodes[n.ID] = copyNode(n)
		g.ids = append(g.ids, n.ID)
	}
	sort.Strings(g.ids)

	referenced := make(map[string]bool)
	for _, id := range g.ids {
		seen := make(map[string]bool)
		for i, c := range g.nodes[id].Choices {
			text := strings.TrimSpace(c.Text)
			if domain.ChoiceLength(text) <= domain.MinChoiceLength {
				problems = append(problems, fmt.Sprintf("node '%s' choice #%d text '%s' must be longer than %d characters", id, i+1, text, domain.MinChoiceLength))
			}
			if seen[text] {
				problems = append(problems, fmt.Sprintf("node '%s' repeats choice '%s'", id, text))
			}
			seen[text] = true
			if c.IsTerminal() {
				continue
			}
			if _, ok := g.nodes[c.Next]; !ok {
				problems = append(problems, fmt.Sprintf("node '%s' choice '%s' points to missing node '%s'", id, c.Text, c.Next))
				continue
			}
			if c.Next != id {
				referenced[c.Next] = true
			}
		}
	}

	if len(problems) > 0 {
		return nil, &IntegrityError{Problems: problems}
	}

	for _, id := range g.ids {
		if !referenced[id] {
			g.entries = append(g.entries, id)
		}
	}
	return g, nil
}

// NodeByID retrieves a node by ID.
func (g *Graph) NodeByID(id string) (domain.StoryNode, error) {
	n, ok := g.nodes[id]
	if !ok {
		return domain.StoryNode{}, fmt.Errorf("%w: %s", domain.ErrNodeNotFound, id)
	}
	return copyNode(n), nil
}

// ChoicesOf returns the node's choices in authoring order.
func (g *Graph) ChoicesOf(node domain.StoryNode) []domain.Choice {
	stored, ok := g.nodes[node.ID]
	if !ok {
		return nil
	}
	return append([]domain.Choice(nil), stored.Choices...)
}

// Nodes returns every node sorted by ID.
func (g *Graph) Nodes() []domain.StoryNode {
	out := make([]domain.StoryNode, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, copyNode(g.nodes[id]))
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Entries lists the nodes no choice leads to, i.e. the story openers.
func (g *Graph) Entries() []string {
	return append([]string(nil), g.entries...)
}

// RandomEntry picks one opener. When every node is reachable from another
// (a fully cyclic story) it picks among all nodes.
func (g *Graph) RandomEntry(r *rand.Rand) (domain.StoryNode, error) {
	pool := g.entries
	if len(pool) == 0 {
		pool = g.ids
	}
	if len(pool) == 0 {
		return domain.StoryNode{}, fmt.Errorf("%w: graph is empty", domain.ErrNodeNotFound)
	}
	var idx int
	if r != nil {
		idx = r.IntN(len(pool))
	} else {
		idx = rand.IntN(len(pool))
	}
	return copyNode(g.nodes[pool[idx]]), nil
}

func copyNode(n domain.StoryNode) domain.StoryNode {
	n.Choices = append([]domain.Choice(nil), n.Choices...)
	return n
}
