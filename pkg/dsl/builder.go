package dsl

import (
	"fmt"

	"github.com/aretw0/branchtale/pkg/domain"
	"github.com/aretw0/branchtale/pkg/graph"
)

// Builder manages the story construction.
type Builder struct {
	nodes map[string]*NodeBuilder
	order []string
}

// New creates a new story builder.
func New() *Builder {
	return &Builder{
		nodes: make(map[string]*NodeBuilder),
	}
}

// Add creates a new node in the story.
// If the node already exists, it returns the existing builder.
func (b *Builder) Add(id string) *NodeBuilder {
	if nb, ok := b.nodes[id]; ok {
		return nb
	}
	nb := &NodeBuilder{
		node: domain.StoryNode{
			ID: id,
		},
	}
	b.nodes[id] = nb
	b.order = append(b.order, id)
	return nb
}

// Nodes returns the nodes in insertion order.
func (b *Builder) Nodes() []domain.StoryNode {
	nodes := make([]domain.StoryNode, 0, len(b.order))
	for _, id := range b.order {
		nodes = append(nodes, b.nodes[id].Build())
	}
	return nodes
}

// Build validates the story and compiles it into a Graph.
func (b *Builder) Build() (*graph.Graph, error) {
	g, err := graph.New(b.Nodes()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build story graph: %w", err)
	}
	return g, nil
}

// MustBuild is like Build but panics on error. Intended for tests and fixtures.
func (b *Builder) MustBuild() *graph.Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}
