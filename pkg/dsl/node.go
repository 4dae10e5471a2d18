package dsl

import (
	"fmt"

	"github.com/aretw0/branchtale/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a story node.
type NodeBuilder struct {
	node domain.StoryNode
}

// Title sets the display title of the node.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	return n
}

// Prompt sets the body text shown when the node is entered.
func (n *NodeBuilder) Prompt(text string) *NodeBuilder {
	n.node.Prompt = text
	return n
}

// Choice adds a choice leading to the target node.
func (n *NodeBuilder) Choice(text, outcome, next string) *NodeBuilder {
	n.node.Choices = append(n.node.Choices, domain.Choice{
		ID:      fmt.Sprintf("%s.%d", n.node.ID, len(n.node.Choices)+1),
		Text:    text,
		Outcome: outcome,
		Next:    next,
	})
	return n
}

// End adds a terminal choice: picking it ends the story.
func (n *NodeBuilder) End(text, outcome string) *NodeBuilder {
	return n.Choice(text, outcome, "")
}

// Build returns the underlying domain.StoryNode.
func (n *NodeBuilder) Build() domain.StoryNode {
	node := n.node
	node.Choices = append([]domain.Choice(nil), n.node.Choices...)
	return node
}
