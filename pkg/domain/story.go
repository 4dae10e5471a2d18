package domain

// MaxChoicesPerNode bounds how many choices a predefined node may offer.
const MaxChoicesPerNode = 3

// StoryNode represents a fixed point in a predefined story graph.
// Nodes are immutable once the graph is loaded.
type StoryNode struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Prompt string `json:"prompt" yaml:"prompt"`

	// Choices are kept in authoring order.
	Choices []Choice `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Choice is one selectable continuation of a StoryNode.
type Choice struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Text    string `json:"text" yaml:"text"`
	Outcome string `json:"outcome,omitempty" yaml:"outcome,omitempty"`

	// Next is the successor node ID. Empty marks a terminal choice.
	Next string `json:"next,omitempty" yaml:"next,omitempty"`
}

// IsTerminal reports whether picking this choice ends the story.
func (c Choice) IsTerminal() bool {
	return c.Next == ""
}
