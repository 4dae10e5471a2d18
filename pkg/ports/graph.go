package ports

import "github.com/aretw0/branchtale/pkg/domain"

// StoryGraph provides read-only access to a predefined story.
// Implementations validate referential integrity once, at load time.
type StoryGraph interface {
	// NodeByID returns the node or an error wrapping domain.ErrNodeNotFound.
	NodeByID(id string) (domain.StoryNode, error)

	// ChoicesOf returns the node's choices in authoring order.
	ChoicesOf(node domain.StoryNode) []domain.Choice
}
