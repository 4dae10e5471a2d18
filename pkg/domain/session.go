package domain

import (
	"time"
)

// SessionStatus defines the lifecycle stage of a Session.
type SessionStatus string

const (
	StatusActive SessionStatus = "active" // Accepting advancements
	StatusEnded  SessionStatus = "ended"  // Sink state, irreversible
)

// SessionMode tells where the next choices come from.
type SessionMode string

const (
	ModeGraph      SessionMode = "graph"      // Predefined StoryNode choices
	ModeGenerative SessionMode = "generative" // Free-text continuation via a ChoiceGenerator
)

// Session is one user's in-progress or concluded story traversal.
type Session struct {
	UserID string `json:"user_id"`

	// CurrentNodeID is empty in generative mode and once a graph story has ended.
	CurrentNodeID string `json:"current_node_id,omitempty"`

	Mode   SessionMode   `json:"mode"`
	Status SessionStatus `json:"status"`

	// Narrative is append-only. Segments are never rewritten or removed.
	Narrative []string `json:"narrative"`

	// Path records the graph nodes visited, in order.
	Path []string `json:"path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGenerativeSession creates an active free-text session seeded with the user prompt.
func NewGenerativeSession(userID, prompt string, now time.Time) *Session {
	return &Session{
		UserID:    userID,
		Mode:      ModeGenerative,
		Status:    StatusActive,
		Narrative: []string{prompt},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewGraphSession creates an active session positioned at the given node.
func NewGraphSession(userID string, node StoryNode, now time.Time) *Session {
	return &Session{
		UserID:        userID,
		CurrentNodeID: node.ID,
		Mode:          ModeGraph,
		Status:        StatusActive,
		Narrative:     []string{node.Prompt},
		Path:          []string{node.ID},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the session still accepts advancements.
func (s *Session) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// Append adds one narrative segment.
func (s *Session) Append(segment string) {
	s.Narrative = append(s.Narrative, segment)
}

// End marks the session as ended. It is a no-op on an already ended session.
func (s *Session) End(now time.Time) {
	if s.Status == StatusEnded {
		return
	}
	s.Status = StatusEnded
	s.CurrentNodeID = ""
	s.UpdatedAt = now
}

// Clone returns a deep copy so callers and stores never share slices.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Narrative = append([]string(nil), s.Narrative...)
	if s.Path != nil {
		c.Path = append([]string(nil), s.Path...)
	}
	return &c
}
