package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart    EventType = "session_start"
	EventSessionAdvance  EventType = "session_advance"
	EventSessionEnd      EventType = "session_end"
	EventChoicesSelected EventType = "choices_selected"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
}

// SessionEvent describes a lifecycle transition of a Session.
type SessionEvent struct {
	EventBase
	Mode   SessionMode `json:"mode"`
	NodeID string      `json:"node_id,omitempty"`
	Ended  bool        `json:"ended,omitempty"`
}

// SelectionEvent describes one ChoiceSet computation.
type SelectionEvent struct {
	EventBase
	Mode     SessionMode   `json:"mode"`
	Attempts int           `json:"attempts"`
	Padded   int           `json:"padded"` // Fallback choices used to reach ChoiceSetSize
	Duration time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
// Hooks run synchronously on the calling goroutine; nil hooks are skipped.
type LifecycleHooks struct {
	OnSessionStart    func(context.Context, *SessionEvent)
	OnAdvance         func(context.Context, *SessionEvent)
	OnSessionEnd      func(context.Context, *SessionEvent)
	OnChoicesSelected func(context.Context, *SelectionEvent)
}
