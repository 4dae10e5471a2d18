package domain

import "errors"

// ErrInvalidInput is returned for empty prompts, unknown node IDs and empty or unknown choices.
// Session state is left unchanged.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoActiveSession is returned when an advancement targets a user without an active session.
var ErrNoActiveSession = errors.New("no active session")

// ErrPersistence wraps storage failures surfaced by a ProgressStore.
// The in-memory session may be ahead of the stored one; callers should retry.
var ErrPersistence = errors.New("persistence failure")

// ErrSessionNotFound is returned when a user ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNodeNotFound is returned when a story node ID does not exist in the graph.
var ErrNodeNotFound = errors.New("story node not found")

// ErrInvalidGraph is returned when a story graph fails its load-time integrity check.
var ErrInvalidGraph = errors.New("invalid story graph")
