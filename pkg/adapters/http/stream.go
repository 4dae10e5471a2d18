package http

import (
	"encoding/json"
	"sync"

	"github.com/aretw0/branchtale/pkg/domain"
)

// StreamManager fans session diffs out to SSE subscribers.
// It remembers the last snapshot published per user so each event only
// carries what changed.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // UserID -> set of channels
	last        map[string]*domain.Session
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		last:        make(map[string]*domain.Session),
	}
}

// Subscribe registers a channel for userID. The returned func unsubscribes and closes it.
func (sm *StreamManager) Subscribe(userID string) (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[userID]; !ok {
		sm.subscribers[userID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[userID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[userID]; ok {
			if _, ok := subs[ch]; !ok {
				return
			}
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, userID)
			}
		}
	}
}

// Reset forgets the last snapshot for userID, so the next Publish sends the whole session.
func (sm *StreamManager) Reset(userID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.last, userID)
}

// Publish broadcasts the diff between the last published snapshot of s's user and s.
// Ended sessions are forgotten after their final diff.
func (sm *StreamManager) Publish(s *domain.Session) {
	if s == nil {
		return
	}

	sm.mu.Lock()
	diff := domain.Diff(sm.last[s.UserID], s)
	if s.IsActive() {
		sm.last[s.UserID] = s.Clone()
	} else {
		delete(sm.last, s.UserID)
	}
	sm.mu.Unlock()

	if diff == nil {
		return
	}
	payload, err := json.Marshal(diff)
	if err != nil {
		return
	}
	sm.Broadcast(s.UserID, string(payload))
}

// Broadcast sends msg to every subscriber of userID, dropping it for slow clients.
func (sm *StreamManager) Broadcast(userID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[userID] {
		select {
		case ch <- msg:
		default:
		}
	}
}
