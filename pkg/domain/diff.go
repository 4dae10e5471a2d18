package domain

// SessionDiff represents the changes between two snapshots of a Session.
// It is designed to be serialized to JSON for partial updates on the client.
type SessionDiff struct {
	// UserID is always present to identify the target.
	UserID string `json:"user_id"`

	CurrentNodeID *string        `json:"current_node_id,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`

	// Appended contains only the narrative segments added since the old snapshot.
	Appended []string `json:"appended,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession (initial load).
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{
		UserID: newSession.UserID,
	}

	if oldSession == nil || oldSession.CurrentNodeID != newSession.CurrentNodeID {
		node := newSession.CurrentNodeID
		diff.CurrentNodeID = &node
	}
	if oldSession == nil || oldSession.Status != newSession.Status {
		status := newSession.Status
		diff.Status = &status
	}
	diff.Appended = diffNarrative(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

// diffNarrative relies on the append-only narrative invariant.
func diffNarrative(old, new *Session) []string {
	if old == nil {
		if len(new.Narrative) == 0 {
			return nil
		}
		return append([]string(nil), new.Narrative...)
	}
	if len(new.Narrative) <= len(old.Narrative) {
		return nil
	}
	return append([]string(nil), new.Narrative[len(old.Narrative):]...)
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentNodeID == nil &&
		d.Status == nil &&
		len(d.Appended) == 0
}
