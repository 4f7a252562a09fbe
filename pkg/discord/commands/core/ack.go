package core

import "sync"

// AckState tracks how far an interaction has been acknowledged. States only
// advance, never reverse: none -> deferred|replied -> followed-up.
type AckState int

const (
	AckNone AckState = iota
	AckDeferred
	AckReplied
	AckFollowedUp
)

func (s AckState) String() string {
	switch s {
	case AckNone:
		return "none"
	case AckDeferred:
		return "deferred"
	case AckReplied:
		return "replied"
	case AckFollowedUp:
		return "followed-up"
	default:
		return "unknown"
	}
}

// AckTracker carries the acknowledgement state alongside an interaction handle.
// Every response helper consults it before calling the API, so a handler can
// never acknowledge the same interaction twice.
type AckTracker struct {
	mu    sync.Mutex
	state AckState
}

// NewAckTracker returns a tracker in the unacknowledged state.
func NewAckTracker() *AckTracker {
	return &AckTracker{}
}

// State returns the current acknowledgement state.
func (t *AckTracker) State() AckState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// MarkDeferred transitions none -> deferred. Reports whether the transition
// was taken.
func (t *AckTracker) MarkDeferred() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != AckNone {
		return false
	}
	t.state = AckDeferred
	return true
}

// MarkReplied transitions none -> replied. Reports whether the transition
// was taken.
func (t *AckTracker) MarkReplied() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != AckNone {
		return false
	}
	t.state = AckReplied
	return true
}

// MarkFollowedUp records a follow-up message. Only valid once the interaction
// has been deferred or replied to.
func (t *AckTracker) MarkFollowedUp() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == AckNone {
		return false
	}
	t.state = AckFollowedUp
	return true
}

// Acknowledged reports whether any initial ack has happened.
func (t *AckTracker) Acknowledged() bool {
	return t.State() != AckNone
}
