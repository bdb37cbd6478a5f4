package view

import "time"

// TypingTimeout is how long "is typing" stays visible after the last event.
const TypingTimeout = 3 * time.Second

// TypingIndicator tracks the last typing event per contact. Times are passed
// in so the chat loop and tests share one clock.
type TypingIndicator struct {
	timeout time.Duration
	last    map[string]time.Time
}

func NewTypingIndicator(timeout time.Duration) *TypingIndicator {
	if timeout <= 0 {
		timeout = TypingTimeout
	}
	return &TypingIndicator{timeout: timeout, last: make(map[string]time.Time)}
}

// Touch records a typing event from userID at time at.
func (ti *TypingIndicator) Touch(userID string, at time.Time) {
	ti.last[userID] = at
}

// Clear hides the indicator, e.g. when the user's message arrives.
func (ti *TypingIndicator) Clear(userID string) {
	delete(ti.last, userID)
}

// Visible reports whether userID typed within the timeout before now.
func (ti *TypingIndicator) Visible(userID string, now time.Time) bool {
	at, ok := ti.last[userID]
	if !ok {
		return false
	}
	return now.Sub(at) < ti.timeout
}
