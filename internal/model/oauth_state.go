package model

import "time"

// OAuthState correlates a login start with its callback.
type OAuthState struct {
	State     string
	CreatedAt time.Time
}

// OAuthStateTTL is how long a state remains usable after creation.
const OAuthStateTTL = 5 * time.Minute

// Expired reports whether the state is past its window at time now.
func (s OAuthState) Expired(now time.Time) bool {
	return now.Sub(s.CreatedAt) > OAuthStateTTL
}
