// Package model defines the data structures used throughout the application.
package model

// Profile is the authenticated user's provider profile as carried inside the
// session token and returned by /api/auth/me.
//
// The provider access token is NOT a field here: it travels
// separately in the token claims and is never serialised to clients.
type Profile struct {
	ID          string `json:"id"`       // provider user id, decimal string
	Username    string `json:"username"` // provider login
	Name        string `json:"name"`     // display name, falls back to login
	Email       string `json:"email"`    // primary verified email, may be empty
	Avatar      string `json:"avatar"`
	Bio         string `json:"bio"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"publicRepos"`
	Provider    string `json:"provider"`
}

// Principal is the decoded session: the profile plus the provider credential.
type Principal struct {
	Profile
	AccessToken string `json:"-"`
}

// Contact is the minimal shape of a follower/following entry.
type Contact struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ProviderGitHub is the only provider currently supported.
const ProviderGitHub = "github"
