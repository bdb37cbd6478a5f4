// Package service holds the business rules. Handlers and the websocket relay
// call into it; it calls the repositories and the upstream client through
// the interfaces below.
//
//	Handler (HTTP) ─┐
//	                ├→ Service → repository.* (SQLite / Redis)
//	Relay (ws) ─────┘          ↘ upstream (GitHub REST)
//	                           ↘ linecount.Runner
//
// Services never see an http.Request. They take a *model.Principal when the
// operation acts for a user, and return *apperror.AppError values the
// handler layer maps to status codes.
package service

import (
	"context"

	"github.com/sakif/repo-dashboard/internal/linecount"
	"github.com/sakif/repo-dashboard/internal/model"
)

// OAuthProvider performs the authorization code exchange.
// *auth.GitHubProvider satisfies it.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// ProfileFetcher loads the authenticated user's profile.
type ProfileFetcher interface {
	Profile(ctx context.Context, token string) (*model.Profile, error)
}

// RepoUpstream lists repositories and computes their stats.
type RepoUpstream interface {
	ListRepos(ctx context.Context, token string) ([]model.Repository, error)
	RepoStats(ctx context.Context, token, fullName string) (model.RepoStats, error)
}

// ContactsUpstream lists the user's social graph.
type ContactsUpstream interface {
	Followers(ctx context.Context, token string) ([]model.Contact, error)
	Following(ctx context.Context, token string) ([]model.Contact, error)
}

// LineRunner runs line-count jobs in the background. *linecount.Runner
// satisfies it.
type LineRunner interface {
	Submit(job linecount.Job, cb linecount.Callbacks) error
}
