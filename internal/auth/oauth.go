package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// Scopes requested at login. "repo" is needed for private repositories and
// for the stats and clone calls made on the user's behalf.
var Scopes = []string{"read:user", "user:email", "repo"}

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub authorization code
// flow. It only deals with the code-for-token exchange; profile and
// repository calls go through internal/github with the resulting token.
//
// WHY SERVER-SIDE EXCHANGE?
// The exchange needs the client secret, which must never ship to a browser
// or a CLI binary. The client only ever sees the code.
type GitHubProvider struct {
	config *oauth2.Config
}

// NewGitHubProvider creates a provider for the github.com endpoints.
//
// callbackURL must match the "Authorization callback URL" registered for the
// OAuth app exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return NewGitHubProviderWithEndpoint(clientID, clientSecret, callbackURL, github.Endpoint)
}

// NewGitHubProviderWithEndpoint is NewGitHubProvider against custom endpoints
// (GitHub Enterprise, or an httptest server).
func NewGitHubProviderWithEndpoint(clientID, clientSecret, callbackURL string, endpoint oauth2.Endpoint) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       Scopes,
			Endpoint:     endpoint,
		},
	}
}

// AuthURL returns the provider authorization URL carrying state.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an access token. GitHub answers
// a bad code with HTTP 200 and an "error" field; oauth2 turns that into a
// *oauth2.RetrieveError, so it surfaces here as an error too.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("auth: token response had no access_token")
	}
	return tok.AccessToken, nil
}
