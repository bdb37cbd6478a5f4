// Package github is the upstream client: a thin wrapper over go-github that
// turns provider responses into model types.
//
// Every call takes the caller's access token explicitly. There is no shared
// authenticated client, since each request acts for a different user.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v58/github"
	"github.com/sakif/repo-dashboard/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// rateBurst lets a page of stats calls or a multi-page listing go out
	// at once while the sustained rate stays under GitHub's 5000 req/hr.
	rateBurst = 50
	perPage   = 100
)

// Client talks to the GitHub REST API.
type Client struct {
	baseURL *url.URL // nil means api.github.com
	http    *http.Client
	logger  *slog.Logger
}

// New builds a Client. apiURL may be empty for github.com; requestsPerSecond
// of zero or less disables rate limiting.
func New(apiURL string, requestsPerSecond float64, logger *slog.Logger) (*Client, error) {
	c := &Client{logger: logger}

	if apiURL != "" {
		u, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("github: invalid API URL %q: %w", apiURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.baseURL = u
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	c.http = &http.Client{
		Transport: &limitedTransport{
			limiter: rate.NewLimiter(limit, rateBurst),
			base:    transport,
		},
		Timeout: 30 * time.Second,
	}
	return c, nil
}

// limitedTransport waits for a limiter slot before each request, so every
// page of a paginated listing is counted, not just the first call.
type limitedTransport struct {
	limiter *rate.Limiter
	base    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("github: rate limit: %w", err)
	}
	return t.base.RoundTrip(req)
}

// api returns a go-github client that authenticates as token. An empty token
// gives an anonymous client.
func (c *Client) api(ctx context.Context, token string) *gh.Client {
	httpClient := c.http
	if token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	client := gh.NewClient(httpClient)
	if c.baseURL != nil {
		u := *c.baseURL
		client.BaseURL = &u
	}
	return client
}

// Profile fetches the authenticated user. When the public profile has no
// email the primary verified address from /user/emails is used instead; a
// failure there is logged and leaves Email empty.
func (c *Client) Profile(ctx context.Context, token string) (*model.Profile, error) {
	client := c.api(ctx, token)

	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("github: fetching user: %w", err)
	}
	if u.GetID() == 0 {
		return nil, fmt.Errorf("github: user response has no id")
	}

	p := &model.Profile{
		ID:          strconv.FormatInt(u.GetID(), 10),
		Username:    u.GetLogin(),
		Name:        u.GetName(),
		Email:       u.GetEmail(),
		Avatar:      u.GetAvatarURL(),
		Bio:         u.GetBio(),
		Followers:   u.GetFollowers(),
		Following:   u.GetFollowing(),
		PublicRepos: u.GetPublicRepos(),
		Provider:    model.ProviderGitHub,
	}
	if p.Name == "" {
		p.Name = p.Username
	}

	if p.Email == "" {
		email, err := c.primaryEmail(ctx, client)
		if err != nil {
			c.logger.Warn("could not fetch user emails",
				slog.String("login", p.Username),
				slog.String("error", err.Error()),
			)
		}
		p.Email = email
	}

	return p, nil
}

func (c *Client) primaryEmail(ctx context.Context, client *gh.Client) (string, error) {
	emails, _, err := client.Users.ListEmails(ctx, &gh.ListOptions{PerPage: perPage})
	if err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	return "", nil
}

// ListRepos returns every repository the user can access, most recently
// updated first, following pagination to the end.
func (c *Client) ListRepos(ctx context.Context, token string) ([]model.Repository, error) {
	client := c.api(ctx, token)
	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	var out []model.Repository
	for {
		repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("github: listing repositories (page %d): %w", opts.Page, err)
		}
		for _, r := range repos {
			out = append(out, toRepository(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func toRepository(r *gh.Repository) model.Repository {
	return model.Repository{
		ID:            strconv.FormatInt(r.GetID(), 10),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		URL:           r.GetHTMLURL(),
		CloneURL:      r.GetCloneURL(),
		Stars:         r.GetStargazersCount(),
		DefaultBranch: r.GetDefaultBranch(),
		Private:       r.GetPrivate(),
		UpdatedAt:     r.GetUpdatedAt().Time.UTC(),
	}
}

// Followers returns everyone following the authenticated user.
func (c *Client) Followers(ctx context.Context, token string) ([]model.Contact, error) {
	client := c.api(ctx, token)
	return collectUsers(ctx, "followers", func(opts *gh.ListOptions) ([]*gh.User, *gh.Response, error) {
		return client.Users.ListFollowers(ctx, "", opts)
	})
}

// Following returns everyone the authenticated user follows.
func (c *Client) Following(ctx context.Context, token string) ([]model.Contact, error) {
	client := c.api(ctx, token)
	return collectUsers(ctx, "following", func(opts *gh.ListOptions) ([]*gh.User, *gh.Response, error) {
		return client.Users.ListFollowing(ctx, "", opts)
	})
}

func collectUsers(ctx context.Context, what string, list func(*gh.ListOptions) ([]*gh.User, *gh.Response, error)) ([]model.Contact, error) {
	opts := &gh.ListOptions{PerPage: perPage}
	out := []model.Contact{}
	for {
		users, resp, err := list(opts)
		if err != nil {
			return nil, fmt.Errorf("github: listing %s: %w", what, err)
		}
		for _, u := range users {
			out = append(out, model.Contact{
				ID:       strconv.FormatInt(u.GetID(), 10),
				Username: u.GetLogin(),
				Avatar:   u.GetAvatarURL(),
			})
		}
		if resp.NextPage == 0 || ctx.Err() != nil {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, ctx.Err()
}
