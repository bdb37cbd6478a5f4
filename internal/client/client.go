// Package client is the terminal frontend's connection to the API server:
// typed calls for every HTTP endpoint, the websocket relay connection, and
// the on-disk session that holds the bearer token between runs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/repo-dashboard/internal/model"
)

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	Status  int
	Type    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("client: HTTP %d", e.Status)
	}
	return fmt.Sprintf("client: HTTP %d: %s", e.Status, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server, meaning the
// session token is missing, expired or forged and the user has to log in
// again.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client calls the dashboard API. A zero token is fine for the login calls.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:5000".
// The line-count endpoint can take minutes, so the HTTP timeout is generous.
func New(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL %q must be http or https", baseURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// LoginStart is the response of GET /api/auth/github.
type LoginStart struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

// AuthResult is the response of POST /api/auth/github/callback.
type AuthResult struct {
	Token string        `json:"token"`
	User  model.Profile `json:"user"`
}

func (c *Client) StartLogin(ctx context.Context) (*LoginStart, error) {
	var out LoginStart
	if err := c.do(ctx, http.MethodGet, "/api/auth/github", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Callback(ctx context.Context, code, state string) (*AuthResult, error) {
	in := map[string]string{"code": code, "state": state}
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/github/callback", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Me(ctx context.Context) (*model.Profile, error) {
	var out model.Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Repos(ctx context.Context) ([]model.Repository, error) {
	var out []model.Repository
	err := c.do(ctx, http.MethodGet, "/api/repos", nil, &out)
	return out, err
}

func (c *Client) ToggleAutoReview(ctx context.Context, repoID string) (bool, error) {
	var out struct {
		AutoReview bool `json:"autoReview"`
	}
	err := c.do(ctx, http.MethodPost, "/api/repos/"+url.PathEscape(repoID)+"/toggle-auto-review", nil, &out)
	return out.AutoReview, err
}

func (c *Client) Stats(ctx context.Context, repoID string) (model.RepoStats, error) {
	var out model.RepoStats
	err := c.do(ctx, http.MethodGet, "/api/repos/"+url.PathEscape(repoID)+"/stats", nil, &out)
	return out, err
}

func (c *Client) Lines(ctx context.Context, repoID string) (int64, error) {
	var out struct {
		TotalLines int64 `json:"totalLines"`
	}
	err := c.do(ctx, http.MethodGet, "/api/repos/"+url.PathEscape(repoID)+"/lines", nil, &out)
	return out.TotalLines, err
}

// StartLineJob queues a count; poll LineJob with the returned id.
func (c *Client) StartLineJob(ctx context.Context, repoID string) (*model.LineJob, error) {
	var out model.LineJob
	if err := c.do(ctx, http.MethodPost, "/api/repos/"+url.PathEscape(repoID)+"/lines/jobs", nil, &out); err != nil {
		return nil, err
	}
	out.RepoID = repoID
	return &out, nil
}

func (c *Client) LineJob(ctx context.Context, jobID string) (*model.LineJob, error) {
	var out model.LineJob
	if err := c.do(ctx, http.MethodGet, "/api/line-jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Messages(ctx context.Context, contactID string) ([]model.Message, error) {
	var out []model.Message
	err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(contactID), nil, &out)
	return out, err
}

func (c *Client) Contacts(ctx context.Context) ([]model.Contact, error) {
	var out []model.Contact
	err := c.do(ctx, http.MethodGet, "/api/contacts", nil, &out)
	return out, err
}

// do sends one request and decodes a JSON response into out. Error bodies
// become *APIError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		// A body that is not our error shape still yields the status.
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s response: %w", path, err)
	}
	return nil
}
