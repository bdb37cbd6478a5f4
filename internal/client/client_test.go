package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeAPI serves canned responses and records the Authorization header.
func newFakeAPI(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/github", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"authUrl":"https://github.example/authorize?state=s1","state":"s1"}`)
	})
	mux.HandleFunc("POST /api/auth/github/callback", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		if in["state"] != "s1" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"error":"invalid_state","message":"Invalid state parameter"}`)
			return
		}
		io.WriteString(w, `{"token":"tok","user":{"id":"42","username":"octocat"}}`)
	})
	mux.HandleFunc("GET /api/repos", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if gotAuth != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":"unauthorized","message":"Invalid token"}`)
			return
		}
		io.WriteString(w, `[{"id":"10","name":"alpha","autoReview":true}]`)
	})
	mux.HandleFunc("POST /api/repos/{id}/toggle-auto-review", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"message":"Auto Review status updated","autoReview":true}`)
	})
	mux.HandleFunc("GET /api/repos/{id}/lines", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"totalLines":321}`)
	})
	mux.HandleFunc("POST /api/repos/{id}/lines/jobs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"jobId":"j1","status":"queued"}`)
	})
	mux.HandleFunc("GET /api/repos/{id}/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not_found","message":"repository not found with id 404"}`)
			return
		}
		io.WriteString(w, `{"commitCount":9,"pullRequests":1,"openIssues":2,"contributors":3,"lastCommit":"Unknown"}`)
	})
	mux.HandleFunc("GET /api/contacts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &gotAuth
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", "")
	assert.Error(t, err)
}

func TestClient_LoginFlow(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c, err := New(srv.URL+"/", "")
	require.NoError(t, err)
	ctx := context.Background()

	start, err := c.StartLogin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", start.State)

	res, err := c.Callback(ctx, "code", start.State)
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "octocat", res.User.Username)

	_, err = c.Callback(ctx, "code", "forged")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Invalid state parameter", apiErr.Message)
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv, gotAuth := newFakeAPI(t)
	c, _ := New(srv.URL, "tok")

	repos, err := c.Repos(context.Background())
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.True(t, repos[0].AutoReview)
	assert.Equal(t, "Bearer tok", *gotAuth)
}

func TestClient_Unauthorized(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c, _ := New(srv.URL, "expired")

	_, err := c.Repos(context.Background())
	assert.True(t, IsUnauthorized(err))
}

func TestClient_RepoCalls(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c, _ := New(srv.URL, "tok")
	ctx := context.Background()

	on, err := c.ToggleAutoReview(ctx, "10")
	require.NoError(t, err)
	assert.True(t, on)

	n, err := c.Lines(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, int64(321), n)

	job, err := c.StartLineJob(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, "10", job.RepoID)

	stats, err := c.Stats(ctx, "10")
	require.NoError(t, err)
	assert.Equal(t, 9, stats.CommitCount)

	_, err = c.Stats(ctx, "404")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "not_found", apiErr.Type)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_NonJSONErrorBody(t *testing.T) {
	srv, _ := newFakeAPI(t)
	c, _ := New(srv.URL, "tok")

	_, err := c.Contacts(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "client: HTTP 502", apiErr.Error())
}
