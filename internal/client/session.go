package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sakif/repo-dashboard/internal/model"
)

// DefaultBaseURL is used when no server URL was configured.
const DefaultBaseURL = "http://localhost:5000"

// Session is the signed-in state of the terminal client: which server, the
// bearer token, the profile returned at login, and the open relay
// connection if any. It is created by LoadSession and torn down by Close.
type Session struct {
	BaseURL string         `json:"baseUrl"`
	Token   string         `json:"token,omitempty"`
	User    *model.Profile `json:"user,omitempty"`

	path string
	mu   sync.Mutex
	conn *Conn
}

// DefaultSessionPath is <user config dir>/repo-dashboard/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("client: locating config dir: %w", err)
	}
	return filepath.Join(dir, "repo-dashboard", "session.json"), nil
}

// LoadSession reads the session at path. A missing file gives an empty,
// signed-out session bound to path.
func LoadSession(path string) (*Session, error) {
	s := &Session{BaseURL: DefaultBaseURL, path: path}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("client: reading session: %w", err)
	}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("client: decoding session %s: %w", path, err)
	}
	if s.BaseURL == "" {
		s.BaseURL = DefaultBaseURL
	}
	return s, nil
}

// LoggedIn reports whether a token is stored. The token may still be
// expired; the server decides.
func (s *Session) LoggedIn() bool { return s.Token != "" }

// SignIn stores the login result and saves the session.
func (s *Session) SignIn(res *AuthResult) error {
	s.Token = res.Token
	user := res.User
	s.User = &user
	return s.Save()
}

// Save writes the session with owner-only permissions. The file holds a
// bearer token.
func (s *Session) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("client: creating session dir: %w", err)
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("client: encoding session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("client: writing session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("client: writing session: %w", err)
	}
	return nil
}

// SignOut closes any connection, forgets the token and removes the file.
func (s *Session) SignOut() error {
	s.Close()
	s.Token = ""
	s.User = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("client: removing session: %w", err)
	}
	return nil
}

// Client returns an API client carrying the session token.
func (s *Session) Client() (*Client, error) {
	return New(s.BaseURL, s.Token)
}

// Connect opens the relay connection, replacing a previous one.
func (s *Session) Connect(ctx context.Context) (*Conn, error) {
	conn, err := Dial(ctx, s.BaseURL, s.Token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	old := s.conn
	s.conn = conn
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return conn, nil
}

// Close tears down the relay connection if one is open.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
