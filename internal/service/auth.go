package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/auth"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

// AuthService runs the OAuth login flow and issues session tokens.
//
// DEPENDENCIES (injected via NewAuthService):
//   - states   repository.StateRepository → one-time state values
//   - provider OAuthProvider              → code-for-token exchange
//   - profiles ProfileFetcher             → GET /user (+ /user/emails)
//   - tokens   *auth.TokenService         → sign session tokens
type AuthService struct {
	states   repository.StateRepository
	provider OAuthProvider
	profiles ProfileFetcher
	tokens   *auth.TokenService
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(
	states repository.StateRepository,
	provider OAuthProvider,
	profiles ProfileFetcher,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		states:   states,
		provider: provider,
		profiles: profiles,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
	}
}

// LoginStart is what the client needs to send the user to the provider.
type LoginStart struct {
	AuthURL string `json:"authUrl"`
	State   string `json:"state"`
}

// AuthResult is the outcome of a successful callback.
type AuthResult struct {
	Token string        `json:"token"`
	User  model.Profile `json:"user"`
}

// StartLogin creates and stores a fresh state value.
func (s *AuthService) StartLogin(ctx context.Context) (*LoginStart, error) {
	state := xid.New().String()
	if err := s.states.Create(ctx, state, s.now()); err != nil {
		return nil, fmt.Errorf("service/auth: storing state: %w", err)
	}
	return &LoginStart{AuthURL: s.provider.AuthURL(state), State: state}, nil
}

// Callback completes the login.
//
// ORDER MATTERS:
// The state is consumed before the code is looked at, so a replayed or forged
// callback never reaches the provider, and a state is burned even if the
// exchange later fails.
func (s *AuthService) Callback(ctx context.Context, code, state string) (*AuthResult, error) {
	if state == "" {
		return nil, apperror.MissingState()
	}

	ok, err := s.states.Consume(ctx, state, s.now())
	if err != nil {
		return nil, fmt.Errorf("service/auth: consuming state: %w", err)
	}
	if !ok {
		return nil, apperror.InvalidState()
	}

	if code == "" {
		return nil, apperror.ValidationFailed("code", "Missing code parameter")
	}

	accessToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, apperror.Upstream("Authentication failed", err)
	}

	profile, err := s.profiles.Profile(ctx, accessToken)
	if err != nil {
		return nil, apperror.Upstream("Authentication failed", err)
	}

	token, err := s.tokens.Issue(model.Principal{Profile: *profile, AccessToken: accessToken})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", profile.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", profile.ID),
		slog.String("login", profile.Username),
	)

	return &AuthResult{Token: token, User: *profile}, nil
}

// SweepStates deletes expired states. The server calls it periodically so
// abandoned logins do not pile up.
func (s *AuthService) SweepStates(ctx context.Context) (int64, error) {
	n, err := s.states.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("service/auth: sweeping states: %w", err)
	}
	return n, nil
}
