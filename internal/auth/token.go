// Package auth issues and verifies session tokens and wraps the GitHub OAuth
// authorization code flow.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client calls GET /api/auth/github and gets {authUrl, state}
//  2. User approves on GitHub, which redirects to the client with a code
//  3. Client posts {code, state} to /api/auth/github/callback
//  4. Server consumes the state, exchanges the code, fetches the profile and
//     returns a signed session token
//  5. Client sends "Authorization: Bearer <token>" on every later call and
//     as the first frame on the websocket relay
//
// There is no server-side session table. Everything the server needs to act
// for the user, including the GitHub access token, is inside the token.
//
// JWT STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"583231","iss":"repo-dashboard","exp":...,"profile":{...},"accessToken":"..."}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
)

const (
	issuer = "repo-dashboard"

	// SessionLifetime is how long an issued token stays valid. There is no
	// refresh: the user logs in again after it expires.
	SessionLifetime = time.Hour
)

// TokenService signs and verifies session tokens.
//
// sealer is optional. When set, the access token claim is encrypted so a
// client that decodes the (unencrypted) JWT payload cannot read it.
type TokenService struct {
	secret []byte
	sealer *Sealer
}

// NewTokenService creates a TokenService. Pass a nil sealer to store the
// access token claim as issued.
func NewTokenService(secret string, sealer *Sealer) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), sealer: sealer}, nil
}

// sessionClaims is the JWT payload. Subject carries the profile id so
// standard JWT tooling still shows who the token belongs to.
type sessionClaims struct {
	jwt.RegisteredClaims
	Profile     model.Profile `json:"profile"`
	AccessToken string        `json:"accessToken"`
	Sealed      bool          `json:"sealed,omitempty"`
}

// Issue signs a token for p that expires after SessionLifetime.
func (s *TokenService) Issue(p model.Principal) (string, error) {
	return s.IssueWithDuration(p, SessionLifetime)
}

// IssueWithDuration signs a token with a custom lifetime. Tests use a
// negative duration to produce an already expired token.
func (s *TokenService) IssueWithDuration(p model.Principal, d time.Duration) (string, error) {
	if p.ID == "" {
		return "", errors.New("auth: principal has no id")
	}

	now := time.Now()
	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
		Profile:     p.Profile,
		AccessToken: p.AccessToken,
	}

	if s.sealer != nil && p.AccessToken != "" {
		sealed, err := s.sealer.Seal(p.AccessToken)
		if err != nil {
			return "", fmt.Errorf("auth: sealing access token: %w", err)
		}
		c.AccessToken = sealed
		c.Sealed = true
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, algorithm and expiry, then returns the
// principal the token was issued for. Every failure is an
// apperror.ErrUnauthenticated with the message "Invalid token"; the jwt error
// is kept as the cause for logging.
//
// jwt.WithValidMethods guards against algorithm confusion: a token claiming
// "alg":"none" or an RSA algorithm is rejected before the key func runs.
func (s *TokenService) Validate(tokenStr string) (*model.Principal, error) {
	c := &sessionClaims{}
	token, err := jwt.ParseWithClaims(
		tokenStr,
		c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, invalidToken(err)
	}
	if !token.Valid || c.Subject == "" || c.Subject != c.Profile.ID {
		return nil, invalidToken(errors.New("subject does not match profile"))
	}

	accessToken := c.AccessToken
	if c.Sealed {
		if s.sealer == nil {
			return nil, invalidToken(errors.New("token is sealed but no seal key is configured"))
		}
		accessToken, err = s.sealer.Open(c.AccessToken)
		if err != nil {
			return nil, invalidToken(err)
		}
	}

	return &model.Principal{Profile: c.Profile, AccessToken: accessToken}, nil
}

func invalidToken(cause error) error {
	e := apperror.Unauthenticated("Invalid token")
	e.Cause = cause
	return e
}
