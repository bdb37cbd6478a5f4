package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/auth"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/service"
)

// AuthFlow is the part of *service.AuthService the handler needs.
type AuthFlow interface {
	StartLogin(ctx context.Context) (*service.LoginStart, error)
	Callback(ctx context.Context, code, state string) (*service.AuthResult, error)
}

// AuthHandler exposes the OAuth login flow to API clients.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → create a state and return the provider authorization URL
//   - HandleCallback → verify the state, exchange the code, issue a session token
//   - HandleMe       → return the profile carried in the session token
//
// The session token is returned in the response body. Clients send it back
// as "Authorization: Bearer <token>"; there is no cookie and no server-side
// session.
type AuthHandler struct {
	flow   AuthFlow
	logger *slog.Logger
}

func NewAuthHandler(flow AuthFlow, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{flow: flow, logger: logger}
}

// HandleLogin starts a login.
//
// HTTP: GET /api/auth/github
// RESPONSE: {"authUrl": "...", "state": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	start, err := h.flow.StartLogin(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// HandleCallback completes a login.
//
// HTTP: POST /api/auth/github/callback
// REQUEST BODY: {"code": "...", "state": "..."}
// RESPONSE:     {"token": "...", "user": {...}}
//
// An empty body is treated as missing parameters rather than bad JSON so the
// client gets the "Missing state parameter" message.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("invalid callback body", slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.ValidationFailed("body", "Invalid JSON body"))
		return
	}

	res, err := h.flow.Callback(r.Context(), req.Code, req.State)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidState) {
			h.logger.Warn("auth callback: invalid state")
		}
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleMe returns the current user's profile.
//
// HTTP: GET /api/auth/me
// Auth: Required
//
// The profile comes straight from the validated token; the upstream access
// token is never part of the response.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.Profile)
}

// principal returns the caller set by auth.RequireAuth. On a route without
// the middleware it answers 401 itself and reports false.
func principal(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*model.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, logger, apperror.Unauthenticated("No token provided"))
		return nil, false
	}
	return p, true
}
