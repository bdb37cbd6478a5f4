package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the sentinel behind a
// constructor, including through an extra layer of fmt.Errorf wrapping the way
// services return them.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("repository", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("code", "code is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated("No token provided"),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
		{
			name:      "MissingState wraps ErrMissingState",
			err:       MissingState(),
			target:    ErrMissingState,
			wantMatch: true,
		},
		{
			name:      "InvalidState does NOT match ErrMissingState",
			err:       InvalidState(),
			target:    ErrMissingState,
			wantMatch: false,
		},
		{
			name:      "Upstream through fmt.Errorf still matches",
			err:       fmt.Errorf("service/repo: %w", Upstream("Failed to fetch repositories", errors.New("502"))),
			target:    ErrUpstream,
			wantMatch: true,
		},
		{
			name:      "LineCount does NOT match ErrUpstream",
			err:       LineCount("Failed to clone repository", nil),
			target:    ErrUpstream,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("repository", "42"),
			wantMessage: "repository not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("receiverId", "receiverId is required"),
			wantMessage: "receiverId is required",
		},
		{
			name:        "Upstream appends the cause for logs",
			err:         Upstream("Authentication failed", errors.New("bad_verification_code")),
			wantMessage: "Authentication failed: bad_verification_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestCauseIsReachable(t *testing.T) {
	cause := errors.New("exit status 128")
	err := LineCount("Failed to clone repository", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Message != "Failed to clone repository" {
		t.Errorf("Message = %q, want client-safe text only", err.Message)
	}
}

func TestStateErrorsCarryField(t *testing.T) {
	if f := MissingState().Field; f != "state" {
		t.Errorf("MissingState().Field = %q, want %q", f, "state")
	}
	if f := InvalidState().Field; f != "state" {
		t.Errorf("InvalidState().Field = %q, want %q", f, "state")
	}
}
