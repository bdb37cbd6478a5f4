package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
)

func testRepo(id string) *model.Repository {
	return &model.Repository{
		ID:            id,
		Name:          "repo-" + id,
		FullName:      "octo/repo-" + id,
		Description:   "a repository",
		URL:           "https://github.com/octo/repo-" + id,
		CloneURL:      "https://github.com/octo/repo-" + id + ".git",
		Stars:         3,
		DefaultBranch: "main",
		UpdatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestRepoUpsert_InsertDefaultsAutoReviewFalse(t *testing.T) {
	r := newTestDB(t).Repos()
	repo := testRepo("1")
	repo.AutoReview = true // ignored on insert

	if err := r.Upsert(context.Background(), repo); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if repo.AutoReview {
		t.Error("Upsert() on a new record should report AutoReview = false")
	}

	got, err := r.GetByID(context.Background(), "1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.FullName != "octo/repo-1" || got.Stars != 3 || got.DefaultBranch != "main" {
		t.Errorf("GetByID() = %+v, fields not stored", got)
	}
	if !got.UpdatedAt.Equal(repo.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, repo.UpdatedAt)
	}
}

func TestRepoUpsert_PreservesAutoReview(t *testing.T) {
	r := newTestDB(t).Repos()
	ctx := context.Background()

	if err := r.Upsert(ctx, testRepo("7")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := r.ToggleAutoReview(ctx, "7"); err != nil {
		t.Fatalf("ToggleAutoReview() error = %v", err)
	}

	// A refresh from upstream changes metadata but must keep the flag.
	refreshed := testRepo("7")
	refreshed.Stars = 42
	refreshed.Description = "renamed"
	if err := r.Upsert(ctx, refreshed); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if !refreshed.AutoReview {
		t.Error("Upsert() reset AutoReview to false")
	}

	got, err := r.GetByID(ctx, "7")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Stars != 42 || got.Description != "renamed" {
		t.Errorf("metadata not refreshed: %+v", got)
	}
	if !got.AutoReview {
		t.Error("stored AutoReview = false, want true")
	}
}

// =========================================================================
// TOGGLE TESTS
// =========================================================================

func TestRepoToggleAutoReview_FlipsEachCall(t *testing.T) {
	r := newTestDB(t).Repos()
	ctx := context.Background()
	if err := r.Upsert(ctx, testRepo("9")); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	for i, want := range []bool{true, false, true} {
		got, err := r.ToggleAutoReview(ctx, "9")
		if err != nil {
			t.Fatalf("toggle %d error = %v", i, err)
		}
		if got != want {
			t.Errorf("toggle %d = %v, want %v", i, got, want)
		}
	}
}

func TestRepoToggleAutoReview_NotFound(t *testing.T) {
	r := newTestDB(t).Repos()

	_, err := r.ToggleAutoReview(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ToggleAutoReview() error = %v, want ErrNotFound", err)
	}
}

func TestRepoGetByID_NotFound(t *testing.T) {
	r := newTestDB(t).Repos()

	_, err := r.GetByID(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}
