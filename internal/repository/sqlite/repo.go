package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

var _ repository.RepoRepository = (*RepoDB)(nil)

// RepoDB stores cached repository metadata in the repositories table.
type RepoDB struct {
	conn *sql.DB
}

// Upsert inserts a repository or refreshes an existing one.
//
// ON CONFLICT ... DO UPDATE lists every column EXCEPT auto_review, so a refresh
// from upstream can never reset a flag the user set. RETURNING hands back the
// stored flag so the caller's struct matches the row.
func (r *RepoDB) Upsert(ctx context.Context, repo *model.Repository) error {
	var autoReview bool
	err := r.conn.QueryRowContext(ctx,
		`INSERT INTO repositories
			(id, name, full_name, description, url, clone_url, stars, default_branch, private, updated_at, auto_review)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		 ON CONFLICT(id) DO UPDATE SET
			name           = excluded.name,
			full_name      = excluded.full_name,
			description    = excluded.description,
			url            = excluded.url,
			clone_url      = excluded.clone_url,
			stars          = excluded.stars,
			default_branch = excluded.default_branch,
			private        = excluded.private,
			updated_at     = excluded.updated_at
		 RETURNING auto_review`,
		repo.ID,
		repo.Name,
		repo.FullName,
		repo.Description,
		repo.URL,
		repo.CloneURL,
		repo.Stars,
		repo.DefaultBranch,
		repo.Private,
		repo.UpdatedAt.UnixNano(),
	).Scan(&autoReview)
	if err != nil {
		return fmt.Errorf("sqlite: upserting repository %s: %w", repo.ID, err)
	}

	repo.AutoReview = autoReview
	return nil
}

// GetByID returns apperror.ErrNotFound when no record exists.
func (r *RepoDB) GetByID(ctx context.Context, id string) (*model.Repository, error) {
	var (
		repo      model.Repository
		updatedAt int64
	)
	err := r.conn.QueryRowContext(ctx,
		`SELECT id, name, full_name, description, url, clone_url, stars, default_branch, private, updated_at, auto_review
		 FROM repositories WHERE id = ?`,
		id,
	).Scan(
		&repo.ID,
		&repo.Name,
		&repo.FullName,
		&repo.Description,
		&repo.URL,
		&repo.CloneURL,
		&repo.Stars,
		&repo.DefaultBranch,
		&repo.Private,
		&updatedAt,
		&repo.AutoReview,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("repository", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting repository %s: %w", id, err)
	}

	repo.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &repo, nil
}

// ToggleAutoReview flips the flag in one statement and returns the new value.
func (r *RepoDB) ToggleAutoReview(ctx context.Context, id string) (bool, error) {
	var autoReview bool
	err := r.conn.QueryRowContext(ctx,
		`UPDATE repositories SET auto_review = NOT auto_review WHERE id = ? RETURNING auto_review`,
		id,
	).Scan(&autoReview)
	if errors.Is(err, sql.ErrNoRows) {
		return false, apperror.NotFound("repository", id)
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: toggling auto review for %s: %w", id, err)
	}
	return autoReview, nil
}
