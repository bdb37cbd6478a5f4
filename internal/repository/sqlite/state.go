package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

var _ repository.StateRepository = (*StateDB)(nil)

// StateDB stores OAuth state values in the oauth_states table.
type StateDB struct {
	conn *sql.DB
}

// Create inserts a new state. A duplicate state is a primary key violation,
// which is what we want: states are never reused.
func (s *StateDB) Create(ctx context.Context, state string, createdAt time.Time) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO oauth_states (state, created_at) VALUES (?, ?)`,
		state, createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating oauth state: %w", err)
	}
	return nil
}

// Consume deletes the state and reports whether it was valid.
//
// DELETE ... RETURNING makes lookup and removal a single statement, so two
// callbacks racing on the same state cannot both see it. An expired row is
// removed as a side effect and reported as invalid.
func (s *StateDB) Consume(ctx context.Context, state string, now time.Time) (bool, error) {
	var createdAt int64
	err := s.conn.QueryRowContext(ctx,
		`DELETE FROM oauth_states WHERE state = ? RETURNING created_at`,
		state,
	).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: consuming oauth state: %w", err)
	}

	rec := model.OAuthState{State: state, CreatedAt: time.Unix(0, createdAt)}
	return !rec.Expired(now), nil
}

// DeleteExpired removes every state older than model.OAuthStateTTL.
func (s *StateDB) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-model.OAuthStateTTL).UnixNano()
	res, err := s.conn.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE created_at < ?`, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired oauth states: %w", err)
	}
	return res.RowsAffected()
}
