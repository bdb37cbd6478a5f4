package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

var _ repository.LineJobRepository = (*LineJobDB)(nil)

// LineJobDB stores line-count jobs in the line_jobs table.
type LineJobDB struct {
	conn *sql.DB
}

func (l *LineJobDB) Create(ctx context.Context, job *model.LineJob) error {
	if job.ID == "" {
		job.ID = xid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.LineJobQueued
	}

	_, err := l.conn.ExecContext(ctx,
		`INSERT INTO line_jobs (id, repo_id, owner_id, status, total_lines, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.RepoID, job.OwnerID, string(job.Status), job.TotalLines, job.Error,
		job.CreatedAt.UnixNano(), job.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating line job: %w", err)
	}
	return nil
}

func (l *LineJobDB) GetByID(ctx context.Context, id string) (*model.LineJob, error) {
	var (
		job                  model.LineJob
		status               string
		createdAt, updatedAt int64
	)
	err := l.conn.QueryRowContext(ctx,
		`SELECT id, repo_id, owner_id, status, total_lines, error, created_at, updated_at
		 FROM line_jobs WHERE id = ?`,
		id,
	).Scan(&job.ID, &job.RepoID, &job.OwnerID, &status, &job.TotalLines, &job.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("line job", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting line job %s: %w", id, err)
	}

	job.Status = model.LineJobStatus(status)
	job.CreatedAt = time.Unix(0, createdAt).UTC()
	job.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &job, nil
}

// MarkRunning only moves queued jobs; a job that already finished stays put.
func (l *LineJobDB) MarkRunning(ctx context.Context, id string) error {
	_, err := l.conn.ExecContext(ctx,
		`UPDATE line_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.LineJobRunning), time.Now().UnixNano(), id, string(model.LineJobQueued),
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking line job %s running: %w", id, err)
	}
	return nil
}

func (l *LineJobDB) Finish(ctx context.Context, id string, status model.LineJobStatus, totalLines int64, errMsg string) error {
	if !status.Terminal() {
		return fmt.Errorf("sqlite: finishing line job %s: status %q is not terminal", id, status)
	}
	_, err := l.conn.ExecContext(ctx,
		`UPDATE line_jobs SET status = ?, total_lines = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), totalLines, errMsg, time.Now().UnixNano(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finishing line job %s: %w", id, err)
	}
	return nil
}
