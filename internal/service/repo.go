package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/linecount"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

// recordTimeout bounds the job-record writes made from runner callbacks,
// which run after the originating request may be gone.
const recordTimeout = 5 * time.Second

// RepoService lists repositories, toggles auto review and computes stats and
// line counts.
type RepoService struct {
	repos    repository.RepoRepository
	jobs     repository.LineJobRepository
	upstream RepoUpstream
	runner   LineRunner
	// statsToken is used for stats calls when the caller has no token.
	statsToken string
	logger     *slog.Logger
}

func NewRepoService(
	repos repository.RepoRepository,
	jobs repository.LineJobRepository,
	upstream RepoUpstream,
	runner LineRunner,
	statsToken string,
	logger *slog.Logger,
) *RepoService {
	return &RepoService{
		repos:      repos,
		jobs:       jobs,
		upstream:   upstream,
		runner:     runner,
		statsToken: statsToken,
		logger:     logger,
	}
}

// List refreshes the caller's repositories from upstream and returns the
// stored records in upstream order. AutoReview comes from the store.
func (s *RepoService) List(ctx context.Context, p *model.Principal) ([]model.Repository, error) {
	upstream, err := s.upstream.ListRepos(ctx, p.AccessToken)
	if err != nil {
		return nil, apperror.Upstream("Failed to fetch repositories", err)
	}

	out := make([]model.Repository, 0, len(upstream))
	for i := range upstream {
		repo := upstream[i]
		if err := s.repos.Upsert(ctx, &repo); err != nil {
			return nil, fmt.Errorf("service/repo: upserting %s: %w", repo.ID, err)
		}
		out = append(out, repo)
	}

	s.logger.Debug("repositories refreshed", slog.String("userID", p.ID), slog.Int("count", len(out)))
	return out, nil
}

// ToggleAutoReview flips the flag and returns the new value.
func (s *RepoService) ToggleAutoReview(ctx context.Context, id string) (bool, error) {
	v, err := s.repos.ToggleAutoReview(ctx, id)
	if err != nil {
		return false, fmt.Errorf("service/repo: toggling %s: %w", id, err)
	}
	s.logger.Info("auto review toggled", slog.String("repoID", id), slog.Bool("autoReview", v))
	return v, nil
}

// Stats returns commit, pull request, issue and contributor counts for a
// stored repository.
func (s *RepoService) Stats(ctx context.Context, p *model.Principal, id string) (model.RepoStats, error) {
	repo, err := s.repos.GetByID(ctx, id)
	if err != nil {
		return model.RepoStats{}, fmt.Errorf("service/repo: %w", err)
	}

	token := p.AccessToken
	if token == "" {
		token = s.statsToken
	}

	stats, err := s.upstream.RepoStats(ctx, token, repo.FullName)
	if err != nil {
		return model.RepoStats{}, apperror.Upstream("Failed to fetch repository stats", err)
	}
	return stats, nil
}

// CountLines runs a line-count job and waits for it. If ctx ends first the
// job keeps running and its record is still completed.
func (s *RepoService) CountLines(ctx context.Context, p *model.Principal, id string) (int64, error) {
	finished := make(chan linecount.Job, 1)

	if _, err := s.startLineJob(ctx, p, id, func(j linecount.Job) { finished <- j }); err != nil {
		return 0, err
	}

	select {
	case j := <-finished:
		if j.Err != nil {
			return 0, lineCountError(j.Err)
		}
		return j.TotalLines, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("service/repo: waiting for line count: %w", ctx.Err())
	}
}

// StartLineJob queues a line-count job and returns its record immediately.
func (s *RepoService) StartLineJob(ctx context.Context, p *model.Principal, id string) (*model.LineJob, error) {
	return s.startLineJob(ctx, p, id, nil)
}

// LineJob returns a job record by id. Jobs queued by someone else are
// reported as not found.
func (s *RepoService) LineJob(ctx context.Context, p *model.Principal, jobID string) (*model.LineJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}
	if job.OwnerID != p.ID {
		return nil, apperror.NotFound("line job", jobID)
	}
	return job, nil
}

func (s *RepoService) startLineJob(ctx context.Context, p *model.Principal, id string, onFinish func(linecount.Job)) (*model.LineJob, error) {
	repo, err := s.repos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/repo: %w", err)
	}

	record := &model.LineJob{RepoID: repo.ID, OwnerID: p.ID, Status: model.LineJobQueued}
	if err := s.jobs.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("service/repo: creating line job: %w", err)
	}

	job := linecount.Job{
		ID:     record.ID,
		RepoID: repo.ID,
		Source: linecount.Source{CloneURL: repo.CloneURL, Token: p.AccessToken},
	}
	err = s.runner.Submit(job, linecount.Callbacks{
		Started: s.markRunning,
		Finished: func(j linecount.Job) {
			s.recordResult(j)
			if onFinish != nil {
				onFinish(j)
			}
		},
	})
	if err != nil {
		s.recordResult(linecount.Job{ID: record.ID, Err: err})
		return nil, apperror.LineCount("Failed to fetch total lines", err)
	}

	return record, nil
}

func (s *RepoService) markRunning(j linecount.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.jobs.MarkRunning(ctx, j.ID); err != nil {
		s.logger.Error("failed to mark line job running", slog.String("jobID", j.ID), slog.String("error", err.Error()))
	}
}

// recordResult is the completion callback: it writes the terminal state.
// Only the client-safe message is stored; the cause is logged by the runner.
func (s *RepoService) recordResult(j linecount.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	status, msg := model.LineJobSucceeded, ""
	if j.Err != nil {
		status = model.LineJobFailed
		msg = lineCountError(j.Err).Message
	}
	if err := s.jobs.Finish(ctx, j.ID, status, j.TotalLines, msg); err != nil {
		s.logger.Error("failed to record line job result", slog.String("jobID", j.ID), slog.String("error", err.Error()))
	}
}

func lineCountError(err error) *apperror.AppError {
	if errors.Is(err, linecount.ErrClone) {
		return apperror.LineCount("Failed to clone repository", err)
	}
	if errors.Is(err, linecount.ErrCount) {
		return apperror.LineCount("Failed to count lines", err)
	}
	return apperror.LineCount("Failed to fetch total lines", err)
}
