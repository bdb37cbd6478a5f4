package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/repo-dashboard/internal/model"
)

// RepoOps is the part of *service.RepoService the handlers need.
type RepoOps interface {
	List(ctx context.Context, p *model.Principal) ([]model.Repository, error)
	ToggleAutoReview(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context, p *model.Principal, id string) (model.RepoStats, error)
	CountLines(ctx context.Context, p *model.Principal, id string) (int64, error)
	StartLineJob(ctx context.Context, p *model.Principal, id string) (*model.LineJob, error)
	LineJob(ctx context.Context, p *model.Principal, jobID string) (*model.LineJob, error)
}

// RepoHandler serves the repository endpoints. All routes require auth.
type RepoHandler struct {
	repos  RepoOps
	logger *slog.Logger
}

func NewRepoHandler(repos RepoOps, logger *slog.Logger) *RepoHandler {
	return &RepoHandler{repos: repos, logger: logger}
}

// HandleList refreshes and returns the caller's repositories.
//
// HTTP: GET /api/repos
func (h *RepoHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	repos, err := h.repos.List(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

type toggleResponse struct {
	Message    string `json:"message"`
	AutoReview bool   `json:"autoReview"`
}

// HandleToggleAutoReview flips the auto review flag.
//
// HTTP: POST /api/repos/{id}/toggle-auto-review
// RESPONSE: {"message": "Auto Review status updated", "autoReview": true}
func (h *RepoHandler) HandleToggleAutoReview(w http.ResponseWriter, r *http.Request) {
	v, err := h.repos.ToggleAutoReview(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Message: "Auto Review status updated", AutoReview: v})
}

// HandleStats returns activity counts for one repository.
//
// HTTP: GET /api/repos/{id}/stats
func (h *RepoHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	stats, err := h.repos.Stats(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type linesResponse struct {
	TotalLines int64 `json:"totalLines"`
}

// HandleLines clones the repository and counts its lines, waiting for the
// result.
//
// HTTP: GET /api/repos/{id}/lines
// RESPONSE: {"totalLines": 1234}
func (h *RepoHandler) HandleLines(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	h.logger.Info("counting lines", slog.String("repoID", r.PathValue("id")))

	n, err := h.repos.CountLines(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, linesResponse{TotalLines: n})
}

type jobAccepted struct {
	JobID  string              `json:"jobId"`
	Status model.LineJobStatus `json:"status"`
}

// HandleStartLineJob queues a line count without waiting.
//
// HTTP: POST /api/repos/{id}/lines/jobs
// RESPONSE: 202 {"jobId": "...", "status": "queued"}
func (h *RepoHandler) HandleStartLineJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.repos.StartLineJob(r.Context(), p, r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted{JobID: job.ID, Status: job.Status})
}

// HandleLineJob returns a job record queued by the caller.
//
// HTTP: GET /api/line-jobs/{jobId}
// ERRORS: 404 when the job does not exist or belongs to another user.
func (h *RepoHandler) HandleLineJob(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	job, err := h.repos.LineJob(r.Context(), p, r.PathValue("jobId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
