package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
)

func TestLineJob_Lifecycle(t *testing.T) {
	l := newTestDB(t).LineJobs()
	ctx := context.Background()

	job := &model.LineJob{RepoID: "42", OwnerID: "7"}
	if err := l.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if job.ID == "" || job.Status != model.LineJobQueued {
		t.Fatalf("Create() = %+v, want id set and status queued", job)
	}

	if err := l.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}
	got, err := l.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != model.LineJobRunning {
		t.Errorf("Status = %q, want running", got.Status)
	}
	if got.OwnerID != "7" {
		t.Errorf("OwnerID = %q, want 7", got.OwnerID)
	}

	if err := l.Finish(ctx, job.ID, model.LineJobSucceeded, 1234, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	got, err = l.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != model.LineJobSucceeded || got.TotalLines != 1234 {
		t.Errorf("after Finish: %+v", got)
	}
}

func TestLineJob_MarkRunningDoesNotReopenFinishedJob(t *testing.T) {
	l := newTestDB(t).LineJobs()
	ctx := context.Background()

	job := &model.LineJob{RepoID: "42"}
	if err := l.Create(ctx, job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := l.Finish(ctx, job.ID, model.LineJobFailed, 0, "clone failed"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := l.MarkRunning(ctx, job.ID); err != nil {
		t.Fatalf("MarkRunning() error = %v", err)
	}

	got, _ := l.GetByID(ctx, job.ID)
	if got.Status != model.LineJobFailed || got.Error != "clone failed" {
		t.Errorf("job = %+v, want it to stay failed", got)
	}
}

func TestLineJob_FinishRejectsNonTerminal(t *testing.T) {
	l := newTestDB(t).LineJobs()

	if err := l.Finish(context.Background(), "x", model.LineJobRunning, 0, ""); err == nil {
		t.Error("Finish(running) should fail")
	}
}

func TestLineJob_GetByIDNotFound(t *testing.T) {
	l := newTestDB(t).LineJobs()

	_, err := l.GetByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}
