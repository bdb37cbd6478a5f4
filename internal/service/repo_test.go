package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/linecount"
	"github.com/sakif/repo-dashboard/internal/model"
)

func newTestRepoService(t *testing.T) (*RepoService, *fakeRepos, *fakeJobs, *fakeUpstream, *fakeRunner) {
	t.Helper()
	repos := newFakeRepos()
	jobs := newFakeJobs()
	upstream := &fakeUpstream{repos: []model.Repository{
		{ID: "10", Name: "alpha", FullName: "octocat/alpha", CloneURL: "https://github.example/octocat/alpha.git"},
		{ID: "20", Name: "beta", FullName: "octocat/beta", CloneURL: "https://github.example/octocat/beta.git"},
	}}
	runner := &fakeRunner{total: 1234}
	svc := NewRepoService(repos, jobs, upstream, runner, "server-token", testLogger())
	return svc, repos, jobs, upstream, runner
}

var testPrincipal = &model.Principal{Profile: model.Profile{ID: "42"}, AccessToken: "user-token"}

// =========================================================================
// LIST
// =========================================================================

func TestRepoList_UpsertsInUpstreamOrder(t *testing.T) {
	svc, repos, _, _, _ := newTestRepoService(t)

	got, err := svc.List(context.Background(), testPrincipal)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "10" || got[1].ID != "20" {
		t.Fatalf("List() = %+v, want ids [10 20]", got)
	}
	if len(repos.repos) != 2 {
		t.Errorf("stored %d repos, want 2", len(repos.repos))
	}
	for _, r := range got {
		if r.AutoReview {
			t.Errorf("repo %s: new repos must start with AutoReview=false", r.ID)
		}
	}
}

func TestRepoList_PreservesAutoReview(t *testing.T) {
	svc, _, _, upstream, _ := newTestRepoService(t)
	ctx := context.Background()

	if _, err := svc.List(ctx, testPrincipal); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if _, err := svc.ToggleAutoReview(ctx, "20"); err != nil {
		t.Fatalf("ToggleAutoReview() error = %v", err)
	}

	upstream.repos[1].Stars = 99
	got, err := svc.List(ctx, testPrincipal)
	if err != nil {
		t.Fatalf("second List() error = %v", err)
	}
	if !got[1].AutoReview {
		t.Error("AutoReview was reset by a refresh")
	}
	if got[1].Stars != 99 {
		t.Errorf("Stars = %d, want refreshed value 99", got[1].Stars)
	}
}

func TestRepoList_UpstreamError(t *testing.T) {
	svc, _, _, upstream, _ := newTestRepoService(t)
	upstream.err = errors.New("502")

	_, err := svc.List(context.Background(), testPrincipal)
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Message != "Failed to fetch repositories" {
		t.Errorf("Message = %q", appErr.Message)
	}
}

// =========================================================================
// TOGGLE
// =========================================================================

func TestToggleAutoReview_Flips(t *testing.T) {
	svc, _, _, _, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	for i, want := range []bool{true, false, true} {
		got, err := svc.ToggleAutoReview(ctx, "10")
		if err != nil {
			t.Fatalf("toggle %d: error = %v", i, err)
		}
		if got != want {
			t.Errorf("toggle %d = %v, want %v", i, got, want)
		}
	}
}

func TestToggleAutoReview_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestRepoService(t)

	_, err := svc.ToggleAutoReview(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// STATS
// =========================================================================

func TestStats_UsesCallerToken(t *testing.T) {
	svc, _, _, upstream, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)
	upstream.stats = model.RepoStats{CommitCount: 7, LastCommit: "2024-01-02T03:04:05Z"}

	got, err := svc.Stats(ctx, testPrincipal, "10")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if got.CommitCount != 7 {
		t.Errorf("CommitCount = %d, want 7", got.CommitCount)
	}
	if upstream.statsArgs != [2]string{"user-token", "octocat/alpha"} {
		t.Errorf("RepoStats called with %v", upstream.statsArgs)
	}
}

func TestStats_FallsBackToServerToken(t *testing.T) {
	svc, _, _, upstream, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	_, err := svc.Stats(ctx, &model.Principal{Profile: model.Profile{ID: "42"}}, "10")
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if upstream.statsArgs[0] != "server-token" {
		t.Errorf("token = %q, want server-token", upstream.statsArgs[0])
	}
}

func TestStats_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestRepoService(t)

	_, err := svc.Stats(context.Background(), testPrincipal, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestStats_UpstreamError(t *testing.T) {
	svc, _, _, upstream, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)
	upstream.err = errors.New("boom")

	_, err := svc.Stats(ctx, testPrincipal, "10")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Errorf("error = %v, want ErrUpstream", err)
	}
}

// =========================================================================
// LINE COUNT
// =========================================================================

func TestCountLines_Success(t *testing.T) {
	svc, _, jobs, _, runner := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	n, err := svc.CountLines(ctx, testPrincipal, "10")
	if err != nil {
		t.Fatalf("CountLines() error = %v", err)
	}
	if n != 1234 {
		t.Errorf("CountLines() = %d, want 1234", n)
	}

	want := linecount.Source{CloneURL: "https://github.example/octocat/alpha.git", Token: "user-token"}
	if len(runner.sources) != 1 || runner.sources[0] != want {
		t.Errorf("runner got sources %+v, want [%+v]", runner.sources, want)
	}

	job, err := jobs.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("job record missing: %v", err)
	}
	if job.Status != model.LineJobSucceeded || job.TotalLines != 1234 {
		t.Errorf("job = %+v, want succeeded with 1234 lines", job)
	}
}

func TestCountLines_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{"clone", fmt.Errorf("%w: exit status 128", linecount.ErrClone), "Failed to clone repository"},
		{"count", fmt.Errorf("%w: permission denied", linecount.ErrCount), "Failed to count lines"},
		{"other", errors.New("timed out"), "Failed to fetch total lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, jobs, _, runner := newTestRepoService(t)
			ctx := context.Background()
			_, _ = svc.List(ctx, testPrincipal)
			runner.err = tt.err

			_, err := svc.CountLines(ctx, testPrincipal, "10")
			if !errors.Is(err, apperror.ErrLineCount) {
				t.Fatalf("error = %v, want ErrLineCount", err)
			}
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.Message != tt.message {
				t.Errorf("Message = %v, want %q", appErr, tt.message)
			}

			job, _ := jobs.GetByID(ctx, "job-1")
			if job.Status != model.LineJobFailed || job.Error != tt.message {
				t.Errorf("job = %+v, want failed with %q", job, tt.message)
			}
		})
	}
}

func TestCountLines_NotFound(t *testing.T) {
	svc, _, jobs, _, runner := newTestRepoService(t)

	_, err := svc.CountLines(context.Background(), testPrincipal, "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if len(runner.sources) != 0 || len(jobs.jobs) != 0 {
		t.Error("no job should be created for an unknown repository")
	}
}

func TestCountLines_RunnerClosed(t *testing.T) {
	svc, _, jobs, _, runner := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)
	runner.submitErr = linecount.ErrRunnerClosed

	_, err := svc.CountLines(ctx, testPrincipal, "10")
	if !errors.Is(err, apperror.ErrLineCount) {
		t.Errorf("error = %v, want ErrLineCount", err)
	}
	job, _ := jobs.GetByID(ctx, "job-1")
	if job.Status != model.LineJobFailed {
		t.Errorf("Status = %q, want failed", job.Status)
	}
}

func TestStartLineJob_ReturnsRecord(t *testing.T) {
	svc, _, _, _, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	job, err := svc.StartLineJob(ctx, testPrincipal, "20")
	if err != nil {
		t.Fatalf("StartLineJob() error = %v", err)
	}
	if job.ID == "" || job.RepoID != "20" {
		t.Errorf("job = %+v, want an id for repo 20", job)
	}

	got, err := svc.LineJob(ctx, testPrincipal, job.ID)
	if err != nil {
		t.Fatalf("LineJob() error = %v", err)
	}
	if got.Status != model.LineJobSucceeded || got.TotalLines != 1234 {
		t.Errorf("LineJob() = %+v, want succeeded with 1234 lines", got)
	}
}

func TestLineJob_NotFound(t *testing.T) {
	svc, _, _, _, _ := newTestRepoService(t)

	_, err := svc.LineJob(context.Background(), testPrincipal, "job-404")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestLineJob_HiddenFromOtherUsers(t *testing.T) {
	svc, _, jobs, _, _ := newTestRepoService(t)
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	job, err := svc.StartLineJob(ctx, testPrincipal, "10")
	if err != nil {
		t.Fatalf("StartLineJob() error = %v", err)
	}
	if stored, _ := jobs.GetByID(ctx, job.ID); stored.OwnerID != "42" {
		t.Errorf("OwnerID = %q, want 42", stored.OwnerID)
	}

	other := &model.Principal{Profile: model.Profile{ID: "7"}}
	_, err = svc.LineJob(ctx, other, job.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for another user's job", err)
	}
}

// =========================================================================
// QUEUEING
// =========================================================================

// stuckCounter holds every count until release is closed.
type stuckCounter struct {
	release chan struct{}
}

func (c *stuckCounter) Count(_ context.Context, _ linecount.Source) (int64, error) {
	<-c.release
	return 1, nil
}

func TestCountLines_QueuedPastTimeoutFails(t *testing.T) {
	repos := newFakeRepos()
	jobs := newFakeJobs()
	upstream := &fakeUpstream{repos: []model.Repository{{ID: "10", Name: "alpha"}}}
	counter := &stuckCounter{release: make(chan struct{})}
	runner := linecount.NewRunner(counter, 1, 50*time.Millisecond, testLogger())
	defer runner.Close()
	defer close(counter.release)

	svc := NewRepoService(repos, jobs, upstream, runner, "", testLogger())
	ctx := context.Background()
	_, _ = svc.List(ctx, testPrincipal)

	// Occupies the only slot; the stuck counter ignores its deadline.
	busy, err := svc.StartLineJob(ctx, testPrincipal, "10")
	if err != nil {
		t.Fatalf("StartLineJob() error = %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if j, _ := jobs.GetByID(ctx, busy.ID); j.Status == model.LineJobRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first job never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	start := time.Now()
	_, err = svc.CountLines(ctx, testPrincipal, "10")
	if !errors.Is(err, apperror.ErrLineCount) {
		t.Fatalf("error = %v, want ErrLineCount", err)
	}
	if !errors.Is(err, linecount.ErrQueueTimeout) {
		t.Errorf("error = %v, want it to wrap ErrQueueTimeout", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("CountLines waited %s for a slot, want about the runner timeout", waited)
	}
}
