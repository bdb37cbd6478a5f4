package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/linecount"
	"github.com/sakif/repo-dashboard/internal/model"
)

// =========================================================================
// FAKE STORES
// =========================================================================
//
// In-memory versions of the repository interfaces. Each one guards its map
// with a mutex because the line-count callbacks run on runner goroutines.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStates struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func newFakeStates() *fakeStates {
	return &fakeStates{states: make(map[string]time.Time)}
}

func (f *fakeStates) Create(_ context.Context, state string, createdAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state] = createdAt
	return nil
}

func (f *fakeStates) Consume(_ context.Context, state string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	createdAt, ok := f.states[state]
	if !ok {
		return false, nil
	}
	delete(f.states, state)
	return !model.OAuthState{State: state, CreatedAt: createdAt}.Expired(now), nil
}

func (f *fakeStates) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for s, createdAt := range f.states {
		if (model.OAuthState{State: s, CreatedAt: createdAt}).Expired(now) {
			delete(f.states, s)
			n++
		}
	}
	return n, nil
}

type fakeRepos struct {
	mu    sync.Mutex
	repos map[string]model.Repository
}

func newFakeRepos() *fakeRepos {
	return &fakeRepos{repos: make(map[string]model.Repository)}
}

func (f *fakeRepos) Upsert(_ context.Context, repo *model.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.repos[repo.ID]; ok {
		repo.AutoReview = old.AutoReview
	} else {
		repo.AutoReview = false
	}
	f.repos[repo.ID] = *repo
	return nil
}

func (f *fakeRepos) GetByID(_ context.Context, id string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return nil, apperror.NotFound("repository", id)
	}
	return &r, nil
}

func (f *fakeRepos) ToggleAutoReview(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return false, apperror.NotFound("repository", id)
	}
	r.AutoReview = !r.AutoReview
	f.repos[id] = r
	return r.AutoReview, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []model.Message
	err  error
}

func (f *fakeMessages) Create(_ context.Context, msg *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	msg.ID = fmt.Sprintf("msg-%d", len(f.msgs)+1)
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeMessages) Conversation(_ context.Context, a, b string) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Message{}
	for _, m := range f.msgs {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]model.LineJob
	next int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]model.LineJob)}
}

func (f *fakeJobs) Create(_ context.Context, job *model.LineJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	job.ID = fmt.Sprintf("job-%d", f.next)
	job.Status = model.LineJobQueued
	f.jobs[job.ID] = *job
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id string) (*model.LineJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, apperror.NotFound("line job", id)
	}
	return &j, nil
}

func (f *fakeJobs) MarkRunning(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return apperror.NotFound("line job", id)
	}
	if j.Status == model.LineJobQueued {
		j.Status = model.LineJobRunning
		f.jobs[id] = j
	}
	return nil
}

func (f *fakeJobs) Finish(_ context.Context, id string, status model.LineJobStatus, total int64, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return apperror.NotFound("line job", id)
	}
	j.Status, j.TotalLines, j.Error = status, total, errMsg
	f.jobs[id] = j
	return nil
}

// =========================================================================
// FAKE UPSTREAM
// =========================================================================

type fakeProvider struct {
	token string
	err   error
	codes []string
}

func (f *fakeProvider) AuthURL(state string) string {
	return "https://github.example/login/oauth/authorize?state=" + state
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

type fakeUpstream struct {
	profile   *model.Profile
	repos     []model.Repository
	stats     model.RepoStats
	followers []model.Contact
	following []model.Contact
	err       error

	// statsArgs records the token and fullName of the last RepoStats call.
	statsArgs [2]string
}

func (f *fakeUpstream) Profile(_ context.Context, _ string) (*model.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeUpstream) ListRepos(_ context.Context, _ string) ([]model.Repository, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]model.Repository(nil), f.repos...), nil
}

func (f *fakeUpstream) RepoStats(_ context.Context, token, fullName string) (model.RepoStats, error) {
	f.statsArgs = [2]string{token, fullName}
	return f.stats, f.err
}

func (f *fakeUpstream) Followers(_ context.Context, _ string) ([]model.Contact, error) {
	return f.followers, f.err
}

func (f *fakeUpstream) Following(_ context.Context, _ string) ([]model.Contact, error) {
	return f.following, f.err
}

// =========================================================================
// FAKE RUNNER
// =========================================================================

// fakeRunner completes every job synchronously inside Submit with the
// configured result, or refuses it when submitErr is set.
type fakeRunner struct {
	total     int64
	err       error
	submitErr error
	sources   []linecount.Source
}

func (f *fakeRunner) Submit(job linecount.Job, cb linecount.Callbacks) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.sources = append(f.sources, job.Source)
	if cb.Started != nil {
		cb.Started(job)
	}
	job.TotalLines, job.Err = f.total, f.err
	cb.Finished(job)
	return nil
}
