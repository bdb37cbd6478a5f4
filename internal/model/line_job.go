package model

import "time"

// LineJobStatus tracks a line-count job through its lifecycle.
type LineJobStatus string

const (
	LineJobQueued    LineJobStatus = "queued"
	LineJobRunning   LineJobStatus = "running"
	LineJobSucceeded LineJobStatus = "succeeded"
	LineJobFailed    LineJobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s LineJobStatus) Terminal() bool {
	return s == LineJobSucceeded || s == LineJobFailed
}

// LineJob is one request to clone a repository and count its lines.
type LineJob struct {
	ID         string        `json:"jobId"`
	RepoID     string        `json:"repoId"`
	// OwnerID is the user who queued the job. Only that user may read it.
	OwnerID    string        `json:"-"`
	Status     LineJobStatus `json:"status"`
	TotalLines int64         `json:"totalLines"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
