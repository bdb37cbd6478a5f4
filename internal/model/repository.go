package model

import "time"

// Repository is the locally cached metadata for one upstream repository.
//
// Every field except AutoReview is refreshed from the provider on each list
// call. AutoReview is the only field this service owns: it defaults to false on
// first sight and is only ever changed by the toggle endpoint.
type Repository struct {
	ID            string    `json:"id"`            // upstream id, rendered as a decimal string
	Name          string    `json:"name"`          // e.g. "repo-dashboard"
	FullName      string    `json:"fullName"`      // e.g. "sakif/repo-dashboard"
	Description   string    `json:"description"`
	URL           string    `json:"url"`           // html_url
	CloneURL      string    `json:"cloneUrl"`
	Stars         int       `json:"stars"`
	DefaultBranch string    `json:"defaultBranch"`
	Private       bool      `json:"private"`
	UpdatedAt     time.Time `json:"updatedAt"`     // last upstream update, not last refresh
	AutoReview    bool      `json:"autoReview"`
}

// RepoStats is the reduced view of the four stats calls.
type RepoStats struct {
	CommitCount  int    `json:"commitCount"`
	PullRequests int    `json:"pullRequests"`
	OpenIssues   int    `json:"openIssues"`
	Contributors int    `json:"contributors"`
	LastCommit   string `json:"lastCommit"` // RFC 3339 timestamp or "Unknown"
}

// LastCommitUnknown is reported when a repository has no commits.
const LastCommitUnknown = "Unknown"
