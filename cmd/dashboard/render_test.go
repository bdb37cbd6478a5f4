package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/view"
)

func TestFormatEntry(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)

	pending := view.Entry{
		Message: model.Message{SenderID: "alice", Content: "hi", Timestamp: at},
		TempID:  "tmp",
		Pending: true,
	}
	assert.Equal(t, "[09:30] you: hi (sending)", formatEntry(pending, "alice"))

	incoming := view.Entry{Message: model.Message{ID: "m1", SenderID: "bob", Content: "yo", Timestamp: at}}
	assert.Equal(t, "[09:30] bob: yo", formatEntry(incoming, "alice"))
}

func TestFormatLastCommit(t *testing.T) {
	assert.Equal(t, model.LastCommitUnknown, formatLastCommit(model.LastCommitUnknown))

	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, at.Local().Format("2006-01-02 15:04"), formatLastCommit(at.Format(time.RFC3339)))
}

func TestPrintRepos(t *testing.T) {
	var buf bytes.Buffer
	printRepos(&buf, []model.Repository{
		{ID: "1", Name: "alpha", Stars: 3, Private: true, AutoReview: true},
	})

	out := buf.String()
	assert.Contains(t, out, "AUTO-REVIEW")
	assert.Regexp(t, `1\s+alpha\s+private\s+3\s+-\s+on`, out)
}
