package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/repo-dashboard/internal/model"
)

func TestMessageCreate_FillsDefaults(t *testing.T) {
	m := newTestDB(t).Messages()

	msg := &model.Message{SenderID: "1", ReceiverID: "2", Content: "hi"}
	if err := m.Create(context.Background(), msg); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if msg.ID == "" {
		t.Error("Create() did not set ID")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Create() did not set Timestamp")
	}
	if msg.Status != model.MessageDelivered {
		t.Errorf("Status = %q, want %q", msg.Status, model.MessageDelivered)
	}
}

func TestMessageConversation_BothDirectionsAscending(t *testing.T) {
	m := newTestDB(t).Messages()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	seed := []model.Message{
		{SenderID: "2", ReceiverID: "1", Content: "second", Timestamp: base.Add(2 * time.Minute)},
		{SenderID: "1", ReceiverID: "2", Content: "first", Timestamp: base.Add(time.Minute)},
		{SenderID: "1", ReceiverID: "3", Content: "other thread", Timestamp: base},
		{SenderID: "1", ReceiverID: "2", Content: "third", Timestamp: base.Add(3 * time.Minute)},
	}
	for i := range seed {
		if err := m.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	got, err := m.Conversation(ctx, "2", "1")
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("Conversation() returned %d messages, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("message[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestMessageConversation_EmptyIsNotNil(t *testing.T) {
	m := newTestDB(t).Messages()

	got, err := m.Conversation(context.Background(), "1", "2")
	if err != nil {
		t.Fatalf("Conversation() error = %v", err)
	}
	// nil would serialise as JSON null; clients expect [].
	if got == nil {
		t.Error("Conversation() = nil, want empty slice")
	}
}
