package view

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/repo-dashboard/internal/model"
)

// Entry is one line of the chat thread. Pending entries were inserted
// locally and have not been confirmed by the server yet; they have a TempID
// and no ID. A confirmed entry keeps the TempID it was reconciled from.
type Entry struct {
	model.Message
	TempID  string
	Pending bool
}

// Key identifies the entry for rendering: the server id when known.
func (e Entry) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.TempID
}

// Thread is the chat state for one signed-in user: the open conversation
// and unread counts for the others. Not safe for concurrent use; the chat
// loop owns it.
type Thread struct {
	self    string
	contact string
	entries []Entry
	seen    map[string]struct{}
	unread  map[string]int
	newID   func() string
}

func NewThread(selfID string) *Thread {
	return &Thread{
		self:   selfID,
		seen:   make(map[string]struct{}),
		unread: make(map[string]int),
		newID:  func() string { return uuid.NewString() },
	}
}

// Open switches to contactID with the fetched history, replacing whatever
// was shown, and clears that contact's unread count.
func (t *Thread) Open(contactID string, history []model.Message) {
	t.contact = contactID
	t.entries = make([]Entry, 0, len(history))
	ids := make(map[string]struct{}, len(history))
	for _, m := range history {
		if m.ID != "" {
			if _, dup := ids[m.ID]; dup {
				continue
			}
			ids[m.ID] = struct{}{}
			t.seen[m.ID] = struct{}{}
		}
		t.entries = append(t.entries, Entry{Message: m})
	}
	delete(t.unread, contactID)
}

// Contact returns the open conversation's contact id.
func (t *Thread) Contact() string { return t.contact }

// AddPending inserts an outgoing message before the server confirms it.
func (t *Thread) AddPending(content string, now time.Time) Entry {
	e := Entry{
		Message: model.Message{
			SenderID:   t.self,
			ReceiverID: t.contact,
			Content:    content,
			Timestamp:  now,
			Status:     model.MessageSent,
		},
		TempID:  t.newID(),
		Pending: true,
	}
	t.entries = append(t.entries, e)
	return e
}

// Receive applies a newMessage event and reports whether the open thread
// changed.
//
//   - Our own message to the open contact replaces the first pending entry
//     with the same content instead of being appended.
//   - A message whose id is already shown is dropped.
//   - A message for another conversation only bumps that sender's unread
//     count.
func (t *Thread) Receive(msg model.Message) bool {
	if msg.ID != "" {
		if _, dup := t.seen[msg.ID]; dup {
			return false
		}
		t.seen[msg.ID] = struct{}{}
	}

	if !t.inOpenConversation(msg) {
		if msg.ReceiverID == t.self && msg.SenderID != t.self {
			t.unread[msg.SenderID]++
		}
		return false
	}

	if msg.SenderID == t.self {
		for i, e := range t.entries {
			if e.Pending && e.Content == msg.Content {
				t.entries[i] = Entry{Message: msg, TempID: e.TempID}
				return true
			}
		}
	}

	t.entries = append(t.entries, Entry{Message: msg})
	return true
}

func (t *Thread) inOpenConversation(msg model.Message) bool {
	if t.contact == "" {
		return false
	}
	return (msg.SenderID == t.self && msg.ReceiverID == t.contact) ||
		(msg.SenderID == t.contact && msg.ReceiverID == t.self)
}

// Entries returns a copy of the open thread in display order.
func (t *Thread) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Unread returns how many messages from contactID arrived while another
// conversation was open.
func (t *Thread) Unread(contactID string) int {
	return t.unread[contactID]
}
