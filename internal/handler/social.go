package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/repo-dashboard/internal/model"
)

// MessageHistory is the part of *service.MessageService the handler needs.
type MessageHistory interface {
	History(ctx context.Context, p *model.Principal, receiverID string) ([]model.Message, error)
}

// ContactLister is the part of *service.ContactService the handler needs.
type ContactLister interface {
	List(ctx context.Context, p *model.Principal) ([]model.Contact, error)
}

// SocialHandler serves message history and the contact list. Live messages
// go over the websocket relay, not through here.
type SocialHandler struct {
	messages MessageHistory
	contacts ContactLister
	logger   *slog.Logger
}

func NewSocialHandler(messages MessageHistory, contacts ContactLister, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{messages: messages, contacts: contacts, logger: logger}
}

// HandleMessages returns the caller's conversation with one user, oldest first.
//
// HTTP: GET /api/messages/{receiverId}
func (h *SocialHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	msgs, err := h.messages.History(r.Context(), p, r.PathValue("receiverId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleContacts returns followers and following, de-duplicated.
//
// HTTP: GET /api/contacts
func (h *SocialHandler) HandleContacts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r, h.logger)
	if !ok {
		return
	}

	contacts, err := h.contacts.List(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}
