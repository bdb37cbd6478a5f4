package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sakif/repo-dashboard/internal/apperror"
	"github.com/sakif/repo-dashboard/internal/model"
)

// TokenValidator decodes a session token. *auth.TokenService satisfies it.
type TokenValidator interface {
	Validate(token string) (*model.Principal, error)
}

// MessageSender persists a message and returns the stored record.
type MessageSender interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*model.Message, error)
}

const sendTimeout = 10 * time.Second

// Relay upgrades HTTP requests to websocket connections and runs the event
// protocol on them.
type Relay struct {
	hub      *Hub
	tokens   TokenValidator
	messages MessageSender
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Relay. allowedOrigins is checked against the Origin header;
// "*" allows every origin and requests without an Origin header (non-browser
// clients) are always allowed.
func New(tokens TokenValidator, messages MessageSender, allowedOrigins []string, logger *slog.Logger) *Relay {
	return &Relay{
		hub:      NewHub(),
		tokens:   tokens,
		messages: messages,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// Hub exposes the connection registry, mainly for tests and health output.
func (rl *Relay) Hub() *Hub { return rl.hub }

// Close disconnects every client.
func (rl *Relay) Close() { rl.hub.CloseAll() }

// ServeHTTP upgrades the connection, starts the write pump and then reads
// until the connection closes. It does not return before that, so wrapping
// middleware sees the full connection lifetime.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		rl.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(conn, rl.logger)
	rl.hub.Register(c)
	rl.logger.Debug("websocket connected", slog.String("remote", r.RemoteAddr))

	go c.writePump()
	rl.readPump(c)
}

func (rl *Relay) readPump(c *Client) {
	defer func() {
		rl.hub.Unregister(c)
		if !c.closing {
			c.kick()
		}
		rl.logger.Debug("websocket disconnected", slog.String("userID", c.userID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rl.logger.Debug("websocket read error", slog.String("error", err.Error()))
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			rl.sendError(c, "Malformed event")
			continue
		}
		if !rl.handle(c, env) {
			return
		}
	}
}

// handle dispatches one event. It returns false when the connection must be
// closed.
func (rl *Relay) handle(c *Client, env Envelope) bool {
	switch env.Event {
	case EventAuthenticate:
		return rl.authenticate(c, env.Data)
	case EventSendMessage:
		if c.userID == "" {
			rl.logger.Debug("ignoring sendMessage from unidentified connection")
			return true
		}
		rl.sendMessage(c, env.Data)
	case EventTyping:
		if c.userID == "" {
			return true
		}
		rl.typing(c, env.Data)
	default:
		rl.sendError(c, "Unknown event")
	}
	return true
}

func (rl *Relay) authenticate(c *Client, data json.RawMessage) bool {
	var token string
	if err := json.Unmarshal(data, &token); err != nil || token == "" {
		rl.rejectAuth(c, errors.New("token is not a string"))
		return false
	}

	p, err := rl.tokens.Validate(token)
	if err != nil {
		rl.rejectAuth(c, err)
		return false
	}

	c.userID = p.ID
	rl.hub.Join(p.ID, c)
	rl.logger.Info("websocket authenticated", slog.String("userID", p.ID), slog.String("username", p.Username))

	rl.emit(c, EventAuthenticated, AuthenticatedPayload{UserID: p.ID})
	return true
}

func (rl *Relay) rejectAuth(c *Client, cause error) {
	rl.logger.Info("websocket authentication failed", slog.String("error", cause.Error()))
	rl.sendError(c, "Authentication failed")
	c.closeAfterFlush()
}

func (rl *Relay) sendMessage(c *Client, data json.RawMessage) {
	var in SendMessagePayload
	if err := json.Unmarshal(data, &in); err != nil {
		rl.sendError(c, "Malformed sendMessage payload")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	msg, err := rl.messages.Send(ctx, c.userID, in.ReceiverID, in.Content)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && errors.Is(err, apperror.ErrValidation) {
			rl.sendError(c, appErr.Message)
			return
		}
		rl.logger.Error("failed to persist message",
			slog.String("senderID", c.userID),
			slog.String("receiverID", in.ReceiverID),
			slog.String("error", err.Error()),
		)
		rl.sendError(c, "Failed to send message")
		return
	}

	frame, err := encode(EventNewMessage, msg)
	if err != nil {
		rl.logger.Error("failed to encode message", slog.String("error", err.Error()))
		return
	}
	rl.hub.Broadcast(frame, msg.SenderID, msg.ReceiverID)
}

func (rl *Relay) typing(c *Client, data json.RawMessage) {
	var in TypingPayload
	if err := json.Unmarshal(data, &in); err != nil || in.ReceiverID == "" {
		rl.sendError(c, "Malformed typing payload")
		return
	}
	in.SenderID = c.userID

	frame, err := encode(EventTyping, in)
	if err != nil {
		return
	}
	rl.hub.Broadcast(frame, in.ReceiverID)
}

func (rl *Relay) sendError(c *Client, message string) {
	rl.emit(c, EventError, message)
}

func (rl *Relay) emit(c *Client, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		rl.logger.Error("failed to encode event", slog.String("event", event), slog.String("error", err.Error()))
		return
	}
	c.trySend(frame)
}
