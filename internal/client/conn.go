package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/repo-dashboard/internal/model"
)

// Relay event names, mirrored from the server.
const (
	eventAuthenticate  = "authenticate"
	eventAuthenticated = "authenticated"
	eventSendMessage   = "sendMessage"
	eventTyping        = "typing"
	eventNewMessage    = "newMessage"
	eventError         = "error"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	eventBuffer  = 64
)

// ErrAuthRejected is returned by Dial when the server refuses the token.
var ErrAuthRejected = errors.New("client: relay rejected the session token")

// Event is one server-to-client relay event. Exactly one of Message, Typing
// or Error is set.
type Event struct {
	Name    string
	Message *model.Message
	Typing  *Typing
	Error   string
}

// Typing is the data of a typing event.
type Typing struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is an authenticated relay connection. Events are delivered on
// Events() until the connection drops, then the channel is closed.
type Conn struct {
	ws     *websocket.Conn
	userID string
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// Dial opens the relay socket at baseURL and authenticates with token. It
// returns once the server has confirmed the identity.
func Dial(ctx context.Context, baseURL, token string) (*Conn, error) {
	wsURL, err := relayURL(baseURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: dialing relay: %w", err)
	}

	c := &Conn{ws: ws, events: make(chan Event, eventBuffer)}
	if err := c.write(eventAuthenticate, token); err != nil {
		ws.Close()
		return nil, err
	}

	// Wait for the verdict. The deadline follows ctx so a silent server
	// cannot hang the caller.
	if dl, ok := ctx.Deadline(); ok {
		ws.SetReadDeadline(dl)
	}
	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			ws.Close()
			return nil, fmt.Errorf("client: waiting for authentication: %w", err)
		}
		switch env.Event {
		case eventAuthenticated:
			var data struct {
				UserID string `json:"userId"`
			}
			_ = json.Unmarshal(env.Data, &data)
			c.userID = data.UserID
			ws.SetReadDeadline(time.Time{})
			go c.readLoop()
			return c, nil
		case eventError:
			ws.Close()
			return nil, ErrAuthRejected
		}
	}
}

func relayURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("client: invalid base URL %q: %w", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("client: base URL %q must be http or https", baseURL)
	}
	u.Path += "/ws"
	return u.String(), nil
}

// UserID is the identity the server confirmed.
func (c *Conn) UserID() string { return c.userID }

// Events returns the inbound event stream.
func (c *Conn) Events() <-chan Event { return c.events }

// Send asks the server to persist and deliver a message. The confirmed
// message comes back as a newMessage event.
func (c *Conn) Send(receiverID, content string) error {
	return c.write(eventSendMessage, map[string]string{"receiverId": receiverID, "content": content})
}

// Typing tells receiverID that the user is typing.
func (c *Conn) Typing(receiverID string) error {
	return c.write(eventTyping, Typing{SenderID: c.userID, ReceiverID: receiverID})
}

// Close sends a close frame and drops the connection. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// write serializes writers; gorilla allows one concurrent writer.
func (c *Conn) write(event string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(outbound{Event: event, Data: data}); err != nil {
		return fmt.Errorf("client: sending %s: %w", event, err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer close(c.events)

	for {
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			return
		}

		ev := Event{Name: env.Event}
		switch env.Event {
		case eventNewMessage:
			var m model.Message
			if json.Unmarshal(env.Data, &m) != nil {
				continue
			}
			ev.Message = &m
		case eventTyping:
			var t Typing
			if json.Unmarshal(env.Data, &t) != nil {
				continue
			}
			ev.Typing = &t
		case eventError:
			_ = json.Unmarshal(env.Data, &ev.Error)
		default:
			continue
		}
		c.events <- ev
	}
}
