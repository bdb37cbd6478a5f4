// Package relay is the websocket messaging relay.
//
// Every frame in both directions is a JSON envelope:
//
//	{"event": "sendMessage", "data": {"receiverId": "42", "content": "hi"}}
//
// A connection starts anonymous. It becomes identified after a successful
// "authenticate" event and from then on belongs to the broadcast group named
// after its user id. A user with several open tabs has several connections in
// the same group, and each of them receives every event for that user.
package relay

import "encoding/json"

// Client to server events.
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "sendMessage"
	EventTyping       = "typing"
)

// Server to client events. EventTyping is used in both directions.
const (
	EventAuthenticated = "authenticated"
	EventNewMessage    = "newMessage"
	EventError         = "error"
)

// Envelope is an inbound frame. Data is decoded per event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SendMessagePayload is the data of a sendMessage event.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// TypingPayload is the data of a typing event. The server overwrites
// SenderID with the identified user before relaying it.
type TypingPayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// AuthenticatedPayload is the data of an authenticated event.
type AuthenticatedPayload struct {
	UserID string `json:"userId"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outbound{Event: event, Data: data})
}
