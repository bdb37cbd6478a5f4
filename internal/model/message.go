package model

import "time"

// MessageStatus is the delivery status recorded with a message.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
)

// Message is one direct message between two upstream users.
// SenderID and ReceiverID are opaque provider user ids.
type Message struct {
	ID         string        `json:"_id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Content    string        `json:"content"`
	Timestamp  time.Time     `json:"timestamp"`
	Status     MessageStatus `json:"status"`
}
