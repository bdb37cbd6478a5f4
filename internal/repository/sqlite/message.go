package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/repo-dashboard/internal/model"
	"github.com/sakif/repo-dashboard/internal/repository"
)

var _ repository.MessageRepository = (*MessageDB)(nil)

// MessageDB stores direct messages in the messages table.
type MessageDB struct {
	conn *sql.DB
}

// Create inserts a message, filling in ID and Timestamp when unset.
func (m *MessageDB) Create(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		msg.ID = xid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = model.MessageDelivered
	}

	_, err := m.conn.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, timestamp, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.SenderID,
		msg.ReceiverID,
		msg.Content,
		msg.Timestamp.UnixNano(),
		string(msg.Status),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating message: %w", err)
	}
	return nil
}

// Conversation returns both directions of the a<->b thread, oldest first.
// Ties on timestamp fall back to id, which xid makes creation-ordered.
func (m *MessageDB) Conversation(ctx context.Context, a, b string) ([]model.Message, error) {
	rows, err := m.conn.QueryContext(ctx,
		`SELECT id, sender_id, receiver_id, content, timestamp, status
		 FROM messages
		 WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		 ORDER BY timestamp ASC, id ASC`,
		a, b, b, a,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing conversation: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		var (
			msg    model.Message
			ts     int64
			status string
		)
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &ts, &status); err != nil {
			return nil, fmt.Errorf("sqlite: scanning message: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts).UTC()
		msg.Status = model.MessageStatus(status)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating messages: %w", err)
	}
	return msgs, nil
}
