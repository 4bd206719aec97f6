package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwest/chatrelay/internal/model"
)

// Messages is the pgx-backed chat message store.
type Messages struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewMessages creates a message store on the given pool.
func NewMessages(db *pgxpool.Pool, logger *slog.Logger) *Messages {
	if logger == nil {
		logger = slog.Default()
	}
	return &Messages{db: db, logger: logger}
}

// AppendMessage inserts one chat message. A repeated (room, cid) pair
// from a client retry hits the partial unique index and is dropped by
// ON CONFLICT rather than duplicated.
func (s *Messages) AppendMessage(ctx context.Context, msg model.ChatMessage) error {
	ct, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, room, cid, author, body, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, msg.ID, msg.Room, msg.CID, msg.User, msg.Text, msg.TS)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if ct.RowsAffected() == 0 {
		s.logger.Debug("duplicate message dropped", "room", msg.Room, "cid", msg.CID)
	}
	return nil
}

// Recent returns the most recent messages for a room in chronological
// order (oldest first).
func (s *Messages) Recent(ctx context.Context, room string, limit int) ([]model.ChatMessage, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, room, cid, author, body, ts
		FROM messages
		WHERE room = $1
		ORDER BY ts DESC, id DESC
		LIMIT $2
	`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.ChatMessage
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.Room, &m.CID, &m.User, &m.Text, &m.TS); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	// Newest-first from the index, oldest-first for the client.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
