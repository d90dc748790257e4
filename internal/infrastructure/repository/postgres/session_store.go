package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

type SessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (r *SessionStore) AppendMessage(ctx context.Context, message domain.SessionMessage) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO session_messages (id, session_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5)
`, message.ID, message.SessionID, message.Role, message.Content, message.CreatedAt)
	if err != nil {
		return fmt.Errorf("append session message: %w", err)
	}
	return nil
}

// ListRecentMessages returns the last `limit` messages in chronological order.
func (r *SessionStore) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.SessionMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at
FROM session_messages
WHERE session_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent session messages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionMessage, 0, limit)
	for rows.Next() {
		var msg domain.SessionMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SessionStore) ClearSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
