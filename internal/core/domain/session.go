package domain

import "time"

// SessionMessage is one turn of chat history. History is carried as an opaque
// input to answer generation; retrieval never reads it.
type SessionMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
