package model

import "github.com/google/uuid"

// ChatMessage is one persisted chat line. Append-only: rows are never
// mutated or deleted by the relay.
type ChatMessage struct {
	ID   uuid.UUID // Primary key, generated at ingestion
	Room string    // Room the message was posted to
	CID  string    // Client-supplied correlation token, may be empty
	User string    // Declared display name (unauthenticated)
	Text string    // Message body, non-empty after trimming
	TS   int64     // Ingestion time (ms since epoch)
}
