// Package archive writes an append-only transcript of completed chat turns.
// It is audit output only; the conversation cache is never rebuilt from it.
package archive

import (
	"context"
	"time"
)

// TurnRecord stores a single user or assistant conversational turn.
type TurnRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ExchangeID  string    `json:"exchange_id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	PIIRedacted bool      `json:"pii_redacted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists transcript turns.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	Close() error
}
