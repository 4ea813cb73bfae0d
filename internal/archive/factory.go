package archive

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed archive when configured, otherwise a
// store that drops every record. With redact set, PII is masked before write.
func NewStore(ctx context.Context, databaseURL string, redact bool) (Store, error) {
	var store Store = DiscardStore{}
	if strings.TrimSpace(databaseURL) != "" {
		pg, err := NewPostgresStore(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		store = pg
	}
	if redact {
		store = NewRedactingStore(store)
	}
	return store, nil
}

// DiscardStore is used when no archive database is configured.
type DiscardStore struct{}

func (DiscardStore) SaveTurn(context.Context, TurnRecord) error { return nil }

func (DiscardStore) Close() error { return nil }
