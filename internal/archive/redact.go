package archive

import (
	"context"

	"github.com/ent0n29/gearhead/internal/policy"
)

// RedactingStore masks PII in turn content before handing it on.
type RedactingStore struct {
	next Store
}

func NewRedactingStore(next Store) *RedactingStore {
	return &RedactingStore{next: next}
}

func (s *RedactingStore) SaveTurn(ctx context.Context, record TurnRecord) error {
	var changed bool
	record.Content, changed = policy.RedactPII(record.Content)
	record.PIIRedacted = record.PIIRedacted || changed
	return s.next.SaveTurn(ctx, record)
}

func (s *RedactingStore) Close() error { return s.next.Close() }
