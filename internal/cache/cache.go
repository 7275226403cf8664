package cache

import (
	"context"
	"time"
)

// Entry is a cached upstream outcome. Entries are never mutated once they
// have been handed to a Store.
type Entry struct {
	Status    int
	Body      []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now. A zero
// ExpiresAt never expires.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool)
	Set(ctx context.Context, key string, entry *Entry)
}
