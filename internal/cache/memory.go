package cache

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 32

type shard struct {
	mu    sync.RWMutex
	items map[string]*Entry
}

// Memory is a process local Store split into independently locked shards.
// Expiry is the only removal path: Get treats expired entries as absent and
// Sweep drops them in bulk.
type Memory struct {
	shards []*shard
	mask   uint64
	now    func() time.Time
}

type Option func(*Memory)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory builds a store with the shard count rounded up to a power of
// two. Non-positive counts fall back to 32.
func NewMemory(shards int, opts ...Option) *Memory {
	if shards <= 0 {
		shards = defaultShards
	}
	n := 1
	for n < shards {
		n <<= 1
	}

	m := &Memory{
		shards: make([]*shard, n),
		mask:   uint64(n - 1),
		now:    time.Now,
	}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]*Entry)}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)&m.mask]
}

func (m *Memory) Get(ctx context.Context, key string) (*Entry, bool) {
	s := m.shardFor(key)

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if e.Expired(m.now()) {
		s.mu.Lock()
		if cur, ok := s.items[key]; ok && cur == e {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e, true
}

// Set stores a private copy of entry under key, replacing any previous
// entry wholesale.
func (m *Memory) Set(ctx context.Context, key string, entry *Entry) {
	if entry == nil {
		return
	}
	stored := &Entry{
		Status:    entry.Status,
		Body:      append([]byte(nil), entry.Body...),
		ExpiresAt: entry.ExpiresAt,
	}

	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = stored
	s.mu.Unlock()
}

// Sweep removes every expired entry and returns how many were dropped.
func (m *Memory) Sweep() int {
	now := m.now()
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if e.Expired(now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len counts stored entries, expired ones included until swept.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
