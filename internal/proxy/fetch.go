package proxy

import (
	"context"
	"time"

	"ghdash/internal/cache"
	"ghdash/internal/logging"
	"ghdash/internal/metrics"
	"ghdash/internal/upstream"
)

const DefaultTTL = 60 * time.Second

// Executor performs one upstream request. *upstream.Executor satisfies it.
type Executor interface {
	Do(ctx context.Context, resourcePath string) upstream.Outcome
}

// Fetcher is a read-through cache in front of an Executor.
type Fetcher struct {
	Store    cache.Store
	Executor Executor
	TTL      time.Duration

	logger logging.Logger
	now    func() time.Time
}

func NewFetcher(store cache.Store, exec Executor, ttl time.Duration, logger logging.Logger) *Fetcher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Fetcher{
		Store:    store,
		Executor: exec,
		TTL:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Fetch returns the cached outcome for resourcePath when one is live, and
// otherwise asks the executor and stores what it got back, error statuses
// included. Synthetic transport failures are returned but never stored.
func (f *Fetcher) Fetch(ctx context.Context, resourcePath string) upstream.Outcome {
	key := Fingerprint(resourcePath)
	kind := ResourceKind(resourcePath)

	if f.Store != nil {
		if e, ok := f.Store.Get(ctx, key); ok {
			metrics.IncCacheHit(kind)
			return upstream.Outcome{Status: e.Status, Body: e.Body}
		}
	}
	metrics.IncCacheMiss(kind)

	out := f.Executor.Do(ctx, resourcePath)
	if out.Synthetic {
		return out
	}

	if f.Store != nil {
		f.Store.Set(ctx, key, &cache.Entry{
			Status:    out.Status,
			Body:      out.Body,
			ExpiresAt: f.now().Add(f.TTL),
		})
		logging.FromContext(ctx, f.logger).Debug("cached upstream outcome",
			"key", key,
			"status", out.Status,
			"ttl", f.TTL.String(),
		)
	}
	return out
}
