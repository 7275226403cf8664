package supervisor

import (
	"context"
	"time"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
)

type Sweeper interface {
	Sweep() int
	Len() int
}

// JanitorService periodically drops expired cache entries and publishes the
// live entry count. Reads already ignore expired entries; this only bounds
// memory held by fingerprints that are never requested again.
type JanitorService struct {
	store    Sweeper
	interval time.Duration
	logger   logging.Logger
}

func NewJanitorService(store Sweeper, interval time.Duration, logger logging.Logger) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &JanitorService{store: store, interval: interval, logger: logger}
}

func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *JanitorService) sweep() {
	removed := j.store.Sweep()
	live := j.store.Len()
	metrics.SetCacheEntries(live)
	if removed > 0 {
		j.logger.Debug("cache sweep", "removed", removed, "live", live)
	}
}

func (j *JanitorService) String() string {
	return "cache-janitor"
}
