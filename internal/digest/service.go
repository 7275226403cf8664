// Package digest turns a user's recent GitHub events into a generated
// natural language summary.
package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
	"ghdash/internal/proxy"
	"ghdash/internal/upstream"
	"ghdash/internal/validation"
)

//go:generate mockgen -destination=../mocks/mocks.go -package=mocks ghdash/internal/digest Generator,Fetcher

var ErrInvalidIdentity = errors.New("username is required")

// Generator produces text from a prompt. Implementations must not retry.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Fetcher interface {
	Fetch(ctx context.Context, resourcePath string) upstream.Outcome
}

// UpstreamError reports a non-success status from the events fetch.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github events returned status %d", e.Status)
}

type Digest struct {
	Username    string    `json:"username"`
	Period      Period    `json:"period"`
	GeneratedAt time.Time `json:"generatedAt"`
	Text        string    `json:"digest"`
	EventCount  int       `json:"eventCount"`
}

type Service struct {
	fetcher   Fetcher
	generator Generator
	logger    logging.Logger
	now       func() time.Time
}

func NewService(f Fetcher, g Generator, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		fetcher:   f,
		generator: g,
		logger:    logger,
		now:       time.Now,
	}
}

// Summarize validates the period, fetches the identity's events, reduces
// them and asks the generator for a digest. Nothing is fetched for an
// invalid period, and the generator is not called when the fetch fails.
func (s *Service) Summarize(ctx context.Context, identity, rawPeriod string) (*Digest, error) {
	log := logging.FromContext(ctx, s.logger).With("identity", identity)

	period, err := ParsePeriod(rawPeriod)
	if err != nil {
		metrics.IncDigestRequest("invalid", "invalid_period")
		return nil, err
	}
	if err := validation.Get().Var(identity, "required"); err != nil {
		metrics.IncDigestRequest(string(period), "invalid_identity")
		return nil, ErrInvalidIdentity
	}

	out := s.fetcher.Fetch(ctx, proxy.EventsPath(identity, period.PageSize()))
	if out.Status != http.StatusOK {
		log.Warn("failed to fetch events", "status", out.Status, "period", string(period))
		metrics.IncDigestRequest(string(period), "upstream_error")
		return nil, &UpstreamError{Status: out.Status}
	}

	events, err := ParseEvents(out.Body)
	if err != nil {
		log.Error("events body could not be reduced", "error", err)
		metrics.IncDigestRequest(string(period), "malformed")
		return nil, err
	}

	stats := Reduce(events)
	prompt := RenderPrompt(identity, period, stats)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error("failed to generate digest", "error", err, "period", string(period))
		metrics.IncDigestRequest(string(period), "generator_error")
		return nil, fmt.Errorf("generate digest: %w", err)
	}

	metrics.IncDigestRequest(string(period), "ok")
	return &Digest{
		Username:    identity,
		Period:      period,
		GeneratedAt: s.now().UTC(),
		Text:        text,
		EventCount:  stats.Total,
	}, nil
}
