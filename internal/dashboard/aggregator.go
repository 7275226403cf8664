// Package dashboard assembles a user's profile, repositories and recent
// events into one document.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
	"ghdash/internal/proxy"
	"ghdash/internal/upstream"
)

// ErrAggregation is returned when the aggregate itself could not be built,
// as opposed to one of its legs reporting a non-success status.
var ErrAggregation = errors.New("dashboard aggregation failed")

const malformedBody = "malformed upstream response"

type Fetcher interface {
	Fetch(ctx context.Context, resourcePath string) upstream.Outcome
}

// Leg is one upstream call of the aggregate. Data holds the upstream JSON
// verbatim, or null when the body was empty or unparseable.
type Leg struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error,omitempty"`
}

type Document struct {
	User   Leg `json:"user"`
	Repos  Leg `json:"repos"`
	Events Leg `json:"events"`
}

type Aggregator struct {
	fetcher Fetcher
	logger  logging.Logger
}

func NewAggregator(f Fetcher, logger logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Aggregator{fetcher: f, logger: logger}
}

// Build fetches the three legs concurrently and waits for all of them. A
// failed leg never cancels its siblings; every leg shares ctx, so the
// caller's cancellation reaches all of them.
func (a *Aggregator) Build(ctx context.Context, identity string) (doc *Document, err error) {
	log := logging.FromContext(ctx, a.logger).With("identity", identity)

	defer func() {
		if r := recover(); r != nil {
			log.Error("dashboard assembly panicked", "panic", fmt.Sprint(r))
			doc, err = nil, ErrAggregation
		}
	}()

	legs := []struct {
		name string
		path string
		dst  *Leg
	}{
		{"user", proxy.UserPath(identity), nil},
		{"repos", proxy.ReposPath(identity), nil},
		{"events", proxy.EventsPath(identity, 0), nil},
	}

	doc = &Document{}
	legs[0].dst = &doc.User
	legs[1].dst = &doc.Repos
	legs[2].dst = &doc.Events

	var g errgroup.Group
	for _, leg := range legs {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%s leg panicked: %v", leg.name, r)
				}
			}()
			out := a.fetcher.Fetch(ctx, leg.path)
			*leg.dst = toLeg(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("dashboard leg failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAggregation, err)
	}

	for _, leg := range legs {
		if leg.dst.Status != http.StatusOK {
			metrics.IncDashboardLegFailure(leg.name)
			log.Warn("dashboard leg returned non-success status",
				"leg", leg.name,
				"status", leg.dst.Status,
			)
		}
		if leg.dst.Error != "" {
			log.Warn("dashboard leg body is not valid JSON", "leg", leg.name)
		}
	}

	return doc, nil
}

func toLeg(out upstream.Outcome) Leg {
	leg := Leg{Status: out.Status}
	switch {
	case len(out.Body) == 0:
	case json.Valid(out.Body):
		leg.Data = json.RawMessage(out.Body)
	default:
		leg.Error = malformedBody
	}
	return leg
}
