// Package api exposes the GitHub proxy, dashboard and digest over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ghdash/internal/dashboard"
	"ghdash/internal/digest"
	"ghdash/internal/logging"
	"ghdash/internal/proxy"
	"ghdash/internal/upstream"
)

const maxPerPage = 100

const (
	msgDashboardFailed = "Failed to aggregate dashboard data"
	msgEventsFailed    = "Failed to fetch GitHub events"
	msgDigestFailed    = "Failed to generate digest"
)

type Fetcher interface {
	Fetch(ctx context.Context, resourcePath string) upstream.Outcome
}

type DashboardBuilder interface {
	Build(ctx context.Context, identity string) (*dashboard.Document, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, identity, period string) (*digest.Digest, error)
}

type Handlers struct {
	fetcher   Fetcher
	dashboard DashboardBuilder
	digest    Summarizer
	logger    logging.Logger
}

func NewHandlers(f Fetcher, d DashboardBuilder, s Summarizer, logger logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handlers{fetcher: f, dashboard: d, digest: s, logger: logger}
}

// passThrough relays the upstream outcome verbatim.
func (h *Handlers) passThrough(w http.ResponseWriter, r *http.Request, resourcePath string) {
	out := h.fetcher.Fetch(r.Context(), resourcePath)
	writeRaw(w, out.Status, out.Body)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, proxy.UserPath(chi.URLParam(r, "username")))
}

func (h *Handlers) GetRepos(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, proxy.ReposPath(chi.URLParam(r, "username")))
}

func (h *Handlers) GetEvents(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, proxy.EventsPath(chi.URLParam(r, "username"), 0))
}

// ListUsers relays the global user listing. since and per_page must be
// non-negative integers; per_page is capped at 100.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, err := optionalInt(q.Get("since"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "since must be a non-negative integer")
		return
	}
	perPage, err := optionalInt(q.Get("per_page"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "per_page must be a non-negative integer")
		return
	}
	if perPage != nil && *perPage > maxPerPage {
		capped := maxPerPage
		perPage = &capped
	}

	h.passThrough(w, r, proxy.UsersPath(since, perPage))
}

func (h *Handlers) GetCommits(w http.ResponseWriter, r *http.Request) {
	h.passThrough(w, r, proxy.CommitsPath(
		chi.URLParam(r, "owner"),
		chi.URLParam(r, "repo"),
		r.URL.Query().Get("author"),
	))
}

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "username")

	doc, err := h.dashboard.Build(r.Context(), identity)
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("dashboard aggregation failed",
			"identity", identity,
			"error", err,
		)
		writeMessage(w, http.StatusInternalServerError, msgDashboardFailed)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handlers) GetDigest(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "username")

	d, err := h.digest.Summarize(r.Context(), identity, r.URL.Query().Get("period"))
	if err != nil {
		var upErr *digest.UpstreamError
		switch {
		case errors.Is(err, digest.ErrInvalidPeriod):
			writeMessage(w, http.StatusBadRequest, "Period must be 'daily' or 'weekly'")
		case errors.Is(err, digest.ErrInvalidIdentity):
			writeMessage(w, http.StatusBadRequest, "Username is required")
		case errors.As(err, &upErr):
			writeMessage(w, upErr.Status, msgEventsFailed)
		default:
			logging.FromContext(r.Context(), h.logger).Error("digest generation failed",
				"identity", identity,
				"error", err,
			)
			writeMessage(w, http.StatusInternalServerError, msgDigestFailed)
		}
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func optionalInt(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, strconv.ErrRange
	}
	return &n, nil
}
