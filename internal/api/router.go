package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
	"ghdash/internal/middleware"
)

const Prefix = "/api/github"

type RouterConfig struct {
	CORSOrigins  []string
	IPBlockCIDRs []string
	// CacheSize reports live cache entries for /healthz. Optional.
	CacheSize func() int
}

// NewRouter mounts the API under Prefix together with /healthz and
// /metrics.
func NewRouter(h *Handlers, cfg RouterConfig, logger logging.Logger) (http.Handler, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	ipFilter, err := middleware.IPFilter(logger, cfg.IPBlockCIDRs)
	if err != nil {
		return nil, fmt.Errorf("invalid ipBlockCIDRs: %w", err)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logger),
		chimw.RealIP,
		middleware.AccessLog(logger),
		chimw.Recoverer,
		ipFilter,
	)

	r.Get("/healthz", healthz(cfg.CacheSize))
	r.Handle("/metrics", metrics.Handler())

	r.Route(Prefix, func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))

		r.Get("/users", h.ListUsers)
		r.Get("/users/{username}", h.GetUser)
		r.Get("/users/{username}/repos", h.GetRepos)
		r.Get("/users/{username}/events", h.GetEvents)
		r.Get("/repos/{owner}/{repo}/commits", h.GetCommits)
		r.Get("/dashboard/{username}", h.GetDashboard)
		r.Get("/digest/{username}", h.GetDigest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r, nil
}

func healthz(size func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if size != nil {
			body["cacheEntries"] = size()
		}
		writeJSON(w, http.StatusOK, body)
	}
}
