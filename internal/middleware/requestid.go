package middleware

import (
	"net/http"
	"strings"

	"ghdash/internal/logging"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, taken from the inbound header
// when present, and stores a logger carrying that id in the context.
func RequestID(logger logging.Logger) Middleware {
	if logger == nil {
		logger = logging.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if id == "" || len(id) > 128 {
				id = logging.NewRequestID()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := logging.ContextWithRequestID(r.Context(), id)
			ctx = logging.ContextWithLogger(ctx, logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
