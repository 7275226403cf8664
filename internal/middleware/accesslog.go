package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
)

// AccessLog records one log line and one metrics observation per request.
// The route label is the matched chi pattern, so path parameters do not
// inflate metric cardinality.
func AccessLog(logger logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			metrics.ObserveRequest(route, r.Method, strconv.Itoa(status), elapsed)

			log := logging.FromContext(r.Context(), logger)
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			}
			if status >= http.StatusInternalServerError {
				log.Warn("request completed", fields...)
			} else {
				log.Info("request completed", fields...)
			}
		})
	}
}
