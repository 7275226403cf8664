package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"ghdash/internal/logging"
)

type ipFilter struct {
	logger logging.Logger
	nets   []*net.IPNet
}

// IPFilter constructs a middleware that blocks requests from client IPs
// within any of the given CIDR ranges.
func IPFilter(logger logging.Logger, cidrs []string) (Middleware, error) {
	if len(cidrs) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	}

	var nets []*net.IPNet
	for _, c := range cidrs {
		_, ipnet, err := net.ParseCIDR(strings.TrimSpace(c))
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", c, err)
		}
		nets = append(nets, ipnet)
	}

	f := &ipFilter{
		logger: logger,
		nets:   nets,
	}

	return f.middleware, nil
}

func (f *ipFilter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := f.extractClientIP(r)
		if clientIP == nil {
			next.ServeHTTP(w, r)
			return
		}

		for _, n := range f.nets {
			if n.Contains(clientIP) {
				logging.FromContext(r.Context(), f.logger).Warn("ip blocked",
					"ip", clientIP.String(),
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusForbidden, http.StatusText(http.StatusForbidden))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (f *ipFilter) extractClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}
