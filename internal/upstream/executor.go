package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ghdash/internal/logging"
	"ghdash/internal/metrics"
)

const (
	DefaultBaseURL   = "https://api.github.com/"
	DefaultUserAgent = "GitHubDashboardAPI"
	DefaultAccept    = "application/vnd.github+json"
)

// TransportErrorBody is the body of every synthetic outcome.
var TransportErrorBody = []byte(`{"message":"Internal error contacting GitHub API"}`)

// Outcome is the normalized result of one upstream request. It is always
// populated; Synthetic marks outcomes fabricated after a transport failure.
type Outcome struct {
	Status    int
	Body      []byte
	Synthetic bool
}

func (o Outcome) OK() bool {
	return o.Status == http.StatusOK
}

func transportFailure() Outcome {
	return Outcome{
		Status:    http.StatusInternalServerError,
		Body:      append([]byte(nil), TransportErrorBody...),
		Synthetic: true,
	}
}

type Config struct {
	BaseURL   string
	Token     string
	UserAgent string
	Accept    string
	Timeout   time.Duration
}

// Executor issues authenticated GET requests against the GitHub API.
type Executor struct {
	base      string
	token     string
	userAgent string
	accept    string
	client    *http.Client
	logger    logging.Logger
}

func NewExecutor(cfg Config, rt http.RoundTripper, logger logging.Logger) (*Executor, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: unsupported scheme %q", base, u.Scheme)
	}

	if rt == nil {
		rt = NewTransport()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	e := &Executor{
		base:      strings.TrimRight(u.String(), "/") + "/",
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		accept:    cfg.Accept,
		client:    &http.Client{Transport: rt, Timeout: cfg.Timeout},
		logger:    logger,
	}
	if e.userAgent == "" {
		e.userAgent = DefaultUserAgent
	}
	if e.accept == "" {
		e.accept = DefaultAccept
	}
	return e, nil
}

// Do requests resourcePath, a path relative to the base URL that already
// carries its encoded query. Transport failures never escape: they are
// logged and turned into a synthetic 500 outcome. Non-2xx statuses are
// returned verbatim.
func (e *Executor) Do(ctx context.Context, resourcePath string) Outcome {
	start := time.Now()
	log := logging.FromContext(ctx, e.logger)

	out, err := e.do(ctx, resourcePath)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("github request abandoned", "path", resourcePath, "error", err)
		} else {
			log.Error("github request failed", "path", resourcePath, "error", err)
		}
		metrics.ObserveUpstream("error", time.Since(start))
		return transportFailure()
	}

	metrics.ObserveUpstream(strconv.Itoa(out.Status), time.Since(start))
	return out
}

func (e *Executor) do(ctx context.Context, resourcePath string) (Outcome, error) {
	target := e.base + strings.TrimLeft(resourcePath, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", e.accept)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read body: %w", err)
	}

	return Outcome{Status: resp.StatusCode, Body: body}, nil
}
