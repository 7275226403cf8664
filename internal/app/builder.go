// Package app wires every ghdash component from configuration.
package app

import (
	"fmt"
	"net/http"
	"time"

	"ghdash/internal/api"
	"ghdash/internal/cache"
	"ghdash/internal/config"
	"ghdash/internal/dashboard"
	"ghdash/internal/digest"
	"ghdash/internal/llm"
	"ghdash/internal/logging"
	"ghdash/internal/proxy"
	"ghdash/internal/supervisor"
	"ghdash/internal/upstream"
)

// App is the assembled service, ready to be supervised.
type App struct {
	Handler http.Handler
	Server  *http.Server
	Store   *cache.Memory
	Tree    *supervisor.Tree
}

type Builder struct {
	cfg    *config.Config
	logger logging.Logger

	// Transport overrides the outbound transport for GitHub and Groq, for tests.
	Transport http.RoundTripper
}

func NewBuilder(cfg *config.Config, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Builder{
		cfg:    cfg,
		logger: logger,
	}
}

func (b *Builder) Build() (*App, error) {
	var rt http.RoundTripper = upstream.NewTransport()
	if b.Transport != nil {
		rt = b.Transport
	}

	exec, err := upstream.NewExecutor(upstream.Config{
		BaseURL:   b.cfg.GitHub.BaseURL,
		Token:     b.cfg.GitHub.Token,
		UserAgent: b.cfg.GitHub.UserAgent,
		Timeout:   b.cfg.GitHub.Timeout,
	}, rt, b.logger.With("component", "upstream"))
	if err != nil {
		return nil, fmt.Errorf("build github executor: %w", err)
	}

	store := cache.NewMemory(b.cfg.Cache.Shards)
	fetcher := proxy.NewFetcher(store, exec, b.cfg.Cache.TTL, b.logger.With("component", "cache"))

	generator := llm.New(llm.Config{
		APIURL:      b.cfg.Groq.APIURL,
		APIKey:      b.cfg.Groq.APIKey,
		Model:       b.cfg.Groq.Model,
		Temperature: b.cfg.Groq.Temperature,
		MaxTokens:   b.cfg.Groq.MaxTokens,
		Timeout:     b.cfg.Groq.Timeout,
	}, rt, b.logger.With("component", "llm"))

	handlers := api.NewHandlers(
		fetcher,
		dashboard.NewAggregator(fetcher, b.logger.With("component", "dashboard")),
		digest.NewService(fetcher, generator, b.logger.With("component", "digest")),
		b.logger,
	)

	handler, err := api.NewRouter(handlers, api.RouterConfig{
		CORSOrigins:  b.cfg.Server.CORSOrigins,
		IPBlockCIDRs: b.cfg.Server.IPBlockCIDRs,
		CacheSize:    store.Len,
	}, b.logger)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              b.cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var tlsFiles *supervisor.TLSFiles
	if b.cfg.Server.TLS.Enabled {
		tlsFiles = &supervisor.TLSFiles{
			CertFile: b.cfg.Server.TLS.CertFile,
			KeyFile:  b.cfg.Server.TLS.KeyFile,
		}
	}

	tree := supervisor.NewTree(b.logger.With("component", "supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: b.cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, tlsFiles, b.cfg.Server.ShutdownTimeout))
	tree.AddMaintenanceService(supervisor.NewJanitorService(store, b.cfg.Cache.SweepInterval, b.logger.With("component", "janitor")))

	return &App{
		Handler: handler,
		Server:  srv,
		Store:   store,
		Tree:    tree,
	}, nil
}
