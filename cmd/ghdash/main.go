package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ghdash/internal/app"
	"ghdash/internal/config"
	"ghdash/internal/logging"
	"ghdash/internal/metrics"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("GHDASH_CONFIG"), "path to optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	metrics.Init()

	if cfg.GitHub.Token == "" {
		logger.Warn("github token not configured, requests are unauthenticated and heavily rate limited")
	}
	if cfg.Groq.APIKey == "" {
		logger.Warn("groq api key not configured, digest requests will fail")
	}

	a, err := app.NewBuilder(cfg, logger).Build()
	if err != nil {
		logger.Error("build service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("ghdash listening",
		"address", cfg.Server.Address,
		"environment", cfg.Server.Environment,
		"tls", cfg.Server.TLS.Enabled,
		"cache_ttl", cfg.Cache.TTL.String(),
	)

	if err := a.Tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("supervisor exited", "error", err)
		os.Exit(1)
	}

	unstopped, _ := a.Tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logger.Warn("service did not stop in time", "service", svc.Name)
	}
	logger.Info("shut down")
}
