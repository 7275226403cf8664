// Package supervisor runs the long lived parts of ghdash under a suture
// supervision tree.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"ghdash/internal/logging"
)

type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	// Default: 5
	FailureThreshold float64
	// FailureDecay is the rate at which failures decay in seconds.
	// Default: 30
	FailureDecay float64
	// FailureBackoff is how long to wait once the threshold is exceeded.
	// Default: 15s
	FailureBackoff time.Duration
	// ShutdownTimeout bounds how long each service gets to stop.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// Tree is a root supervisor with one child for the HTTP surface and one
// for background maintenance.
type Tree struct {
	root        *suture.Supervisor
	api         *suture.Supervisor
	maintenance *suture.Supervisor
}

func NewTree(logger logging.Logger, cfg TreeConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	childSpec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := childSpec
	rootSpec.EventHook = eventHook(logger)

	root := suture.New("ghdash", rootSpec)
	api := suture.New("api", childSpec)
	maintenance := suture.New("maintenance", childSpec)
	root.Add(api)
	root.Add(maintenance)

	return &Tree{root: root, api: api, maintenance: maintenance}
}

func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

func (t *Tree) AddMaintenanceService(svc suture.Service) suture.ServiceToken {
	return t.maintenance.Add(svc)
}

// Serve blocks until ctx is cancelled or the tree gives up.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

func eventHook(logger logging.Logger) suture.EventHook {
	return func(e suture.Event) {
		args := make([]any, 0, 2*len(e.Map()))
		for k, v := range e.Map() {
			args = append(args, k, v)
		}
		switch e.Type() {
		case suture.EventTypeBackoff, suture.EventTypeServicePanic, suture.EventTypeServiceTerminate,
			suture.EventTypeStopTimeout:
			logger.Error(e.String(), args...)
		default:
			logger.Info(e.String(), args...)
		}
	}
}
