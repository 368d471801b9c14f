package server

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"
	"time"

	xhttp "FinScan/pkg/http"
	applogger "FinScan/pkg/logger"
)

// Lifecycle is a background component started before the HTTP server and
// stopped before it on shutdown.
type Lifecycle interface {
	Start() error
	Stop() error
}

// Resource is an infrastructure client closed last, in registration order.
type Resource struct {
	Name   string
	Closer io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	scheduler  Lifecycle
	sink       io.Closer
	resources  []Resource
	grace      time.Duration
}

// New creates a new App instance with all dependencies.
func New(log *applogger.Logger, httpServer *xhttp.Server, scheduler Lifecycle, sink io.Closer, resources ...Resource) *App {
	return &App{
		log:        log,
		httpServer: httpServer,
		scheduler:  scheduler,
		sink:       sink,
		resources:  resources,
		grace:      15 * time.Second,
	}
}

// Run starts the scheduler and the HTTP server and blocks until ctx is done or
// SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.scheduler != nil {
		if err := a.scheduler.Start(); err != nil {
			a.closeResources()
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		_ = a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops the scheduler, then the HTTP server, flushes the log
// collector, then closes sinks and infrastructure.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")
	var errs []error

	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.grace)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	// the collector may publish through a producer listed in resources
	if err := a.log.Close(); err != nil {
		errs = append(errs, err)
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("board sink close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	errs = append(errs, a.closeResources()...)
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error
	for _, r := range a.resources {
		if r.Closer == nil {
			continue
		}
		if err := r.Closer.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", r.Name), applogger.Error(err))
			errs = append(errs, err)
		}
	}
	return errs
}
