// Package server runs the relay's long-lived components and owns the
// signal-driven shutdown sequence.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component of the relay.
type Service interface {
	// Start blocks until the service ends. A nil return means the
	// service ended because it was stopped.
	Start() error
	// Stop asks the service to end. It must be safe to call while
	// Start is still blocking.
	Stop()
}

// FuncService adapts a start/stop function pair into the Service
// interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// Runner starts registered services and blocks until a shutdown
// trigger: SIGINT or SIGTERM, cancellation of the caller's context, or
// the first service failure. Services stop in reverse registration
// order, so the last-registered service is torn down first.
type Runner struct {
	logger   *zap.Logger
	services []namedService
}

type namedService struct {
	name string
	svc  Service
}

// NewRunner creates an empty Runner.
//
// Precondition: logger must be non-nil.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Register adds a named service.
//
// Precondition: Register must not be called after Run.
func (r *Runner) Register(name string, svc Service) {
	r.services = append(r.services, namedService{name: name, svc: svc})
}

// Run starts every registered service, waits for a shutdown trigger,
// and stops them in reverse order.
//
// Postcondition: Every Stop has returned. Returns the error of the
// service whose failure triggered the shutdown, or nil for a
// signal-driven or context-driven exit.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()

	ctx, unhook := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer unhook()

	failed := make(chan error, len(r.services))
	for _, ns := range r.services {
		ns := ns
		r.logger.Info("service starting", zap.String("service", ns.name))
		go func() {
			if err := ns.svc.Start(); err != nil {
				failed <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}

	var cause error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown requested",
			zap.Duration("uptime", time.Since(start)),
		)
	case cause = <-failed:
		r.logger.Error("service failed, shutting down", zap.Error(cause))
	}

	for i := len(r.services) - 1; i >= 0; i-- {
		ns := r.services[i]
		stopStart := time.Now()
		ns.svc.Stop()
		r.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(stopStart)),
		)
	}
	return cause
}
