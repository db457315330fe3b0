// Package supervisor starts the daemon workers, watches their liveness and
// shuts everything down when one of them dies or the process is interrupted.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

const (
	// DefaultPollInterval is how often worker liveness is checked.
	DefaultPollInterval = time.Second
	// DefaultStopTimeout is how long workers get to honour STOP before
	// their context is cancelled.
	DefaultStopTimeout = 10 * time.Second
)

var (
	// ErrWorkerCrashed is returned when a worker exited on its own.
	ErrWorkerCrashed = errors.New("worker crashed")
	// ErrWorkerPanicked wraps a recovered worker panic.
	ErrWorkerPanicked = errors.New("worker panicked")

	errExited = errors.New("exited without error")
)

// Worker is a long-running daemon component.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Options configures a Supervisor.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// StopTimeout defaults to DefaultStopTimeout.
	StopTimeout time.Duration
}

// Supervisor runs workers and coordinates shutdown over the action bus.
type Supervisor struct {
	// bus receives STOP on shutdown.
	bus bus.Sender
	// workers are started in order and joined in order.
	workers []Worker
	// pollInterval is the liveness check period.
	pollInterval time.Duration
	// stopTimeout bounds the wait for STOP to be honoured.
	stopTimeout time.Duration
}

// New creates a supervisor.
func New(sender bus.Sender, opts Options, workers ...Worker) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}

	return &Supervisor{
		bus:          sender,
		workers:      workers,
		pollInterval: opts.PollInterval,
		stopTimeout:  opts.StopTimeout,
	}
}

// handle tracks one running worker.
type handle struct {
	worker Worker
	done   chan struct{}
	err    error
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Run starts every worker and blocks until a worker exits or ctx is done.
// It returns ErrWorkerCrashed when the shutdown was caused by a worker.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "supervisor")

	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()

	handles := make([]*handle, 0, len(s.workers))

	for _, w := range s.workers {
		h := &handle{
			worker: w,
			done:   make(chan struct{}),
		}

		go s.run(logger.WithName(workerCtx, w.Name()), h)

		handles = append(handles, h)
		logger.InfoKV(ctx, "Worker started", "worker", w.Name())
	}

	crashed := s.watch(ctx, handles)

	// Shutdown: ask politely, then cancel whoever is left.
	s.bus.Send(domain.ActionStop)

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-timer.C:
			logger.WarnKV(ctx, "Workers did not honour stop in time, cancelling", "timeout", s.stopTimeout)
			cancelWorkers()
			<-h.done
		}

		logger.InfoKV(ctx, "Worker joined", "worker", h.worker.Name(), "error", h.err)
	}

	if crashed != nil {
		cause := crashed.err
		if cause == nil {
			cause = errExited
		}

		return fmt.Errorf("%w: %s: %w", ErrWorkerCrashed, crashed.worker.Name(), cause)
	}

	return nil
}

func (s *Supervisor) run(ctx context.Context, h *handle) {
	defer close(h.done)

	defer func() {
		if r := recover(); r != nil {
			h.err = fmt.Errorf("%w: %v", ErrWorkerPanicked, r)
		}
	}()

	h.err = h.worker.Run(ctx)
}

// watch polls liveness until ctx is done or a worker exits.
func (s *Supervisor) watch(ctx context.Context, handles []*handle) *handle {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Interrupted, stopping workers")

			return nil
		case <-ticker.C:
		}

		for _, h := range handles {
			if h.exited() {
				logger.ErrorKV(ctx, "Worker exited unexpectedly, stopping workers",
					"worker", h.worker.Name(),
					"error", h.err,
				)

				return h
			}
		}
	}
}
