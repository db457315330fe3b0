package supervisor

import (
	"context"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// stoppable runs a context-driven worker that has no action loop of its own.
type stoppable struct {
	// inbox receives the STOP broadcast.
	inbox *bus.Inbox
	// worker stops when its context is cancelled.
	worker Worker
}

// StopOnAction wraps a worker that only watches its context, so that a STOP
// read from inbox cancels it. Other actions are discarded.
//
//nolint:ireturn // The wrapper is only ever used as a Worker.
func StopOnAction(inbox *bus.Inbox, worker Worker) Worker {
	return &stoppable{
		inbox:  inbox,
		worker: worker,
	}
}

// Name returns the wrapped worker name.
func (s *stoppable) Name() string {
	return s.worker.Name()
}

// Run runs the wrapped worker until it exits or STOP arrives.
func (s *stoppable) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		for {
			action, ok := s.inbox.Next(ctx)
			if !ok {
				return
			}

			if action == domain.ActionStop {
				cancel()

				return
			}
		}
	}()

	return s.worker.Run(ctx)
}
