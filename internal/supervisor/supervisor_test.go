package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// inboxWorker runs until STOP arrives in its inbox.
type inboxWorker struct {
	name    string
	inbox   *bus.Inbox
	stopped atomic.Bool
}

func (w *inboxWorker) Name() string { return w.name }

func (w *inboxWorker) Run(ctx context.Context) error {
	for {
		action, ok := w.inbox.Next(ctx)
		if !ok {
			return ctx.Err()
		}

		if action == domain.ActionStop {
			w.stopped.Store(true)

			return nil
		}
	}
}

// funcWorker runs an arbitrary function.
type funcWorker struct {
	name string
	run  func(ctx context.Context) error
}

func (w *funcWorker) Name() string { return w.name }

func (w *funcWorker) Run(ctx context.Context) error { return w.run(ctx) }

func newInboxWorker(b *bus.Broadcaster, name string) *inboxWorker {
	return &inboxWorker{
		name:  name,
		inbox: b.Register(name),
	}
}

// TestSupervisor_Interrupt stops every worker with STOP when the context is cancelled.
func TestSupervisor_Interrupt(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()
		monitor := newInboxWorker(b, "monitor")
		notifier := newInboxWorker(b, "notifier")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- New(b, Options{}, monitor, notifier).Run(ctx) }()

		time.Sleep(5 * time.Second)
		synctest.Wait()
		require.False(t, monitor.stopped.Load())

		cancel()
		require.NoError(t, <-done)
		require.True(t, monitor.stopped.Load())
		require.True(t, notifier.stopped.Load())
	})
}

// TestSupervisor_WorkerCrash shuts the others down when one worker fails.
func TestSupervisor_WorkerCrash(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()
		monitor := newInboxWorker(b, "monitor")
		boom := errors.New("i2c bus gone")
		keypad := &funcWorker{
			name: "keypad",
			run: func(context.Context) error {
				time.Sleep(3 * time.Second)

				return boom
			},
		}

		err := New(b, Options{}, monitor, keypad).Run(context.Background())
		require.ErrorIs(t, err, ErrWorkerCrashed)
		require.ErrorIs(t, err, boom)
		require.ErrorContains(t, err, "keypad")
		require.True(t, monitor.stopped.Load())
	})
}

// TestSupervisor_WorkerPanic treats a panic as a crash.
func TestSupervisor_WorkerPanic(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()
		monitor := newInboxWorker(b, "monitor")
		faulty := &funcWorker{
			name: "faulty",
			run: func(context.Context) error {
				panic("nil sensor")
			},
		}

		err := New(b, Options{}, monitor, faulty).Run(context.Background())
		require.ErrorIs(t, err, ErrWorkerCrashed)
		require.ErrorIs(t, err, ErrWorkerPanicked)
		require.True(t, monitor.stopped.Load())
	})
}

// TestSupervisor_CleanExitIsCrash counts any early exit as a crash.
func TestSupervisor_CleanExitIsCrash(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()
		quitter := &funcWorker{
			name: "quitter",
			run:  func(context.Context) error { return nil },
		}

		err := New(b, Options{}, quitter).Run(context.Background())
		require.ErrorIs(t, err, ErrWorkerCrashed)
	})
}

// TestSupervisor_StopTimeout cancels workers that ignore STOP.
func TestSupervisor_StopTimeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()
		stubborn := &funcWorker{
			name: "stubborn",
			run: func(ctx context.Context) error {
				<-ctx.Done()

				return nil
			},
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)

		go func() { done <- New(b, Options{StopTimeout: 2 * time.Second}, stubborn).Run(ctx) }()

		time.Sleep(time.Second)
		cancel()

		start := time.Now()

		require.NoError(t, <-done)
		require.Equal(t, 2*time.Second, time.Since(start))
	})
}

// TestStopOnAction cancels a context-only worker on STOP and ignores other actions.
func TestStopOnAction(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		b := bus.NewBroadcaster()

		var stopped atomic.Bool

		server := StopOnAction(b.Register("metrics"), &funcWorker{
			name: "metrics",
			run: func(ctx context.Context) error {
				<-ctx.Done()
				stopped.Store(true)

				return nil
			},
		})
		require.Equal(t, "metrics", server.Name())

		done := make(chan error, 1)

		go func() { done <- server.Run(context.Background()) }()

		b.Send(domain.ActionArmAway)
		synctest.Wait()
		require.False(t, stopped.Load())

		b.Send(domain.ActionStop)
		require.NoError(t, <-done)
		require.True(t, stopped.Load())
	})
}
