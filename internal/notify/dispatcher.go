package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

const (
	// DefaultQueueSize bounds the number of undelivered messages.
	DefaultQueueSize = 64

	// dispatcherName is the worker name used by the supervisor and in logs.
	dispatcherName = "notifier"
)

// ErrPermanent marks a Sender error that must not be retried.
var ErrPermanent = errors.New("permanent delivery failure")

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg *Message) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// LogSender writes messages to the log.
type LogSender struct{}

// Send implements Sender.
func (LogSender) Send(ctx context.Context, msg *Message) error {
	logger.InfoKV(ctx, "Notification", "id", msg.ID, "kind", msg.Kind, "text", msg.Text)

	return nil
}

// RetryPolicy bounds delivery attempts.
type RetryPolicy struct {
	// MaxAttempts includes the first try.
	MaxAttempts uint
	// InitialInterval is the first pause between attempts.
	InitialInterval time.Duration
	// MaxInterval caps the exponential growth.
	MaxInterval time.Duration
}

// Dispatcher is the notification worker. It owns an inbox on the action bus
// and a bounded message queue fed by the actuator.
type Dispatcher struct {
	// inbox receives bus actions; only STOP matters here.
	inbox *bus.Inbox
	// queue holds undelivered messages.
	queue chan *Message
	// sender delivers messages.
	sender Sender
	// policy bounds retries per message.
	policy RetryPolicy
	// onResult observes delivery outcomes; may be nil.
	onResult func(kind string, delivered bool)
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(inbox *bus.Inbox, sender Sender, policy RetryPolicy, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = 1
	}

	return &Dispatcher{
		inbox:  inbox,
		queue:  make(chan *Message, queueSize),
		sender: sender,
		policy: policy,
	}
}

// OnResult registers an observer for delivery outcomes.
// It must be called before Run.
func (d *Dispatcher) OnResult(fn func(kind string, delivered bool)) {
	d.onResult = fn
}

// Name implements supervisor.Worker.
func (d *Dispatcher) Name() string {
	return dispatcherName
}

// Enqueue implements Enqueuer. It never blocks; when the queue is full the
// message is dropped and false is returned.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *Message) bool {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	select {
	case d.queue <- msg:
		return true
	default:
		logger.ErrorKV(ctx, "Notification queue is full, message dropped", "id", msg.ID, "kind", msg.Kind)
		d.report(msg.Kind, false)

		return false
	}
}

// Run delivers queued messages until STOP arrives or ctx is done.
// Messages still queued at shutdown are delivered with a single attempt.
func (d *Dispatcher) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, dispatcherName)

	logger.Info(ctx, "Notifier started")
	defer logger.Info(ctx, "Notifier stopped")

	for {
		for {
			action, ok := d.inbox.TryReceive()
			if !ok {
				break
			}

			if action == domain.ActionStop {
				d.flush(ctx)

				return nil
			}

			logger.DebugKV(ctx, "Action ignored", "action", action)
		}

		select {
		case <-ctx.Done():
			d.flush(context.WithoutCancel(ctx))

			return nil
		case <-d.inbox.Ready():
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg *Message) {
	expBackOff := backoff.NewExponentialBackOff()
	expBackOff.InitialInterval = d.policy.InitialInterval
	expBackOff.MaxInterval = d.policy.MaxInterval

	operation := func() (struct{}, error) {
		err := d.sender.Send(ctx, msg)
		if errors.Is(err, ErrPermanent) {
			return struct{}{}, backoff.Permanent(err)
		}

		return struct{}{}, err
	}

	notify := func(err error, wait time.Duration) {
		logger.WarnKV(ctx, "Notification delivery failed, retrying",
			"id", msg.ID,
			"wait", wait,
			"error", err,
		)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackOff),
		backoff.WithMaxTries(d.policy.MaxAttempts),
		backoff.WithNotify(notify),
	)
	if err != nil {
		logger.ErrorKV(ctx, "Notification not delivered", "id", msg.ID, "kind", msg.Kind, "error", err)
		d.report(msg.Kind, false)

		return
	}

	logger.DebugKV(ctx, "Notification delivered", "id", msg.ID)
	d.report(msg.Kind, true)
}

func (d *Dispatcher) flush(ctx context.Context) {
	for {
		select {
		case msg := <-d.queue:
			if err := d.sender.Send(ctx, msg); err != nil {
				logger.ErrorKV(ctx, "Notification not delivered on shutdown", "id", msg.ID, "error", err)
				d.report(msg.Kind, false)

				continue
			}

			d.report(msg.Kind, true)
		default:
			return
		}
	}
}

func (d *Dispatcher) report(kind string, delivered bool) {
	if d.onResult != nil {
		d.onResult(kind, delivered)
	}
}
