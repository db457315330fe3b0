package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

const (
	// StateSubjectPrefix prefixes every state event subject.
	StateSubjectPrefix = "alarm.state."

	// DefaultFlushTimeout bounds the wait for the broker to acknowledge a message.
	DefaultFlushTimeout = 5 * time.Second

	// reconnectWait is the pause between broker reconnect attempts.
	reconnectWait = 2 * time.Second
)

// StateEvent is the JSON payload of a state event.
type StateEvent struct {
	Type      string    `json:"type"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is the part of *nats.Conn the publishers use.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// Connect dials the broker. The connection keeps retrying in the background,
// so a broker that is down at boot does not stop the daemon.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("alarm-monitor"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(reconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return conn, nil
}

// NATSPublisher publishes state events as JSON on alarm.state.<type>.
type NATSPublisher struct {
	// conn is the broker connection.
	conn Conn
}

// NewNATSPublisher wraps a broker connection.
func NewNATSPublisher(conn Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishArmState implements Publisher.
func (p *NATSPublisher) PublishArmState(ctx context.Context, state domain.ArmState) {
	p.publish(ctx, "arm", string(state))
}

// PublishMonitoringState implements Publisher.
func (p *NATSPublisher) PublishMonitoringState(ctx context.Context, state domain.MonitoringState) {
	p.publish(ctx, "monitoring", string(state))
}

// PublishSensorsState implements Publisher.
func (p *NATSPublisher) PublishSensorsState(ctx context.Context, alerting *bool) {
	p.publish(ctx, "sensors", alerting)
}

// PublishAlertState implements Publisher.
func (p *NATSPublisher) PublishAlertState(ctx context.Context, alerting bool) {
	p.publish(ctx, "alert", alerting)
}

// PublishSyrenState implements Publisher.
func (p *NATSPublisher) PublishSyrenState(ctx context.Context, on *bool) {
	p.publish(ctx, "syren", on)
}

func (p *NATSPublisher) publish(ctx context.Context, eventType string, value any) {
	data, err := json.Marshal(StateEvent{
		Type:      eventType,
		Value:     value,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode state event", "type", eventType, "error", err)

		return
	}

	if err = p.conn.Publish(StateSubjectPrefix+eventType, data); err != nil {
		logger.WarnKV(ctx, "Failed to publish state event", "type", eventType, "error", err)
	}
}

// NATSSender delivers alert messages on a subject and waits for the broker
// to acknowledge the flush, so delivery failures surface as errors.
type NATSSender struct {
	// conn is the broker connection.
	conn Conn
	// subject receives the messages.
	subject string
	// flushTimeout is the deadline of every flush; the broker client refuses
	// to flush without one.
	flushTimeout time.Duration
}

// NewNATSSender wraps a broker connection.
func NewNATSSender(conn Conn, subject string) *NATSSender {
	return &NATSSender{
		conn:         conn,
		subject:      subject,
		flushTimeout: DefaultFlushTimeout,
	}
}

// Send implements Sender.
func (s *NATSSender) Send(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err = s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	flushCtx, cancel := context.WithTimeout(ctx, s.flushTimeout)
	defer cancel()

	if err = s.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("flush message: %w", err)
	}

	return nil
}
