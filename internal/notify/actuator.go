package notify

import (
	"context"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// Actuator performs the side effect of a fired escalation.
type Actuator interface {
	// Escalate is called once per fired escalation.
	Escalate(ctx context.Context, escalation *domain.Escalation)
	// Silence is called when the user disarms while the siren is on.
	Silence(ctx context.Context)
}

// Enqueuer accepts outgoing messages.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg *Message) bool
}

// AlarmActuator turns fired escalations into alert messages.
type AlarmActuator struct {
	// queue receives the messages.
	queue Enqueuer
}

// NewAlarmActuator creates an actuator backed by queue.
func NewAlarmActuator(queue Enqueuer) *AlarmActuator {
	return &AlarmActuator{queue: queue}
}

// Escalate implements Actuator.
func (a *AlarmActuator) Escalate(ctx context.Context, escalation *domain.Escalation) {
	msg := NewEscalationMessage(escalation)

	logger.WarnKV(ctx, "Escalation fired",
		"sensor", escalation.SensorName,
		"channel", escalation.Channel,
		"arm_state", escalation.ArmState,
		"delay", escalation.Delay,
	)

	a.queue.Enqueue(ctx, msg)
}

// Silence implements Actuator.
func (a *AlarmActuator) Silence(ctx context.Context) {
	logger.Info(ctx, "Syren silenced")

	a.queue.Enqueue(ctx, &Message{
		Kind:      KindSilenced,
		Text:      "Alarm silenced",
		CreatedAt: time.Now().UTC(),
	})
}

// Message kinds.
const (
	KindAlert    = "alert"
	KindSabotage = "sabotage"
	KindSilenced = "silenced"
)

// Message is an outgoing notification.
type Message struct {
	// ID is set by the dispatcher when the message is queued.
	ID string `json:"id"`
	// Kind is one of alert, sabotage or silenced.
	Kind string `json:"kind"`
	// Text is the human-readable body.
	Text string `json:"text"`
	// SensorName is empty for silenced messages.
	SensorName string `json:"sensor,omitempty"`
	// Channel is the sensor channel.
	Channel int `json:"channel,omitempty"`
	// ZoneName is the sensor zone.
	ZoneName string `json:"zone,omitempty"`
	// ArmState is the arm state the escalation was triggered under.
	ArmState domain.ArmState `json:"arm_state,omitempty"`
	// CreatedAt is when the message was built.
	CreatedAt time.Time `json:"created_at"`
}

// NewEscalationMessage builds the message for a fired escalation.
func NewEscalationMessage(escalation *domain.Escalation) *Message {
	kind := KindAlert
	text := fmt.Sprintf("ALERT: %s (channel %d) triggered while armed %s",
		escalation.SensorName, escalation.Channel, escalation.ArmState)

	if escalation.Sabotage() {
		kind = KindSabotage
		text = fmt.Sprintf("SABOTAGE: %s (channel %d) triggered while disarmed",
			escalation.SensorName, escalation.Channel)
	}

	if escalation.ZoneName != "" {
		text += ", zone " + escalation.ZoneName
	}

	return &Message{
		Kind:       kind,
		Text:       text,
		SensorName: escalation.SensorName,
		Channel:    escalation.Channel,
		ZoneName:   escalation.ZoneName,
		ArmState:   escalation.ArmState,
		CreatedAt:  escalation.FiredAt,
	}
}
