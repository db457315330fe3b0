package notify

import (
	"context"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// Publisher broadcasts state changes to observers. Calls are fire-and-forget.
type Publisher interface {
	PublishArmState(ctx context.Context, state domain.ArmState)
	PublishMonitoringState(ctx context.Context, state domain.MonitoringState)
	// PublishSensorsState sends whether any sensor is alerting; nil means unknown.
	PublishSensorsState(ctx context.Context, alerting *bool)
	PublishAlertState(ctx context.Context, alerting bool)
	// PublishSyrenState sends the siren state; nil means unknown.
	PublishSyrenState(ctx context.Context, on *bool)
}

// Fanout forwards every event to all publishers in order.
type Fanout []Publisher

// NewFanout drops nil publishers.
func NewFanout(publishers ...Publisher) Fanout {
	result := make(Fanout, 0, len(publishers))

	for _, p := range publishers {
		if p != nil {
			result = append(result, p)
		}
	}

	return result
}

// PublishArmState implements Publisher.
func (f Fanout) PublishArmState(ctx context.Context, state domain.ArmState) {
	for _, p := range f {
		p.PublishArmState(ctx, state)
	}
}

// PublishMonitoringState implements Publisher.
func (f Fanout) PublishMonitoringState(ctx context.Context, state domain.MonitoringState) {
	for _, p := range f {
		p.PublishMonitoringState(ctx, state)
	}
}

// PublishSensorsState implements Publisher.
func (f Fanout) PublishSensorsState(ctx context.Context, alerting *bool) {
	for _, p := range f {
		p.PublishSensorsState(ctx, alerting)
	}
}

// PublishAlertState implements Publisher.
func (f Fanout) PublishAlertState(ctx context.Context, alerting bool) {
	for _, p := range f {
		p.PublishAlertState(ctx, alerting)
	}
}

// PublishSyrenState implements Publisher.
func (f Fanout) PublishSyrenState(ctx context.Context, on *bool) {
	for _, p := range f {
		p.PublishSyrenState(ctx, on)
	}
}

// LogPublisher writes state changes to the log.
type LogPublisher struct{}

// PublishArmState implements Publisher.
func (LogPublisher) PublishArmState(ctx context.Context, state domain.ArmState) {
	logger.InfoKV(ctx, "Arm state changed", "arm_state", state)
}

// PublishMonitoringState implements Publisher.
func (LogPublisher) PublishMonitoringState(ctx context.Context, state domain.MonitoringState) {
	logger.InfoKV(ctx, "Monitoring state changed", "monitoring_state", state)
}

// PublishSensorsState implements Publisher.
func (LogPublisher) PublishSensorsState(ctx context.Context, alerting *bool) {
	logger.DebugKV(ctx, "Sensors state changed", "alerting", formatOptional(alerting))
}

// PublishAlertState implements Publisher.
func (LogPublisher) PublishAlertState(ctx context.Context, alerting bool) {
	logger.InfoKV(ctx, "Alert state changed", "alerting", alerting)
}

// PublishSyrenState implements Publisher.
func (LogPublisher) PublishSyrenState(ctx context.Context, on *bool) {
	logger.InfoKV(ctx, "Syren state changed", "on", formatOptional(on))
}

func formatOptional(v *bool) string {
	switch {
	case v == nil:
		return "unknown"
	case *v:
		return "true"
	default:
		return "false"
	}
}
