package monitor

import (
	"context"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// generation is the shared cancellation scope of escalations.
// DISARM cancels the current generation; the next escalation or ARM
// starts a new one.
type generation struct {
	ctx    context.Context //nolint:containedctx // Scope shared by escalation goroutines.
	cancel context.CancelFunc
}

// escalation is a scheduled escalation of one alerting sensor.
// Only ctx and delay are read by the timer goroutine.
type escalation struct {
	sensorID   int64
	sensorName string
	channel    int
	zoneName   string
	arm        domain.ArmState
	delay      time.Duration
	ctx        context.Context //nolint:containedctx // Cancelled by disarm or when the sensor clears.
	cancel     context.CancelFunc
	fired      bool
}

func (m *Monitor) currentGeneration() *generation {
	if m.generation == nil || m.generation.ctx.Err() != nil {
		ctx, cancel := context.WithCancel(m.base)
		m.generation = &generation{
			ctx:    ctx,
			cancel: cancel,
		}
	}

	return m.generation
}

// cancelGeneration aborts every pending escalation. Entries stay in place so
// that a sensor still in alert is not re-triggered until it clears.
func (m *Monitor) cancelGeneration(ctx context.Context) {
	if m.generation == nil {
		return
	}

	pending := 0

	for _, e := range m.escalations {
		if !e.fired && e.ctx.Err() == nil {
			pending++
		}
	}

	m.generation.cancel()

	if pending > 0 {
		logger.InfoKV(ctx, "Pending escalations cancelled", "count", pending)
		m.observer.EscalationsCancelled(pending)
	}
}

// escalate schedules escalations for new alerts and clears finished ones,
// using the arm and monitoring state captured at the start of the tick.
// Any alerting sensor without an entry is considered, so an alert that began
// while its zone had no delay escalates once arming gives it one.
func (m *Monitor) escalate(ctx context.Context, monitoring domain.MonitoringState, arm domain.ArmState) {
	for _, s := range m.sensors {
		e, exists := m.escalations[s.ID]

		switch {
		case s.Alert && !exists && s.Enabled:
			delay, ok := s.Zone.Delay(monitoring, arm)
			if ok {
				m.schedule(ctx, s, arm, delay)
			}
		case !s.Alert && exists:
			m.clear(ctx, e)
		}
	}
}

func (m *Monitor) schedule(ctx context.Context, s *domain.Sensor, arm domain.ArmState, delay time.Duration) {
	taskCtx, cancel := context.WithCancel(m.currentGeneration().ctx)

	e := &escalation{
		sensorID:   s.ID,
		sensorName: s.Name,
		channel:    s.Channel,
		arm:        arm,
		delay:      delay,
		ctx:        taskCtx,
		cancel:     cancel,
	}

	if s.Zone != nil {
		e.zoneName = s.Zone.Name
	}

	m.escalations[s.ID] = e
	m.observer.EscalationTriggered(arm)

	logger.InfoKV(ctx, "Escalation scheduled",
		"sensor", s.Name,
		"channel", s.Channel,
		"arm_state", arm,
		"delay", delay,
	)

	m.tasks.Go(func() {
		m.wait(e)
	})
}

// wait reports e on the fired channel once its delay elapses.
func (m *Monitor) wait(e *escalation) {
	timer := time.NewTimer(e.delay)
	defer timer.Stop()

	select {
	case <-e.ctx.Done():
		return
	case <-timer.C:
	}

	select {
	case m.fired <- e:
	case <-e.ctx.Done():
	}
}

func (m *Monitor) drainFired(ctx context.Context) {
	for {
		select {
		case e := <-m.fired:
			m.fire(ctx, e)
		default:
			return
		}
	}
}

// fire runs the side effect of an escalation whose delay elapsed.
func (m *Monitor) fire(ctx context.Context, e *escalation) {
	if m.escalations[e.sensorID] != e || e.ctx.Err() != nil {
		logger.DebugKV(ctx, "Stale escalation dropped", "sensor", e.sensorName)

		return
	}

	e.fired = true
	now := time.Now()

	m.observer.EscalationFired(e.arm)

	alert := &domain.Alert{
		ID:        m.newID(),
		SensorID:  e.sensorID,
		ArmState:  e.arm,
		StartTime: now,
	}
	m.batch.OpenAlert(alert)
	m.openAlerts[e.sensorID] = alert.ID

	m.actuator.Escalate(ctx, &domain.Escalation{
		SensorID:   e.sensorID,
		SensorName: e.sensorName,
		Channel:    e.channel,
		ZoneName:   e.zoneName,
		ArmState:   e.arm,
		Delay:      e.delay,
		FiredAt:    now,
	})

	if !m.syrenOn {
		m.syrenOn = true
		on := true

		m.publisher.PublishSyrenState(ctx, &on)
		m.publisher.PublishAlertState(ctx, true)
	}

	if e.arm == domain.ArmDisarm && m.monitoringState == domain.MonitoringReady {
		m.setMonitoringState(ctx, domain.MonitoringSabotage)
	}
}

// clear removes the escalation of a sensor that left alert and closes its
// alert record. A cleared sabotage returns the system to READY once no other
// fired sabotage remains.
func (m *Monitor) clear(ctx context.Context, e *escalation) {
	logger.InfoKV(ctx, "Sensor alert cleared", "sensor", e.sensorName, "channel", e.channel)

	m.removeEscalation(e.sensorID, e)

	if e.arm != domain.ArmDisarm || !e.fired || m.monitoringState != domain.MonitoringSabotage {
		return
	}

	for _, other := range m.escalations {
		if other.arm == domain.ArmDisarm && other.fired {
			return
		}
	}

	m.setMonitoringState(ctx, domain.MonitoringReady)
}

func (m *Monitor) removeEscalation(sensorID int64, e *escalation) {
	e.cancel()
	delete(m.escalations, sensorID)

	if alertID, ok := m.openAlerts[sensorID]; ok {
		m.batch.CloseAlert(alertID, time.Now())
		delete(m.openAlerts, sensorID)
	}
}
