package metrics

import (
	"context"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

const namespace = "alarm"

//nolint:gochecknoglobals // Label sets are fixed by the domain.
var (
	armStates = []domain.ArmState{
		domain.ArmDisarm,
		domain.ArmAway,
		domain.ArmStay,
	}
	monitoringStates = []domain.MonitoringState{
		domain.MonitoringStartup,
		domain.MonitoringUpdatingConfig,
		domain.MonitoringInvalidConfig,
		domain.MonitoringReady,
		domain.MonitoringArmed,
		domain.MonitoringSabotage,
	}
)

// Recorder implements notify.Publisher and monitor.Observer on Prometheus metrics.
type Recorder struct {
	armState        *prom.GaugeVec
	monitoringState *prom.GaugeVec
	sensorsAlerting prom.Gauge
	alertActive     prom.Gauge
	syrenOn         prom.Gauge
	actions         *prom.CounterVec
	triggered       *prom.CounterVec
	fired           *prom.CounterVec
	cancelled       prom.Counter
	scanErrors      *prom.CounterVec
	notifications   *prom.CounterVec
}

// NewRecorder creates the metrics and registers them in reg.
func NewRecorder(reg prom.Registerer) *Recorder {
	r := &Recorder{
		armState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "arm_state",
			Help:      "Current arm state, 1 for the active one",
		}, []string{"state"}),
		monitoringState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "monitoring_state",
			Help:      "Current monitoring state, 1 for the active one",
		}, []string{"state"}),
		sensorsAlerting: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "sensors_alerting",
			Help:      "1 when at least one sensor is out of tolerance, -1 when unknown",
		}),
		alertActive: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_active",
			Help:      "1 while an escalation has fired and was not silenced",
		}),
		syrenOn: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "syren_on",
			Help:      "1 when the siren is on, -1 when unknown",
		}),
		actions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions applied by the monitor",
		}, []string{"action"}),
		triggered: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_triggered_total",
			Help:      "Escalations scheduled, by arm state at trigger time",
		}, []string{"arm_state"}),
		fired: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_fired_total",
			Help:      "Escalations whose delay elapsed, by arm state at trigger time",
		}, []string{"arm_state"}),
		cancelled: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_cancelled_total",
			Help:      "Pending escalations cancelled by disarm",
		}),
		scanErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Failed sensor reads",
		}, []string{"channel"}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery outcomes",
		}, []string{"kind", "result"}),
	}

	reg.MustRegister(
		r.armState,
		r.monitoringState,
		r.sensorsAlerting,
		r.alertActive,
		r.syrenOn,
		r.actions,
		r.triggered,
		r.fired,
		r.cancelled,
		r.scanErrors,
		r.notifications,
	)

	return r
}

// PublishArmState implements notify.Publisher.
func (r *Recorder) PublishArmState(_ context.Context, state domain.ArmState) {
	for _, s := range armStates {
		r.armState.WithLabelValues(string(s)).Set(boolValue(s == state))
	}
}

// PublishMonitoringState implements notify.Publisher.
func (r *Recorder) PublishMonitoringState(_ context.Context, state domain.MonitoringState) {
	for _, s := range monitoringStates {
		r.monitoringState.WithLabelValues(string(s)).Set(boolValue(s == state))
	}
}

// PublishSensorsState implements notify.Publisher.
func (r *Recorder) PublishSensorsState(_ context.Context, alerting *bool) {
	r.sensorsAlerting.Set(optionalValue(alerting))
}

// PublishAlertState implements notify.Publisher.
func (r *Recorder) PublishAlertState(_ context.Context, alerting bool) {
	r.alertActive.Set(boolValue(alerting))
}

// PublishSyrenState implements notify.Publisher.
func (r *Recorder) PublishSyrenState(_ context.Context, on *bool) {
	r.syrenOn.Set(optionalValue(on))
}

// ActionApplied implements monitor.Observer.
func (r *Recorder) ActionApplied(action domain.Action) {
	r.actions.WithLabelValues(string(action)).Inc()
}

// EscalationTriggered implements monitor.Observer.
func (r *Recorder) EscalationTriggered(arm domain.ArmState) {
	r.triggered.WithLabelValues(string(arm)).Inc()
}

// EscalationFired implements monitor.Observer.
func (r *Recorder) EscalationFired(arm domain.ArmState) {
	r.fired.WithLabelValues(string(arm)).Inc()
}

// EscalationsCancelled implements monitor.Observer.
func (r *Recorder) EscalationsCancelled(count int) {
	r.cancelled.Add(float64(count))
}

// ScanFailed implements monitor.Observer.
func (r *Recorder) ScanFailed(channel int) {
	r.scanErrors.WithLabelValues(strconv.Itoa(channel)).Inc()
}

// NotificationResult counts delivery outcomes; it matches the
// notify.Dispatcher result hook.
func (r *Recorder) NotificationResult(kind string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}

	r.notifications.WithLabelValues(kind, result).Inc()
}

func boolValue(v bool) float64 {
	if v {
		return 1
	}

	return 0
}

func optionalValue(v *bool) float64 {
	if v == nil {
		return -1
	}

	return boolValue(*v)
}
