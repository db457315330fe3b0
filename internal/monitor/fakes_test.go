package monitor

import (
	"context"
	"sync"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
	"github.com/oshokin/alarm-monitor/internal/repository/store"
)

// memoryStore is an in-memory store.Store.
type memoryStore struct {
	mu          sync.Mutex
	sensors     []*domain.Sensor
	alerts      map[string]*domain.Alert
	cleanups    []time.Time
	layouts     []*layout.Layout
	commitCount int
	loadErr     error
}

func newMemoryStore(sensors ...*domain.Sensor) *memoryStore {
	return &memoryStore{
		sensors: sensors,
		alerts:  make(map[string]*domain.Alert),
	}
}

func (s *memoryStore) LoadSensors(context.Context) ([]*domain.Sensor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	result := make([]*domain.Sensor, 0, len(s.sensors))

	for _, sensor := range s.sensors {
		if !sensor.Deleted {
			result = append(result, sensor.Clone())
		}
	}

	return result, nil
}

func (s *memoryStore) Cleanup(_ context.Context, endTime time.Time) (store.CleanupResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanups = append(s.cleanups, endTime)

	var result store.CleanupResult

	for _, sensor := range s.sensors {
		if sensor.Alert {
			sensor.Alert = false
			result.Sensors++
		}
	}

	for _, alert := range s.alerts {
		if alert.Open() {
			end := endTime
			alert.EndTime = &end
			result.Alerts++
		}
	}

	return result, nil
}

func (s *memoryStore) Commit(_ context.Context, batch *store.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commitCount++

	for _, sensor := range s.sensors {
		if alert, ok := batch.SensorAlerts[sensor.ID]; ok {
			sensor.Alert = alert
		}

		if reference, ok := batch.References[sensor.ID]; ok {
			sensor.ReferenceValue = domain.FloatPtr(reference)
		}
	}

	for _, alert := range batch.OpenedAlerts {
		cloned := *alert
		s.alerts[alert.ID] = &cloned
	}

	for alertID, endTime := range batch.ClosedAlerts {
		if alert, ok := s.alerts[alertID]; ok {
			end := endTime
			alert.EndTime = &end
		}
	}

	return nil
}

func (s *memoryStore) SyncLayout(_ context.Context, l *layout.Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layouts = append(s.layouts, l)

	return nil
}

func (s *memoryStore) sensor(id int64) *domain.Sensor {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sensor := range s.sensors {
		if sensor.ID == id {
			return sensor.Clone()
		}
	}

	return nil
}

func (s *memoryStore) alertList() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]domain.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		result = append(result, *alert)
	}

	return result
}

func (s *memoryStore) cleanupTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]time.Time(nil), s.cleanups...)
}

// recordingPublisher keeps every published event as "kind:value".
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) add(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
}

func (p *recordingPublisher) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]string(nil), p.events...)
}

func optional(v *bool) string {
	switch {
	case v == nil:
		return "nil"
	case *v:
		return "true"
	default:
		return "false"
	}
}

func (p *recordingPublisher) PublishArmState(_ context.Context, state domain.ArmState) {
	p.add("arm:" + string(state))
}

func (p *recordingPublisher) PublishMonitoringState(_ context.Context, state domain.MonitoringState) {
	p.add("monitoring:" + string(state))
}

func (p *recordingPublisher) PublishSensorsState(_ context.Context, alerting *bool) {
	p.add("sensors:" + optional(alerting))
}

func (p *recordingPublisher) PublishAlertState(_ context.Context, alerting bool) {
	p.add("alert:" + optional(&alerting))
}

func (p *recordingPublisher) PublishSyrenState(_ context.Context, on *bool) {
	p.add("syren:" + optional(on))
}

// recordingActuator keeps fired escalations.
type recordingActuator struct {
	mu          sync.Mutex
	escalations []domain.Escalation
	silenced    int
}

func (a *recordingActuator) Escalate(_ context.Context, escalation *domain.Escalation) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.escalations = append(a.escalations, *escalation)
}

func (a *recordingActuator) Silence(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.silenced++
}

func (a *recordingActuator) fired() []domain.Escalation {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]domain.Escalation(nil), a.escalations...)
}

func (a *recordingActuator) silences() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.silenced
}

// countingObserver counts observer calls.
type countingObserver struct {
	mu        sync.Mutex
	triggered int
	fired     int
	cancelled int
	scanFails int
}

func (o *countingObserver) ActionApplied(domain.Action) {}

func (o *countingObserver) EscalationTriggered(domain.ArmState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.triggered++
}

func (o *countingObserver) EscalationFired(domain.ArmState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.fired++
}

func (o *countingObserver) EscalationsCancelled(count int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.cancelled += count
}

func (o *countingObserver) ScanFailed(int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.scanFails++
}

func (o *countingObserver) counts() (triggered, fired, cancelled, scanFails int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.triggered, o.fired, o.cancelled, o.scanFails
}

// scriptedDriver returns one prepared row per Values call.
type scriptedDriver struct {
	mu     sync.Mutex
	rows   [][]float64
	calls  int
	values []float64
}

func (d *scriptedDriver) ChannelCount() int {
	return len(d.values)
}

func (d *scriptedDriver) Value(_ context.Context, channel int) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.values[channel], nil
}

func (d *scriptedDriver) Values(context.Context) ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	row := d.rows[d.calls%len(d.rows)]
	d.calls++

	return append([]float64(nil), row...), nil
}
