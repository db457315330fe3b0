package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/hardware/sensor"
	"github.com/oshokin/alarm-monitor/internal/logger"
	"github.com/oshokin/alarm-monitor/internal/notify"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
	"github.com/oshokin/alarm-monitor/internal/repository/store"
)

const (
	// MeasurementCycles is the number of full readings averaged by calibration.
	MeasurementCycles = 2
	// DefaultSettleTime is the pause between calibration cycles.
	DefaultSettleTime = 3 * time.Second
	// DefaultSampleInterval is the tick period for a sample rate of 2 Hz.
	DefaultSampleInterval = 500 * time.Millisecond
	// DefaultTolerance is the allowed deviation from the reference value.
	DefaultTolerance = 0.5

	workerName     = "monitor"
	firedQueueSize = 16
)

// CleanupEndTime closes alert records left open by a previous run.
// It is a recognisable sentinel, not a real end time.
//
//nolint:gochecknoglobals // Fixed sentinel value.
var CleanupEndTime = time.Unix(946684800, 0).UTC()

var (
	// ErrMissingDependency is returned by New when a required option is nil.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrTooManySensors means more sensors are configured than the driver has channels.
	ErrTooManySensors = errors.New("more sensors than channels")
	// ErrDuplicateChannel means two sensors share one channel.
	ErrDuplicateChannel = errors.New("duplicate sensor channel")
	// ErrChannelOutOfRange means a sensor is wired to a channel the driver lacks.
	ErrChannelOutOfRange = errors.New("sensor channel out of range")
)

// LayoutSource returns the declarative layout to reconcile into the store
// before sensors are loaded. A nil layout means nothing to reconcile.
type LayoutSource func(ctx context.Context) (*layout.Layout, error)

// Options configures a Monitor.
type Options struct {
	// Inbox is the monitor's mailbox on the action bus.
	Inbox *bus.Inbox
	// Driver reads sensor values.
	Driver sensor.Driver
	// Store persists sensors and alert records.
	Store store.Store
	// Publisher receives state changes; optional.
	Publisher notify.Publisher
	// Actuator runs fired escalations; optional.
	Actuator notify.Actuator
	// Observer receives counters; optional.
	Observer Observer
	// Layout is reconciled into the store on every load; optional.
	Layout LayoutSource
	// Tolerance is the allowed deviation from the reference value.
	Tolerance float64
	// SampleInterval is the maximum wait for an action per tick.
	SampleInterval time.Duration
	// SettleTime is the pause between calibration cycles.
	SettleTime time.Duration
	// NewID generates alert record IDs; defaults to random UUIDs.
	NewID func() string
}

// Monitor is the alarm state machine worker.
type Monitor struct {
	inbox          *bus.Inbox
	driver         sensor.Driver
	store          store.Store
	publisher      notify.Publisher
	actuator       notify.Actuator
	observer       Observer
	layout         LayoutSource
	tolerance      float64
	sampleInterval time.Duration
	settleTime     time.Duration
	newID          func() string

	// Fields below are owned by the goroutine running Run.
	armState        domain.ArmState
	monitoringState domain.MonitoringState
	sensors         []*domain.Sensor
	sensorsAlerting bool
	syrenOn         bool
	escalations     map[int64]*escalation
	openAlerts      map[int64]string
	generation      *generation
	base            context.Context //nolint:containedctx // Parent of escalation generations.
	batch           *store.Batch

	// fired carries escalations whose delay elapsed.
	fired chan *escalation
	// tasks tracks escalation goroutines.
	tasks sync.WaitGroup
	// snapshot is the last published state.
	snapshot atomic.Pointer[domain.Snapshot]
}

// New validates opts and creates a monitor in the STARTUP phase.
func New(opts Options) (*Monitor, error) {
	switch {
	case opts.Inbox == nil:
		return nil, fmt.Errorf("%w: inbox", ErrMissingDependency)
	case opts.Driver == nil:
		return nil, fmt.Errorf("%w: sensor driver", ErrMissingDependency)
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}

	m := &Monitor{
		inbox:           opts.Inbox,
		driver:          opts.Driver,
		store:           opts.Store,
		publisher:       opts.Publisher,
		actuator:        opts.Actuator,
		observer:        opts.Observer,
		layout:          opts.Layout,
		tolerance:       opts.Tolerance,
		sampleInterval:  opts.SampleInterval,
		settleTime:      opts.SettleTime,
		newID:           opts.NewID,
		armState:        domain.ArmDisarm,
		monitoringState: domain.MonitoringStartup,
		escalations:     make(map[int64]*escalation),
		openAlerts:      make(map[int64]string),
		batch:           store.NewBatch(),
		fired:           make(chan *escalation, firedQueueSize),
	}

	if m.publisher == nil {
		m.publisher = notify.NewFanout()
	}

	if m.actuator == nil {
		m.actuator = nopActuator{}
	}

	if m.observer == nil {
		m.observer = nopObserver{}
	}

	if m.tolerance <= 0 {
		m.tolerance = DefaultTolerance
	}

	if m.sampleInterval <= 0 {
		m.sampleInterval = DefaultSampleInterval
	}

	if m.settleTime <= 0 {
		m.settleTime = DefaultSettleTime
	}

	if m.newID == nil {
		m.newID = uuid.NewString
	}

	m.publishSnapshot()

	return m, nil
}

// Name implements supervisor.Worker.
func (m *Monitor) Name() string {
	return workerName
}

// Snapshot returns a copy of the state published after the last tick.
func (m *Monitor) Snapshot() *domain.Snapshot {
	return m.snapshot.Load().Clone()
}

// Run performs the startup sequence and ticks until STOP arrives or ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, workerName)
	m.base = ctx

	logger.Info(ctx, "Monitoring started")

	defer m.shutdown(ctx)

	m.cleanup(ctx)

	m.publisher.PublishAlertState(ctx, false)
	m.publisher.PublishSyrenState(ctx, nil)
	m.publisher.PublishArmState(ctx, m.armState)
	m.publisher.PublishMonitoringState(ctx, m.monitoringState)

	m.loadSensors(ctx)
	m.commit(ctx)
	m.publishSnapshot()

	for {
		if !m.tick(ctx) {
			return nil
		}
	}
}

// tick runs one iteration of the main loop and reports whether to continue.
func (m *Monitor) tick(ctx context.Context) bool {
	action, received := m.inbox.Receive(ctx, m.sampleInterval)
	if ctx.Err() != nil {
		return false
	}

	// Escalations evaluate against the state as of the start of the tick.
	arm, monitoring := m.armState, m.monitoringState

	m.drainFired(ctx)

	if received {
		m.observer.ActionApplied(action)

		switch action {
		case domain.ActionArmAway, domain.ActionArmStay:
			state, _ := action.ArmState()
			m.arm(ctx, state)
		case domain.ActionDisarm:
			m.disarm(ctx)
			m.commit(ctx)
			m.publishSnapshot()

			return true
		case domain.ActionUpdateConfig:
			m.loadSensors(ctx)
		case domain.ActionUpdateKeypad:
			logger.Debug(ctx, "Keypad update ignored by monitor")
		case domain.ActionStop:
			logger.Info(ctx, "Stop requested")
			m.commit(ctx)

			return false
		}
	}

	m.scan(ctx)
	m.escalate(ctx, monitoring, arm)
	m.commit(ctx)
	m.publishSnapshot()

	return true
}

func (m *Monitor) arm(ctx context.Context, state domain.ArmState) {
	m.setArmState(ctx, state)
	m.setMonitoringState(ctx, domain.MonitoringArmed)
	m.currentGeneration()
}

func (m *Monitor) disarm(ctx context.Context) {
	if m.armState.IsArmed() {
		m.setArmState(ctx, domain.ArmDisarm)
	}

	if m.monitoringState == domain.MonitoringArmed {
		m.setMonitoringState(ctx, domain.MonitoringReady)
	}

	m.cancelGeneration(ctx)

	if !m.syrenOn {
		return
	}

	m.syrenOn = false
	off := false

	m.publisher.PublishSyrenState(ctx, &off)
	m.publisher.PublishAlertState(ctx, false)
	m.actuator.Silence(ctx)

	now := time.Now()
	for sensorID, alertID := range m.openAlerts {
		m.batch.CloseAlert(alertID, now)
		delete(m.openAlerts, sensorID)
	}
}

func (m *Monitor) setArmState(ctx context.Context, state domain.ArmState) {
	if m.armState != state {
		logger.InfoKV(ctx, "Arm state set", "from", m.armState, "to", state)
	}

	m.armState = state
	m.publisher.PublishArmState(ctx, state)
}

func (m *Monitor) setMonitoringState(ctx context.Context, state domain.MonitoringState) {
	if m.monitoringState != state {
		logger.InfoKV(ctx, "Monitoring state set", "from", m.monitoringState, "to", state)
	}

	m.monitoringState = state
	m.publisher.PublishMonitoringState(ctx, state)
}

// cleanup clears state left by a previous run that did not stop cleanly.
func (m *Monitor) cleanup(ctx context.Context) {
	result, err := m.store.Cleanup(ctx, CleanupEndTime)
	if err != nil {
		logger.ErrorKV(ctx, "Startup cleanup failed", "error", err)

		return
	}

	if result.Changed() {
		logger.InfoKV(ctx, "Cleared state of previous run",
			"sensors", result.Sensors,
			"alerts", result.Alerts,
		)
	}
}

// loadSensors runs the configuration load sequence.
func (m *Monitor) loadSensors(ctx context.Context) {
	logger.Info(ctx, "Loading sensors")

	m.setMonitoringState(ctx, domain.MonitoringUpdatingConfig)
	m.publisher.PublishSensorsState(ctx, nil)

	sensors, err := m.readSensors(ctx)
	if err == nil {
		err = m.validate(sensors)
	}

	if err == nil && needsCalibration(sensors) {
		err = m.calibrate(ctx, sensors)
	}

	if err != nil {
		logger.ErrorKV(ctx, "Sensor configuration rejected", "error", err)
		m.replaceSensors(ctx, nil)
		m.setMonitoringState(ctx, domain.MonitoringInvalidConfig)
		m.publishSensorsState(ctx)

		return
	}

	m.replaceSensors(ctx, sensors)

	logger.InfoKV(ctx, "Sensors loaded", "count", len(sensors))

	if m.armState.IsArmed() {
		m.setMonitoringState(ctx, domain.MonitoringArmed)
	} else {
		m.setMonitoringState(ctx, domain.MonitoringReady)
	}

	m.publishSensorsState(ctx)
}

func (m *Monitor) readSensors(ctx context.Context) ([]*domain.Sensor, error) {
	if m.layout != nil {
		l, err := m.layout(ctx)
		if err != nil {
			return nil, fmt.Errorf("read layout: %w", err)
		}

		if l != nil {
			if err = m.store.SyncLayout(ctx, l); err != nil {
				return nil, fmt.Errorf("sync layout: %w", err)
			}
		}
	}

	sensors, err := m.store.LoadSensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load sensors: %w", err)
	}

	return sensors, nil
}

func (m *Monitor) validate(sensors []*domain.Sensor) error {
	capacity := m.driver.ChannelCount()
	if len(sensors) > capacity {
		return fmt.Errorf("%w: %d sensors, %d channels", ErrTooManySensors, len(sensors), capacity)
	}

	channels := make(map[int]string, len(sensors))

	for _, s := range sensors {
		if s.Channel < 0 || s.Channel >= capacity {
			return fmt.Errorf("%w: %s on channel %d", ErrChannelOutOfRange, s.Name, s.Channel)
		}

		if other, ok := channels[s.Channel]; ok {
			return fmt.Errorf("%w: %s and %s on channel %d", ErrDuplicateChannel, other, s.Name, s.Channel)
		}

		channels[s.Channel] = s.Name
	}

	return nil
}

// replaceSensors installs a new working set. Escalations of sensors that
// are no longer loaded are dropped and their alert records closed.
func (m *Monitor) replaceSensors(ctx context.Context, sensors []*domain.Sensor) {
	loaded := make(map[int64]struct{}, len(sensors))
	for _, s := range sensors {
		loaded[s.ID] = struct{}{}
	}

	for sensorID, e := range m.escalations {
		if _, ok := loaded[sensorID]; ok {
			continue
		}

		logger.InfoKV(ctx, "Escalation dropped for unloaded sensor", "sensor", e.sensorName)
		m.removeEscalation(sensorID, e)
	}

	m.sensors = sensors

	m.sensorsAlerting = false
	for _, s := range sensors {
		m.sensorsAlerting = m.sensorsAlerting || s.Alert
	}
}

func (m *Monitor) publishSensorsState(ctx context.Context) {
	alerting := m.sensorsAlerting
	m.publisher.PublishSensorsState(ctx, &alerting)
}

// commit persists the tick's mutations. A failed commit is logged and the
// batch is discarded.
func (m *Monitor) commit(ctx context.Context) {
	if m.batch.Empty() {
		return
	}

	if err := m.store.Commit(ctx, m.batch); err != nil {
		logger.ErrorKV(ctx, "Failed to persist tick", "error", err)
	}

	m.batch = store.NewBatch()
}

func (m *Monitor) publishSnapshot() {
	statuses := make([]domain.SensorStatus, 0, len(m.sensors))

	for _, s := range m.sensors {
		_, escalating := m.escalations[s.ID]

		statuses = append(statuses, domain.SensorStatus{
			ID:         s.ID,
			Name:       s.Name,
			Channel:    s.Channel,
			Alert:      s.Alert,
			Enabled:    s.Enabled,
			Escalating: escalating,
		})
	}

	m.snapshot.Store(&domain.Snapshot{
		Timestamp:       time.Now(),
		ArmState:        m.armState,
		MonitoringState: m.monitoringState,
		SensorsAlerting: m.sensorsAlerting,
		SyrenOn:         m.syrenOn,
		Sensors:         statuses,
	})
}

// shutdown cancels pending escalations and waits for their goroutines.
func (m *Monitor) shutdown(ctx context.Context) {
	if m.generation != nil {
		m.generation.cancel()
	}

	m.tasks.Wait()
	m.publishSnapshot()

	logger.Info(ctx, "Monitoring stopped")
}

type nopActuator struct{}

func (nopActuator) Escalate(context.Context, *domain.Escalation) {}
func (nopActuator) Silence(context.Context)                      {}
