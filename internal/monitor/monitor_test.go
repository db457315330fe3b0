package monitor

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/hardware/sensor"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
)

const (
	testTolerance = 1.0
	awayDelay     = 30 * time.Second
	disarmedDelay = 5 * time.Second
)

type harness struct {
	inbox     *bus.Inbox
	store     *memoryStore
	publisher *recordingPublisher
	actuator  *recordingActuator
	observer  *countingObserver
	monitor   *Monitor
	cancel    context.CancelFunc
	done      chan error
}

// startMonitor runs a monitor inside the current synctest bubble.
func startMonitor(t *testing.T, driver sensor.Driver, st *memoryStore, source LayoutSource) *harness {
	t.Helper()

	h := &harness{
		inbox:     bus.NewInbox(workerName),
		store:     st,
		publisher: &recordingPublisher{},
		actuator:  &recordingActuator{},
		observer:  &countingObserver{},
		done:      make(chan error, 1),
	}

	nextID := 0

	m, err := New(Options{
		Inbox:          h.inbox,
		Driver:         driver,
		Store:          st,
		Publisher:      h.publisher,
		Actuator:       h.actuator,
		Observer:       h.observer,
		Layout:         source,
		Tolerance:      testTolerance,
		SampleInterval: 500 * time.Millisecond,
		NewID: func() string {
			nextID++

			return "alert-" + strconv.Itoa(nextID)
		},
	})
	require.NoError(t, err)

	h.monitor = m

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	go func() { h.done <- m.Run(ctx) }()

	advance(time.Second)

	return h
}

func (h *harness) send(action domain.Action) {
	h.inbox.Put(action)
	advance(time.Second)
}

func (h *harness) stop(t *testing.T) {
	t.Helper()

	h.inbox.Put(domain.ActionStop)
	require.NoError(t, <-h.done)
	h.cancel()
}

func advance(d time.Duration) {
	time.Sleep(d)
	synctest.Wait()
}

func perimeter() *domain.Zone {
	return &domain.Zone{
		ID:        1,
		Name:      "perimeter",
		AwayDelay: domain.DurationPtr(awayDelay),
	}
}

func frontDoor(zone *domain.Zone) *domain.Sensor {
	return &domain.Sensor{
		ID:             1,
		Name:           "front-door",
		Channel:        0,
		ReferenceValue: domain.FloatPtr(10),
		Enabled:        true,
		Zone:           zone,
	}
}

// TestNew_MissingDependencies rejects incomplete options.
func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.ErrorIs(t, err, ErrMissingDependency)

	_, err = New(Options{Inbox: bus.NewInbox(workerName), Driver: sensor.NewSimulated(1, 0)})
	require.ErrorIs(t, err, ErrMissingDependency)

	m, err := New(Options{
		Inbox:  bus.NewInbox(workerName),
		Driver: sensor.NewSimulated(1, 0),
		Store:  newMemoryStore(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.MonitoringStartup, m.Snapshot().MonitoringState)
	require.Equal(t, domain.ArmDisarm, m.Snapshot().ArmState)
}

// TestReferences checks averaging and shape validation.
func TestReferences(t *testing.T) {
	t.Parallel()

	references, err := References([][]float64{{10, 30}, {12, 28}}, 2)
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{11, 29}, references, 1e-9)

	_, err = References(nil, 2)
	require.ErrorIs(t, err, ErrCalibration)

	_, err = References([][]float64{{10, 30}, {12}}, 2)
	require.ErrorIs(t, err, ErrCalibration)
}

// TestMonitor_StartupSequence covers cleanup, initial events and the first load.
func TestMonitor_StartupSequence(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		door := frontDoor(perimeter())
		door.Alert = true

		st := newMemoryStore(door)
		st.alerts["stale"] = &domain.Alert{
			ID:        "stale",
			SensorID:  door.ID,
			ArmState:  domain.ArmAway,
			StartTime: time.Now().Add(-time.Hour),
		}

		h := startMonitor(t, sensor.NewSimulated(4, 10), st, nil)

		require.Equal(t, []time.Time{CleanupEndTime}, st.cleanupTimes())
		require.Equal(t, int64(946684800), CleanupEndTime.Unix())

		alerts := st.alertList()
		require.Len(t, alerts, 1)
		require.NotNil(t, alerts[0].EndTime)
		require.True(t, alerts[0].EndTime.Equal(CleanupEndTime))
		require.False(t, st.sensor(door.ID).Alert)

		require.Equal(t, []string{
			"alert:false",
			"syren:nil",
			"arm:disarm",
			"monitoring:startup",
			"monitoring:updating_config",
			"sensors:nil",
			"monitoring:ready",
			"sensors:false",
		}, h.publisher.list())

		snapshot := h.monitor.Snapshot()
		require.Equal(t, domain.MonitoringReady, snapshot.MonitoringState)
		require.Len(t, snapshot.Sensors, 1)
		require.Equal(t, "front-door", snapshot.Sensors[0].Name)

		h.stop(t)
	})
}

// TestMonitor_ArmedEscalationFiresOnce arms, trips a sensor and waits for the zone delay.
func TestMonitor_ArmedEscalationFiresOnce(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(frontDoor(perimeter()))
		h := startMonitor(t, driver, st, nil)

		h.send(domain.ActionArmAway)

		snapshot := h.monitor.Snapshot()
		require.Equal(t, domain.ArmAway, snapshot.ArmState)
		require.Equal(t, domain.MonitoringArmed, snapshot.MonitoringState)

		driver.Set(0, 12)
		advance(time.Second)

		require.True(t, st.sensor(1).Alert)
		require.True(t, h.monitor.Snapshot().Sensors[0].Escalating)

		advance(awayDelay - 2*time.Second)
		require.Empty(t, h.actuator.fired())

		advance(3 * time.Second)

		fired := h.actuator.fired()
		require.Len(t, fired, 1)
		require.Equal(t, "front-door", fired[0].SensorName)
		require.Equal(t, "perimeter", fired[0].ZoneName)
		require.Equal(t, domain.ArmAway, fired[0].ArmState)
		require.Equal(t, awayDelay, fired[0].Delay)

		advance(time.Minute)
		require.Len(t, h.actuator.fired(), 1)

		alerts := st.alertList()
		require.Len(t, alerts, 1)
		require.True(t, alerts[0].Open())
		require.Equal(t, domain.ArmAway, alerts[0].ArmState)

		snapshot = h.monitor.Snapshot()
		require.True(t, snapshot.SyrenOn)
		require.Equal(t, domain.MonitoringArmed, snapshot.MonitoringState)
		require.Contains(t, h.publisher.list(), "syren:true")
		require.Contains(t, h.publisher.list(), "alert:true")

		// A cleared armed alert closes its record and keeps the system armed.
		driver.Set(0, 10)
		advance(time.Second)

		alerts = st.alertList()
		require.False(t, alerts[0].Open())
		require.Equal(t, domain.MonitoringArmed, h.monitor.Snapshot().MonitoringState)

		h.stop(t)
	})
}

// TestMonitor_DisarmCancelsAndRearmDoesNotRetrigger follows one sensor through
// arm, trip, disarm and re-arm.
func TestMonitor_DisarmCancelsAndRearmDoesNotRetrigger(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		h := startMonitor(t, driver, newMemoryStore(frontDoor(perimeter())), nil)

		h.send(domain.ActionArmAway)

		driver.Set(0, 12)
		advance(10 * time.Second)

		triggered, fired, _, _ := h.observer.counts()
		require.Equal(t, 1, triggered)
		require.Zero(t, fired)

		h.send(domain.ActionDisarm)

		snapshot := h.monitor.Snapshot()
		require.Equal(t, domain.ArmDisarm, snapshot.ArmState)
		require.Equal(t, domain.MonitoringReady, snapshot.MonitoringState)

		_, _, cancelled, _ := h.observer.counts()
		require.Equal(t, 1, cancelled)

		advance(time.Minute)
		require.Empty(t, h.actuator.fired())

		// The stale entry blocks a new escalation while the sensor stays in alert.
		h.send(domain.ActionArmAway)
		advance(time.Minute)

		triggered, _, _, _ = h.observer.counts()
		require.Equal(t, 1, triggered)
		require.Empty(t, h.actuator.fired())

		driver.Set(0, 10)
		advance(time.Second)
		require.False(t, h.monitor.Snapshot().Sensors[0].Escalating)

		driver.Set(0, 12)
		advance(time.Second)

		triggered, _, _, _ = h.observer.counts()
		require.Equal(t, 2, triggered)

		advance(awayDelay + time.Second)
		require.Len(t, h.actuator.fired(), 1)

		h.stop(t)
	})
}

// TestMonitor_SabotageAndRevert escalates while disarmed and recovers when the sensor clears.
func TestMonitor_SabotageAndRevert(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		zone := perimeter()
		zone.DisarmedDelay = domain.DurationPtr(disarmedDelay)

		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(frontDoor(zone))
		h := startMonitor(t, driver, st, nil)

		driver.Set(0, 12)
		advance(disarmedDelay + 2*time.Second)

		fired := h.actuator.fired()
		require.Len(t, fired, 1)
		require.True(t, fired[0].Sabotage())
		require.Equal(t, disarmedDelay, fired[0].Delay)
		require.Equal(t, domain.MonitoringSabotage, h.monitor.Snapshot().MonitoringState)

		driver.Set(0, 10)
		advance(time.Second)

		snapshot := h.monitor.Snapshot()
		require.Equal(t, domain.MonitoringReady, snapshot.MonitoringState)
		require.True(t, snapshot.SyrenOn)
		require.False(t, st.alertList()[0].Open())

		h.send(domain.ActionDisarm)

		require.False(t, h.monitor.Snapshot().SyrenOn)
		require.Equal(t, 1, h.actuator.silences())
		require.Contains(t, h.publisher.list(), "syren:false")

		h.stop(t)
	})
}

// TestMonitor_DisarmClosesOpenAlerts silences the siren and ends open records.
func TestMonitor_DisarmClosesOpenAlerts(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(frontDoor(perimeter()))
		h := startMonitor(t, driver, st, nil)

		h.send(domain.ActionArmStay)
		require.Equal(t, domain.ArmStay, h.monitor.Snapshot().ArmState)

		// The zone has no stay delay, so nothing escalates.
		driver.Set(0, 12)
		advance(time.Minute)
		require.Empty(t, h.actuator.fired())

		driver.Set(0, 10)
		advance(time.Second)

		h.send(domain.ActionArmAway)

		driver.Set(0, 12)
		advance(awayDelay + 2*time.Second)
		require.Len(t, h.actuator.fired(), 1)
		require.True(t, st.alertList()[0].Open())

		h.send(domain.ActionDisarm)

		require.False(t, st.alertList()[0].Open())
		require.False(t, h.monitor.Snapshot().SyrenOn)

		h.stop(t)
	})
}

// TestMonitor_InvalidConfig rejects sensor sets the driver cannot serve.
func TestMonitor_InvalidConfig(t *testing.T) {
	t.Parallel()

	second := func(channel int) *domain.Sensor {
		return &domain.Sensor{
			ID:             2,
			Name:           "hall-pir",
			Channel:        channel,
			ReferenceValue: domain.FloatPtr(10),
			Enabled:        true,
		}
	}

	cases := map[string]struct {
		channels int
		sensors  []*domain.Sensor
	}{
		"duplicate channel": {
			channels: 4,
			sensors:  []*domain.Sensor{frontDoor(nil), second(0)},
		},
		"too many sensors": {
			channels: 1,
			sensors:  []*domain.Sensor{frontDoor(nil), second(1)},
		},
		"channel out of range": {
			channels: 2,
			sensors:  []*domain.Sensor{frontDoor(nil), second(5)},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			synctest.Test(t, func(t *testing.T) {
				driver := sensor.NewSimulated(tc.channels, 10)
				st := newMemoryStore(tc.sensors...)
				h := startMonitor(t, driver, st, nil)

				snapshot := h.monitor.Snapshot()
				require.Equal(t, domain.MonitoringInvalidConfig, snapshot.MonitoringState)
				require.Empty(t, snapshot.Sensors)

				advance(5 * time.Second)
				require.Zero(t, driver.Reads(0))

				// Fixing the store and reloading recovers.
				st.mu.Lock()
				st.sensors = st.sensors[:1]
				st.mu.Unlock()

				h.send(domain.ActionUpdateConfig)
				require.Equal(t, domain.MonitoringReady, h.monitor.Snapshot().MonitoringState)

				h.stop(t)
			})
		})
	}
}

// TestMonitor_LoadErrorIsInvalidConfig treats storage failures as configuration errors.
func TestMonitor_LoadErrorIsInvalidConfig(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		st := newMemoryStore(frontDoor(nil))
		st.loadErr = errors.New("database is locked")

		h := startMonitor(t, sensor.NewSimulated(2, 10), st, nil)
		require.Equal(t, domain.MonitoringInvalidConfig, h.monitor.Snapshot().MonitoringState)

		h.stop(t)
	})
}

// TestMonitor_Calibration averages the measurement cycles into reference values.
func TestMonitor_Calibration(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := &scriptedDriver{
			rows:   [][]float64{{10, 30}, {12, 28}},
			values: []float64{11, 29},
		}

		st := newMemoryStore(
			&domain.Sensor{ID: 1, Name: "front-door", Channel: 0, Enabled: true},
			&domain.Sensor{ID: 2, Name: "hall-pir", Channel: 1, Enabled: true},
		)

		h := startMonitor(t, driver, st, nil)
		advance(DefaultSettleTime)

		require.Equal(t, domain.MonitoringReady, h.monitor.Snapshot().MonitoringState)
		require.InDelta(t, 11, *st.sensor(1).ReferenceValue, 1e-9)
		require.InDelta(t, 29, *st.sensor(2).ReferenceValue, 1e-9)
		require.False(t, st.sensor(1).Alert)

		h.stop(t)
	})
}

// TestMonitor_CalibrationFailure leaves references unset and rejects the configuration.
func TestMonitor_CalibrationFailure(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := &scriptedDriver{
			rows:   [][]float64{{10}},
			values: []float64{11, 29},
		}

		st := newMemoryStore(&domain.Sensor{ID: 1, Name: "front-door", Channel: 0, Enabled: true})

		h := startMonitor(t, driver, st, nil)
		advance(DefaultSettleTime)

		require.Equal(t, domain.MonitoringInvalidConfig, h.monitor.Snapshot().MonitoringState)
		require.Nil(t, st.sensor(1).ReferenceValue)

		h.stop(t)
	})
}

// TestMonitor_ReloadWhileArmed keeps the system armed after a configuration reload.
func TestMonitor_ReloadWhileArmed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		var layoutCalls int

		source := func(context.Context) (*layout.Layout, error) {
			layoutCalls++

			return &layout.Layout{}, nil
		}

		st := newMemoryStore(frontDoor(perimeter()))
		h := startMonitor(t, sensor.NewSimulated(4, 10), st, source)

		h.send(domain.ActionArmAway)
		h.send(domain.ActionUpdateConfig)

		require.Equal(t, domain.MonitoringArmed, h.monitor.Snapshot().MonitoringState)
		require.Contains(t, h.publisher.list(), "monitoring:updating_config")

		h.stop(t)

		require.Equal(t, 2, layoutCalls)
		require.Len(t, st.layouts, 2)
	})
}

// TestMonitor_ReadFailureKeepsFlag leaves the alert flag alone when a read fails.
func TestMonitor_ReadFailureKeepsFlag(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(frontDoor(perimeter()))
		h := startMonitor(t, driver, st, nil)

		driver.Set(0, 12)
		advance(time.Second)
		require.True(t, st.sensor(1).Alert)

		driver.Set(0, 10)
		driver.Fail(0, errors.New("i2c timeout"))
		advance(2 * time.Second)

		require.True(t, st.sensor(1).Alert)
		require.True(t, h.monitor.Snapshot().SensorsAlerting)

		_, _, _, scanFails := h.observer.counts()
		require.Positive(t, scanFails)

		driver.Fail(0, nil)
		advance(time.Second)
		require.False(t, st.sensor(1).Alert)

		h.stop(t)
	})
}

// TestMonitor_StayOnlyZone escalates a zone without an away delay only while armed stay.
func TestMonitor_StayOnlyZone(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		livingRoom := &domain.Zone{
			ID:        2,
			Name:      "living-room",
			StayDelay: domain.DurationPtr(20 * time.Second),
		}

		driver := sensor.NewSimulated(4, 10)
		h := startMonitor(t, driver, newMemoryStore(frontDoor(livingRoom)), nil)

		h.send(domain.ActionArmAway)
		driver.Set(0, 12)
		advance(time.Minute)

		triggered, _, _, _ := h.observer.counts()
		require.Zero(t, triggered)
		require.Empty(t, h.actuator.fired())

		driver.Set(0, 10)
		advance(time.Second)

		h.send(domain.ActionArmStay)
		require.Equal(t, domain.ArmStay, h.monitor.Snapshot().ArmState)

		driver.Set(0, 12)
		advance(19 * time.Second)
		require.Empty(t, h.actuator.fired())

		advance(3 * time.Second)

		fired := h.actuator.fired()
		require.Len(t, fired, 1)
		require.Equal(t, domain.ArmStay, fired[0].ArmState)
		require.Equal(t, "living-room", fired[0].ZoneName)

		h.stop(t)
	})
}

// TestMonitor_ArmingEscalatesStandingAlert schedules an escalation for a sensor
// that went out of tolerance while no delay applied, once arming adds one.
func TestMonitor_ArmingEscalatesStandingAlert(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(frontDoor(perimeter()))
		h := startMonitor(t, driver, st, nil)

		driver.Set(0, 12)
		advance(time.Minute)

		require.True(t, st.sensor(1).Alert)
		require.Equal(t, domain.MonitoringReady, h.monitor.Snapshot().MonitoringState)

		triggered, _, _, _ := h.observer.counts()
		require.Zero(t, triggered)

		h.send(domain.ActionArmAway)
		advance(awayDelay + 2*time.Second)

		fired := h.actuator.fired()
		require.Len(t, fired, 1)
		require.Equal(t, domain.ArmAway, fired[0].ArmState)

		h.stop(t)
	})
}

// TestMonitor_DisabledSensorDoesNotEscalate tracks alerts of disabled sensors without escalating.
func TestMonitor_DisabledSensorDoesNotEscalate(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		door := frontDoor(perimeter())
		door.Enabled = false

		driver := sensor.NewSimulated(4, 10)
		st := newMemoryStore(door)
		h := startMonitor(t, driver, st, nil)

		h.send(domain.ActionArmAway)
		driver.Set(0, 12)
		advance(awayDelay * 2)

		require.True(t, st.sensor(1).Alert)
		require.Empty(t, h.actuator.fired())

		triggered, _, _, _ := h.observer.counts()
		require.Zero(t, triggered)

		h.stop(t)
	})
}

// TestMonitor_StopAbortsPendingEscalations exits without firing scheduled escalations.
func TestMonitor_StopAbortsPendingEscalations(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		driver := sensor.NewSimulated(4, 10)
		h := startMonitor(t, driver, newMemoryStore(frontDoor(perimeter())), nil)

		h.send(domain.ActionArmAway)
		driver.Set(0, 12)
		advance(time.Second)

		h.stop(t)

		advance(time.Minute)
		require.Empty(t, h.actuator.fired())
	})
}

// TestMonitor_ContextCancel stops the loop when the context is done.
func TestMonitor_ContextCancel(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := startMonitor(t, sensor.NewSimulated(4, 10), newMemoryStore(frontDoor(perimeter())), nil)

		h.cancel()
		require.NoError(t, <-h.done)
	})
}
