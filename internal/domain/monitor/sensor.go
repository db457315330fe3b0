package monitor

import (
	"math"
	"time"
)

// Zone groups sensors sharing escalation delays.
// A nil delay means no escalation in that arm context.
type Zone struct {
	// ID is the store identifier.
	ID int64
	// Name is unique among zones.
	Name string
	// DisarmedDelay applies while the system is ready or in sabotage.
	DisarmedDelay *time.Duration
	// AwayDelay applies while armed away.
	AwayDelay *time.Duration
	// StayDelay applies while armed stay.
	StayDelay *time.Duration
}

// Delay picks the escalation delay for the given context.
// The arm-specific delay wins when it is configured; otherwise the disarmed
// delay applies while the monitoring phase watches for sabotage.
func (z *Zone) Delay(monitoring MonitoringState, arm ArmState) (time.Duration, bool) {
	if z == nil {
		return 0, false
	}

	switch {
	case arm == ArmAway && z.AwayDelay != nil:
		return *z.AwayDelay, true
	case arm == ArmStay && z.StayDelay != nil:
		return *z.StayDelay, true
	case monitoring.WatchesSabotage() && z.DisarmedDelay != nil:
		return *z.DisarmedDelay, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy of the zone.
func (z *Zone) Clone() *Zone {
	if z == nil {
		return nil
	}

	return &Zone{
		ID:            z.ID,
		Name:          z.Name,
		DisarmedDelay: cloneDuration(z.DisarmedDelay),
		AwayDelay:     cloneDuration(z.AwayDelay),
		StayDelay:     cloneDuration(z.StayDelay),
	}
}

// Sensor is one monitored analog channel.
type Sensor struct {
	// ID is the store identifier.
	ID int64
	// Name is unique among sensors.
	Name string
	// Channel is the driver channel the sensor is wired to.
	Channel int
	// ReferenceValue is the calibrated quiescent reading, nil until calibrated.
	ReferenceValue *float64
	// Alert is set while the last reading was out of tolerance.
	Alert bool
	// Enabled sensors take part in escalation.
	Enabled bool
	// Deleted sensors are kept for history only.
	Deleted bool
	// Zone the sensor belongs to.
	Zone *Zone
}

// Calibrated reports whether the sensor has a reference value.
func (s *Sensor) Calibrated() bool {
	return s.ReferenceValue != nil
}

// InTolerance reports whether value is within tolerance of the reference.
func (s *Sensor) InTolerance(value, tolerance float64) bool {
	if s.ReferenceValue == nil {
		return true
	}

	return math.Abs(value-*s.ReferenceValue) < tolerance
}

// Clone returns a deep copy of the sensor including its zone.
func (s *Sensor) Clone() *Sensor {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Zone = s.Zone.Clone()

	if s.ReferenceValue != nil {
		reference := *s.ReferenceValue
		cloned.ReferenceValue = &reference
	}

	return &cloned
}

// Alert is a persisted record of an escalated sensor alert.
type Alert struct {
	// ID is a random UUID.
	ID string
	// SensorID references the alerting sensor.
	SensorID int64
	// ArmState is the arm state captured when the alert was triggered.
	ArmState ArmState
	// StartTime is when the escalation fired.
	StartTime time.Time
	// EndTime is nil while the alert is open.
	EndTime *time.Time
}

// Open reports whether the alert has not been closed yet.
func (a *Alert) Open() bool {
	return a.EndTime == nil
}

// Escalation describes a fired escalation handed to the actuator.
type Escalation struct {
	// SensorID references the alerting sensor.
	SensorID int64
	// SensorName is used in notification texts.
	SensorName string
	// Channel is the driver channel of the sensor.
	Channel int
	// ZoneName is used in notification texts.
	ZoneName string
	// ArmState is the arm state captured at trigger time.
	ArmState ArmState
	// Delay is the zone delay that elapsed before firing.
	Delay time.Duration
	// FiredAt is when the delay elapsed.
	FiredAt time.Time
}

// Sabotage reports whether the escalation was triggered while disarmed.
func (e *Escalation) Sabotage() bool {
	return e.ArmState == ArmDisarm
}

func cloneDuration(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}

	v := *d

	return &v
}

// DurationPtr returns a pointer to d, handy for zone literals.
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// FloatPtr returns a pointer to f, handy for reference values.
func FloatPtr(f float64) *float64 {
	return &f
}
