package monitor

import "time"

// SensorStatus is the read-only view of a loaded sensor.
type SensorStatus struct {
	ID         int64
	Name       string
	Channel    int
	Alert      bool
	Enabled    bool
	Escalating bool
}

// Snapshot is an immutable copy of the state machine's state, published
// after every tick for the other workers.
type Snapshot struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time
	// ArmState is the authoritative arm state.
	ArmState ArmState
	// MonitoringState is the authoritative monitoring phase.
	MonitoringState MonitoringState
	// SensorsAlerting is true while any loaded sensor is alerting.
	SensorsAlerting bool
	// SyrenOn is true after an escalation fired and until disarm.
	SyrenOn bool
	// Sensors lists the working sensor set.
	Sensors []SensorStatus
}

// Clone returns a copy that shares nothing with s.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Sensors = append([]SensorStatus(nil), s.Sensors...)

	return &cloned
}
