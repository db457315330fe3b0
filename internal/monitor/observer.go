package monitor

import domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"

// Observer receives counters from the state machine.
type Observer interface {
	ActionApplied(action domain.Action)
	EscalationTriggered(arm domain.ArmState)
	EscalationFired(arm domain.ArmState)
	EscalationsCancelled(count int)
	ScanFailed(channel int)
}

type nopObserver struct{}

func (nopObserver) ActionApplied(domain.Action)         {}
func (nopObserver) EscalationTriggered(domain.ArmState) {}
func (nopObserver) EscalationFired(domain.ArmState)     {}
func (nopObserver) EscalationsCancelled(int)            {}
func (nopObserver) ScanFailed(int)                      {}
