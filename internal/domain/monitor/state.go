package monitor

import (
	"errors"
	"fmt"
	"strings"
)

// ArmState tells whether the premises are disarmed, armed away or armed stay.
type ArmState string

const (
	// ArmDisarm means no intrusion escalation; only sabotage is watched.
	ArmDisarm ArmState = "disarm"
	// ArmAway is used when nobody is home.
	ArmAway ArmState = "away"
	// ArmStay is used when the occupants are home.
	ArmStay ArmState = "stay"
)

// IsArmed reports whether a is one of the armed states.
func (a ArmState) IsArmed() bool {
	return a == ArmAway || a == ArmStay
}

// MonitoringState is the operational phase of the daemon.
type MonitoringState string

const (
	// MonitoringStartup is the phase before the first configuration load.
	MonitoringStartup MonitoringState = "startup"
	// MonitoringUpdatingConfig is set while sensors are being (re)loaded.
	MonitoringUpdatingConfig MonitoringState = "updating_config"
	// MonitoringInvalidConfig means the last load was rejected.
	MonitoringInvalidConfig MonitoringState = "invalid_config"
	// MonitoringReady means sensors are loaded and the system is disarmed.
	MonitoringReady MonitoringState = "ready"
	// MonitoringArmed means the system is armed.
	MonitoringArmed MonitoringState = "armed"
	// MonitoringSabotage means an alert escalated while disarmed.
	MonitoringSabotage MonitoringState = "sabotage"
)

// WatchesSabotage reports whether disarmed delays apply in this phase.
func (m MonitoringState) WatchesSabotage() bool {
	return m == MonitoringReady || m == MonitoringSabotage
}

// Action is a control message copied to every worker inbox.
type Action string

const (
	// ActionArmAway arms the system in away mode.
	ActionArmAway Action = "arm_away"
	// ActionArmStay arms the system in stay mode.
	ActionArmStay Action = "arm_stay"
	// ActionDisarm disarms the system and cancels pending escalations.
	ActionDisarm Action = "disarm"
	// ActionUpdateConfig reloads sensors and zones.
	ActionUpdateConfig Action = "update_config"
	// ActionUpdateKeypad reloads keypad settings.
	ActionUpdateKeypad Action = "update_keypad"
	// ActionStop asks every worker to exit.
	ActionStop Action = "stop"
)

// ErrUnknownAction is returned by ParseAction for unrecognised names.
var ErrUnknownAction = errors.New("unknown action")

// ParseAction converts a textual action name, as typed on the CLI or sent
// over gRPC, to an Action.
func ParseAction(s string) (Action, error) {
	action := Action(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))

	switch action {
	case ActionArmAway, ActionArmStay, ActionDisarm, ActionUpdateConfig, ActionUpdateKeypad, ActionStop:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

// ArmState returns the arm state an arming action leads to.
func (a Action) ArmState() (ArmState, bool) {
	switch a {
	case ActionArmAway:
		return ArmAway, true
	case ActionArmStay:
		return ArmStay, true
	case ActionDisarm:
		return ArmDisarm, true
	default:
		return "", false
	}
}
