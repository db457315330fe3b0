package keypad

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

const (
	// CommunicationPeriod is the keypad polling period.
	CommunicationPeriod = 500 * time.Millisecond
	// PressTimeout clears a partially typed code after this much idle time.
	PressTimeout = 3 * time.Second
	// CodeLength is the number of digits in a code.
	CodeLength = 4

	workerName = "keypad"
)

// Worker drives a keypad: it mirrors the arm state on the keypad LED and
// turns typed codes into actions on the bus.
type Worker struct {
	// keypad is the device.
	keypad Keypad
	// inbox receives bus actions.
	inbox *bus.Inbox
	// sender receives actions typed on the keypad.
	sender bus.Sender
	// codes are the accepted user codes.
	codes []string

	// armed mirrors the last arm action seen on the bus.
	armed bool
	// presses holds the digits typed so far.
	presses string
	// lastPress is when the last key arrived.
	lastPress time.Time
	// codeAccepted is set after a valid code while disarmed, waiting for away or stay.
	codeAccepted bool
}

// NewWorker creates a keypad worker.
func NewWorker(keypad Keypad, inbox *bus.Inbox, sender bus.Sender, codes []string) *Worker {
	return &Worker{
		keypad: keypad,
		inbox:  inbox,
		sender: sender,
		codes:  slices.Clone(codes),
	}
}

// Name implements supervisor.Worker.
func (w *Worker) Name() string {
	return workerName
}

// Run initialises the keypad and polls it until STOP arrives or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, workerName)

	if err := w.keypad.Initialise(ctx); err != nil {
		return fmt.Errorf("initialise keypad: %w", err)
	}

	logger.InfoKV(ctx, "Keypad started", "codes", len(w.codes))
	defer logger.Info(ctx, "Keypad stopped")

	w.lastPress = time.Now()

	for {
		action, ok := w.inbox.Receive(ctx, CommunicationPeriod)
		if ctx.Err() != nil {
			return nil
		}

		if ok {
			if stop := w.apply(ctx, action); stop {
				return nil
			}
		}

		if err := w.keypad.Communicate(ctx); err != nil {
			logger.WarnKV(ctx, "Keypad communication failed", "error", err)

			continue
		}

		w.handleKey(ctx, w.keypad.Pressed())
		w.keypad.ClearPressed()
	}
}

func (w *Worker) apply(ctx context.Context, action domain.Action) bool {
	logger.DebugKV(ctx, "Action received", "action", action)

	switch action {
	case domain.ActionArmAway, domain.ActionArmStay:
		w.armed = true
		w.keypad.SetArmed(true)
	case domain.ActionDisarm:
		w.armed = false
		w.keypad.SetArmed(false)
	case domain.ActionUpdateKeypad:
		if err := w.keypad.Initialise(ctx); err != nil {
			logger.ErrorKV(ctx, "Keypad re-initialisation failed", "error", err)
		}
	case domain.ActionStop:
		return true
	case domain.ActionUpdateConfig:
	}

	return false
}

func (w *Worker) handleKey(ctx context.Context, key string) {
	now := time.Now()

	if (w.presses != "" || w.codeAccepted) && now.Sub(w.lastPress) > PressTimeout {
		logger.Debug(ctx, "Presses cleared after idle timeout")
		w.reset()
	}

	switch {
	case key == "":
		return
	case isDigit(key):
		w.presses += key
		w.lastPress = now
	case key == KeyAway || key == KeyStay:
		w.lastPress = now
		w.armWithKey(ctx, key)

		return
	default:
		logger.DebugKV(ctx, "Unknown key ignored", "key", key)

		return
	}

	switch {
	case slices.Contains(w.codes, w.presses):
		w.presses = ""
		w.codeAccepted = false

		if w.armed {
			logger.Info(ctx, "Valid code, disarming")
			w.armed = false
			w.keypad.SetArmed(false)
			w.sender.Send(domain.ActionDisarm)

			return
		}

		logger.Info(ctx, "Valid code, waiting for away or stay")
		w.codeAccepted = true
	case len(w.presses) >= CodeLength:
		logger.Info(ctx, "Invalid code")
		w.reset()
	}
}

func (w *Worker) armWithKey(ctx context.Context, key string) {
	if !w.codeAccepted || w.armed {
		logger.DebugKV(ctx, "Arm key without code ignored", "key", key)

		return
	}

	action := domain.ActionArmAway
	if key == KeyStay {
		action = domain.ActionArmStay
	}

	logger.InfoKV(ctx, "Arming from keypad", "action", action)

	w.reset()
	w.armed = true
	w.keypad.SetArmed(true)
	w.sender.Send(action)
}

func (w *Worker) reset() {
	w.presses = ""
	w.codeAccepted = false
}

func isDigit(key string) bool {
	return len(key) == 1 && key[0] >= '0' && key[0] <= '9'
}
