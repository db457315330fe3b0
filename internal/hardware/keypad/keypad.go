// Package keypad defines the keypad driver capability consumed by the keypad
// worker and ships a simulated implementation.
package keypad

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Keypad is a physical or simulated keypad.
type Keypad interface {
	// Initialise prepares the device.
	Initialise(ctx context.Context) error
	// Communicate exchanges one round of data with the device.
	Communicate(ctx context.Context) error
	// SetArmed drives the armed indicator.
	SetArmed(armed bool)
	// Pressed returns the last key received, or "" when none.
	Pressed() string
	// ClearPressed forgets the last key.
	ClearPressed()
}

const (
	// DriverSimulated selects the in-memory keypad.
	DriverSimulated = "simulated"
	// DriverNone disables the keypad worker.
	DriverNone = "none"

	// KeyAway is the function key arming in away mode.
	KeyAway = "away"
	// KeyStay is the function key arming in stay mode.
	KeyStay = "stay"
)

// ErrUnknownDriver is returned by New for unsupported keypad types.
var ErrUnknownDriver = errors.New("unknown keypad driver")

// New builds the keypad named by driver. DriverNone yields a nil keypad.
//
//nolint:ireturn // Callers are polymorphic over the keypad.
func New(driver string) (Keypad, error) {
	switch driver {
	case DriverSimulated, "":
		return NewSimulated(), nil
	case DriverNone:
		return nil, nil //nolint:nilnil // No keypad is a valid configuration.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// Simulated queues key presses injected with Press and releases one per Communicate.
type Simulated struct {
	// pending keys not yet delivered.
	pending []string
	// pressed is the key delivered by the last Communicate.
	pressed string
	// armed mirrors the armed indicator.
	armed bool
	// initialised is set by Initialise.
	initialised bool
	// mu protects every field.
	mu sync.Mutex
}

// NewSimulated creates an idle simulated keypad.
func NewSimulated() *Simulated {
	return new(Simulated)
}

// Initialise marks the keypad ready.
func (s *Simulated) Initialise(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialised = true

	return nil
}

// Communicate moves the next injected key into Pressed.
func (s *Simulated) Communicate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return nil
	}

	s.pressed = s.pending[0]
	s.pending = s.pending[1:]

	return nil
}

// SetArmed drives the armed indicator.
func (s *Simulated) SetArmed(armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed = armed
}

// Armed reports the armed indicator.
func (s *Simulated) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.armed
}

// Initialised reports whether Initialise was called.
func (s *Simulated) Initialised() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.initialised
}

// Pressed returns the last delivered key.
func (s *Simulated) Pressed() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pressed
}

// ClearPressed forgets the last delivered key.
func (s *Simulated) ClearPressed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pressed = ""
}

// Press injects keys, one per future Communicate call.
func (s *Simulated) Press(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, keys...)
}
