package keypad

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/alarm-monitor/internal/bus"
	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

type recordingSender struct {
	mu      sync.Mutex
	actions []domain.Action
}

func (s *recordingSender) Send(action domain.Action) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.actions = append(s.actions, action)
}

func (s *recordingSender) sent() []domain.Action {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.Action(nil), s.actions...)
}

type keypadHarness struct {
	keypad *Simulated
	inbox  *bus.Inbox
	sender *recordingSender
	done   chan error
}

func startWorker(t *testing.T) *keypadHarness {
	t.Helper()

	h := &keypadHarness{
		keypad: NewSimulated(),
		inbox:  bus.NewInbox(workerName),
		sender: &recordingSender{},
		done:   make(chan error, 1),
	}

	w := NewWorker(h.keypad, h.inbox, h.sender, []string{"1234", "1111"})

	go func() { h.done <- w.Run(context.Background()) }()

	time.Sleep(time.Second)
	synctest.Wait()

	return h
}

func (h *keypadHarness) stop(t *testing.T) {
	t.Helper()

	h.inbox.Put(domain.ActionStop)
	require.NoError(t, <-h.done)
}

// press types keys one per communication round and waits for them to be consumed.
func (h *keypadHarness) press(keys ...string) {
	h.keypad.Press(keys...)
	time.Sleep(time.Duration(len(keys)+1) * CommunicationPeriod)
	synctest.Wait()
}

// TestWorker_MirrorsArmState drives the armed LED from bus actions.
func TestWorker_MirrorsArmState(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := startWorker(t)
		require.True(t, h.keypad.Initialised())

		h.inbox.Put(domain.ActionArmStay)
		time.Sleep(time.Second)
		synctest.Wait()
		require.True(t, h.keypad.Armed())

		h.inbox.Put(domain.ActionDisarm)
		time.Sleep(time.Second)
		synctest.Wait()
		require.False(t, h.keypad.Armed())

		h.stop(t)
	})
}

// TestWorker_CodeDisarms sends DISARM for a valid code while armed.
func TestWorker_CodeDisarms(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := startWorker(t)

		h.inbox.Put(domain.ActionArmAway)
		h.press("1", "2", "3", "4")

		require.Equal(t, []domain.Action{domain.ActionDisarm}, h.sender.sent())
		require.False(t, h.keypad.Armed())

		h.stop(t)
	})
}

// TestWorker_CodeThenKeyArms arms after a valid code and a function key.
func TestWorker_CodeThenKeyArms(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := startWorker(t)

		h.press(KeyAway)
		require.Empty(t, h.sender.sent())

		h.press("1", "1", "1", "1", KeyStay)

		require.Equal(t, []domain.Action{domain.ActionArmStay}, h.sender.sent())
		require.True(t, h.keypad.Armed())

		h.stop(t)
	})
}

// TestWorker_InvalidAndStaleCodes discards wrong codes and idle partial input.
func TestWorker_InvalidAndStaleCodes(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		h := startWorker(t)

		h.inbox.Put(domain.ActionArmAway)
		h.press("9", "9", "9", "9")
		require.Empty(t, h.sender.sent())

		// A partial code is forgotten after the idle timeout.
		h.press("1", "2")
		time.Sleep(PressTimeout + time.Second)
		synctest.Wait()
		h.press("3", "4")
		require.Empty(t, h.sender.sent())

		time.Sleep(PressTimeout + time.Second)
		synctest.Wait()

		h.press("1", "2", "3", "4")
		require.Equal(t, []domain.Action{domain.ActionDisarm}, h.sender.sent())

		h.stop(t)
	})
}
