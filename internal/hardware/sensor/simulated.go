package sensor

import (
	"context"
	"sync"
)

// Simulated is an in-memory sensor board. Values and read failures are set
// by tests or by a development harness.
type Simulated struct {
	// values holds the current reading per channel.
	values []float64
	// failures holds a forced read error per channel.
	failures map[int]error
	// reads counts Value calls per channel.
	reads map[int]int
	// mu protects every field.
	mu sync.Mutex
}

// NewSimulated creates a board whose channels all read initial.
func NewSimulated(channelCount int, initial float64) *Simulated {
	values := make([]float64, channelCount)
	for i := range values {
		values[i] = initial
	}

	return &Simulated{
		values:   values,
		failures: make(map[int]error),
		reads:    make(map[int]int),
	}
}

// ChannelCount returns the number of simulated channels.
func (s *Simulated) ChannelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.values)
}

// Set changes the reading of one channel. Out-of-range channels are ignored.
func (s *Simulated) Set(channel int, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if checkChannel(channel, len(s.values)) == nil {
		s.values[channel] = value
	}
}

// SetAll replaces every reading.
func (s *Simulated) SetAll(values ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.values, values)
}

// Fail makes reads of channel return err until Fail(channel, nil).
func (s *Simulated) Fail(channel int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, channel)

		return
	}

	s.failures[channel] = err
}

// Reads returns how many times channel was read through Value.
func (s *Simulated) Reads(channel int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reads[channel]
}

// Value returns the current reading of channel.
func (s *Simulated) Value(_ context.Context, channel int) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkChannel(channel, len(s.values)); err != nil {
		return 0, err
	}

	s.reads[channel]++

	if err := s.failures[channel]; err != nil {
		return 0, err
	}

	return s.values[channel], nil
}

// Values returns a copy of every reading.
func (s *Simulated) Values(_ context.Context) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for channel := range s.values {
		if err := s.failures[channel]; err != nil {
			return nil, err
		}
	}

	return append([]float64(nil), s.values...), nil
}
