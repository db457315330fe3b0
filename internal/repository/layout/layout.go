// Package layout parses the premises layout file: the zones with their
// escalation delays and the sensors wired to each channel.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Layout is the declarative description of zones and sensors.
type Layout struct {
	Zones   []Zone   `yaml:"zones"`
	Sensors []Sensor `yaml:"sensors"`
}

// Zone declares escalation delays. A missing delay disables escalation in
// that arm context.
type Zone struct {
	Name          string         `yaml:"name"`
	DisarmedDelay *time.Duration `yaml:"disarmed_delay,omitempty"`
	AwayDelay     *time.Duration `yaml:"away_delay,omitempty"`
	StayDelay     *time.Duration `yaml:"stay_delay,omitempty"`
}

// Sensor declares one monitored channel.
type Sensor struct {
	Name    string `yaml:"name"`
	Channel int    `yaml:"channel"`
	Zone    string `yaml:"zone"`
	// Enabled defaults to true.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IsEnabled reports the effective enabled flag.
func (s *Sensor) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

var (
	// ErrDuplicateName is returned when two zones or two sensors share a name.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownZone is returned when a sensor references a missing zone.
	ErrUnknownZone = errors.New("unknown zone")
	// ErrInvalidEntry is returned for empty names, negative channels or delays.
	ErrInvalidEntry = errors.New("invalid layout entry")
)

// Load reads and validates a layout file.
func Load(path string) (*Layout, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}

	var l Layout
	if err = yaml.Unmarshal(contents, &l); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}

	if err = l.Validate(); err != nil {
		return nil, err
	}

	return &l, nil
}

// Validate checks names and references. Duplicate channels are left to the
// monitor, which turns them into an invalid configuration state.
func (l *Layout) Validate() error {
	zones := make(map[string]struct{}, len(l.Zones))

	for _, zone := range l.Zones {
		if zone.Name == "" {
			return fmt.Errorf("%w: zone without name", ErrInvalidEntry)
		}

		if _, found := zones[zone.Name]; found {
			return fmt.Errorf("%w: zone %q", ErrDuplicateName, zone.Name)
		}

		for _, delay := range []*time.Duration{zone.DisarmedDelay, zone.AwayDelay, zone.StayDelay} {
			if delay != nil && *delay < 0 {
				return fmt.Errorf("%w: zone %q has a negative delay", ErrInvalidEntry, zone.Name)
			}
		}

		zones[zone.Name] = struct{}{}
	}

	sensors := make(map[string]struct{}, len(l.Sensors))

	for _, sensor := range l.Sensors {
		if sensor.Name == "" || sensor.Channel < 0 {
			return fmt.Errorf("%w: sensor %q channel %d", ErrInvalidEntry, sensor.Name, sensor.Channel)
		}

		if _, found := sensors[sensor.Name]; found {
			return fmt.Errorf("%w: sensor %q", ErrDuplicateName, sensor.Name)
		}

		if _, found := zones[sensor.Zone]; !found {
			return fmt.Errorf("%w: %q (sensor %q)", ErrUnknownZone, sensor.Zone, sensor.Name)
		}

		sensors[sensor.Name] = struct{}{}
	}

	return nil
}
