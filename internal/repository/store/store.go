package store

import (
	"context"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/repository/layout"
)

// Store defines the persistence operations the monitor depends on.
type Store interface {
	// LoadSensors returns non-deleted sensors with their zones, ordered by channel.
	LoadSensors(ctx context.Context) ([]*domain.Sensor, error)
	// Cleanup clears every sensor alert flag and closes open alert records
	// with endTime. It reports how many rows of each kind changed.
	Cleanup(ctx context.Context, endTime time.Time) (CleanupResult, error)
	// Commit applies a batch atomically.
	Commit(ctx context.Context, batch *Batch) error
	// SyncLayout reconciles zones and sensors with a layout description.
	SyncLayout(ctx context.Context, l *layout.Layout) error
}

// CleanupResult counts rows changed by Cleanup.
type CleanupResult struct {
	Sensors int
	Alerts  int
}

// Changed reports whether Cleanup touched anything.
func (r CleanupResult) Changed() bool {
	return r.Sensors > 0 || r.Alerts > 0
}

// Batch collects the mutations of one monitor tick.
type Batch struct {
	// SensorAlerts maps sensor IDs to their new alert flag.
	SensorAlerts map[int64]bool
	// References maps sensor IDs to new calibrated reference values.
	References map[int64]float64
	// OpenedAlerts are inserted.
	OpenedAlerts []*domain.Alert
	// ClosedAlerts maps alert IDs to their end time.
	ClosedAlerts map[string]time.Time
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		SensorAlerts: make(map[int64]bool),
		References:   make(map[int64]float64),
		ClosedAlerts: make(map[string]time.Time),
	}
}

// Empty reports whether the batch carries nothing to commit.
func (b *Batch) Empty() bool {
	return b == nil ||
		len(b.SensorAlerts) == 0 &&
			len(b.References) == 0 &&
			len(b.OpenedAlerts) == 0 &&
			len(b.ClosedAlerts) == 0
}

// SetAlert records a sensor alert flag change.
func (b *Batch) SetAlert(sensorID int64, alert bool) {
	b.SensorAlerts[sensorID] = alert
}

// SetReference records a new reference value.
func (b *Batch) SetReference(sensorID int64, reference float64) {
	b.References[sensorID] = reference
}

// OpenAlert records a new alert record.
func (b *Batch) OpenAlert(alert *domain.Alert) {
	b.OpenedAlerts = append(b.OpenedAlerts, alert)
}

// CloseAlert records the end of an alert record.
// Closing an alert opened in the same batch just sets its end time.
func (b *Batch) CloseAlert(alertID string, endTime time.Time) {
	for _, opened := range b.OpenedAlerts {
		if opened.ID == alertID {
			opened.EndTime = &endTime

			return
		}
	}

	b.ClosedAlerts[alertID] = endTime
}
