package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
	"github.com/oshokin/alarm-monitor/internal/logger"
)

// ErrCalibration is returned when reference values cannot be computed.
var ErrCalibration = errors.New("calibration failed")

// scan samples every calibrated sensor once and updates alert flags.
// Read errors are logged and leave the flag unchanged.
func (m *Monitor) scan(ctx context.Context) {
	changed := false
	alerting := false

	for _, s := range m.sensors {
		if !s.Calibrated() {
			continue
		}

		value, err := m.driver.Value(ctx, s.Channel)
		if err != nil {
			logger.WarnKV(ctx, "Failed to read sensor", "sensor", s.Name, "channel", s.Channel, "error", err)
			m.observer.ScanFailed(s.Channel)
		} else if alert := !s.InTolerance(value, m.tolerance); alert != s.Alert {
			logger.DebugKV(ctx, "Sensor alert changed",
				"sensor", s.Name,
				"channel", s.Channel,
				"value", value,
				"reference", *s.ReferenceValue,
				"alert", alert,
			)

			s.Alert = alert
			m.batch.SetAlert(s.ID, alert)
			changed = true
		}

		alerting = alerting || s.Alert
	}

	m.sensorsAlerting = alerting

	if changed {
		m.publisher.PublishSensorsState(ctx, &alerting)
	}
}

func needsCalibration(sensors []*domain.Sensor) bool {
	for _, s := range sensors {
		if !s.Calibrated() {
			return true
		}
	}

	return false
}

// calibrate measures every channel and stores new reference values for all sensors.
func (m *Monitor) calibrate(ctx context.Context, sensors []*domain.Sensor) error {
	logger.InfoKV(ctx, "Calibrating sensors", "cycles", MeasurementCycles, "settle_time", m.settleTime)

	measurements := make([][]float64, 0, MeasurementCycles)

	for cycle := range MeasurementCycles {
		if cycle > 0 {
			if err := sleep(ctx, m.settleTime); err != nil {
				return fmt.Errorf("%w: %w", ErrCalibration, err)
			}
		}

		values, err := m.driver.Values(ctx)
		if err != nil {
			return fmt.Errorf("%w: read cycle %d: %w", ErrCalibration, cycle, err)
		}

		measurements = append(measurements, values)
	}

	references, err := References(measurements, m.driver.ChannelCount())
	if err != nil {
		return err
	}

	for _, s := range sensors {
		reference := references[s.Channel]
		s.ReferenceValue = &reference
		m.batch.SetReference(s.ID, reference)

		logger.DebugKV(ctx, "Sensor calibrated", "sensor", s.Name, "channel", s.Channel, "reference", reference)
	}

	m.commit(ctx)

	return nil
}

// References averages measurement cycles per channel. Every cycle must hold
// exactly channels values.
func References(measurements [][]float64, channels int) ([]float64, error) {
	if len(measurements) == 0 {
		return nil, fmt.Errorf("%w: no measurements", ErrCalibration)
	}

	references := make([]float64, channels)

	for cycle, values := range measurements {
		if len(values) != channels {
			return nil, fmt.Errorf("%w: cycle %d has %d values, want %d",
				ErrCalibration, cycle, len(values), channels)
		}

		for channel, value := range values {
			references[channel] += value
		}
	}

	for channel := range references {
		references[channel] /= float64(len(measurements))
	}

	return references, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
