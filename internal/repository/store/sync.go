package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/oshokin/alarm-monitor/internal/repository/layout"
)

// existingSensor is the part of a sensor row SyncLayout compares against.
type existingSensor struct {
	id      int64
	channel int
	deleted bool
}

// SyncLayout reconciles zones and sensors with l:
//   - zones are upserted by name,
//   - sensors are upserted by name; a changed channel or a revived sensor
//     loses its reference value so it gets recalibrated,
//   - sensors missing from l are soft-deleted.
func (s *SQLiteStore) SyncLayout(ctx context.Context, l *layout.Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		zoneIDs, err := upsertZones(ctx, tx, l.Zones)
		if err != nil {
			return err
		}

		existing, err := existingSensors(ctx, tx)
		if err != nil {
			return err
		}

		for _, sensor := range l.Sensors {
			if err = upsertSensor(ctx, tx, sensor, zoneIDs[sensor.Zone], existing); err != nil {
				return err
			}

			delete(existing, sensor.Name)
		}

		for name, row := range existing {
			if row.deleted {
				continue
			}

			if _, err = tx.ExecContext(ctx, "UPDATE sensors SET deleted = 1, alert = 0 WHERE id = ?", row.id); err != nil {
				return fmt.Errorf("delete sensor %q: %w", name, err)
			}
		}

		return nil
	})
}

func upsertZones(ctx context.Context, tx *sql.Tx, zones []layout.Zone) (map[string]int64, error) {
	ids := make(map[string]int64, len(zones))

	for _, zone := range zones {
		_, err := tx.ExecContext(ctx, `
INSERT INTO zones (name, disarmed_delay, away_delay, stay_delay) VALUES (?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	disarmed_delay = excluded.disarmed_delay,
	away_delay = excluded.away_delay,
	stay_delay = excluded.stay_delay`,
			zone.Name, fromDuration(zone.DisarmedDelay), fromDuration(zone.AwayDelay), fromDuration(zone.StayDelay),
		)
		if err != nil {
			return nil, fmt.Errorf("upsert zone %q: %w", zone.Name, err)
		}

		var id int64
		if err = tx.QueryRowContext(ctx, "SELECT id FROM zones WHERE name = ?", zone.Name).Scan(&id); err != nil {
			return nil, fmt.Errorf("read zone %q: %w", zone.Name, err)
		}

		ids[zone.Name] = id
	}

	return ids, nil
}

func existingSensors(ctx context.Context, tx *sql.Tx) (map[string]existingSensor, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, name, channel, deleted FROM sensors")
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	result := make(map[string]existingSensor)

	for rows.Next() {
		var (
			name string
			row  existingSensor
		)

		if err = rows.Scan(&row.id, &name, &row.channel, &row.deleted); err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		result[name] = row
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	return result, nil
}

func upsertSensor(
	ctx context.Context,
	tx *sql.Tx,
	sensor layout.Sensor,
	zoneID int64,
	existing map[string]existingSensor,
) error {
	row, found := existing[sensor.Name]
	if !found {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO sensors (name, channel, enabled, zone_id) VALUES (?, ?, ?, ?)",
			sensor.Name, sensor.Channel, sensor.IsEnabled(), zoneID,
		)
		if err != nil {
			return fmt.Errorf("insert sensor %q: %w", sensor.Name, err)
		}

		return nil
	}

	query := "UPDATE sensors SET channel = ?, enabled = ?, zone_id = ?, deleted = 0 WHERE id = ?"
	if row.deleted || row.channel != sensor.Channel {
		query = "UPDATE sensors SET channel = ?, enabled = ?, zone_id = ?, deleted = 0, " +
			"reference_value = NULL, alert = 0 WHERE id = ?"
	}

	if _, err := tx.ExecContext(ctx, query, sensor.Channel, sensor.IsEnabled(), zoneID, row.id); err != nil {
		return fmt.Errorf("update sensor %q: %w", sensor.Name, err)
	}

	return nil
}
