package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	// Register the pure Go SQLite driver.
	_ "modernc.org/sqlite"

	domain "github.com/oshokin/alarm-monitor/internal/domain/monitor"
)

// schema creates the tables on first use.
const schema = `
CREATE TABLE IF NOT EXISTS zones (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	disarmed_delay INTEGER,
	away_delay INTEGER,
	stay_delay INTEGER
);
CREATE TABLE IF NOT EXISTS sensors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	channel INTEGER NOT NULL,
	reference_value REAL,
	alert INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	deleted INTEGER NOT NULL DEFAULT 0,
	zone_id INTEGER REFERENCES zones(id)
);
CREATE TABLE IF NOT EXISTS alerts (
	id TEXT PRIMARY KEY,
	sensor_id INTEGER NOT NULL REFERENCES sensors(id),
	arm_state TEXT NOT NULL,
	start_time INTEGER NOT NULL,
	end_time INTEGER
);
CREATE INDEX IF NOT EXISTS idx_alerts_open ON alerts(end_time);
`

// SQLiteStore implements Store on top of SQLite.
type SQLiteStore struct {
	// db is the underlying connection pool, limited to one connection.
	db *sql.DB
	// mu serialises writers with readers of the same store.
	mu sync.RWMutex
}

// ErrSensorNotFound is returned when an operation references a missing sensor.
var ErrSensorNotFound = errors.New("sensor not found")

// NewSQLiteStore opens (or creates) the database at path.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("initialise schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Close()
}

// LoadSensors returns non-deleted sensors with their zones, ordered by channel.
func (s *SQLiteStore) LoadSensors(ctx context.Context) ([]*domain.Sensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.name, s.channel, s.reference_value, s.alert, s.enabled,
       z.id, z.name, z.disarmed_delay, z.away_delay, z.stay_delay
FROM sensors s
LEFT JOIN zones z ON z.id = s.zone_id
WHERE s.deleted = 0
ORDER BY s.channel, s.id`)
	if err != nil {
		return nil, fmt.Errorf("query sensors: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	zones := make(map[int64]*domain.Zone)

	var sensors []*domain.Sensor

	for rows.Next() {
		var (
			sensor                         domain.Sensor
			reference                      sql.NullFloat64
			zoneID                         sql.NullInt64
			zoneName                       sql.NullString
			disarmedDelay, awayDelay, stay sql.NullInt64
		)

		err = rows.Scan(
			&sensor.ID, &sensor.Name, &sensor.Channel, &reference, &sensor.Alert, &sensor.Enabled,
			&zoneID, &zoneName, &disarmedDelay, &awayDelay, &stay,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sensor: %w", err)
		}

		if reference.Valid {
			sensor.ReferenceValue = &reference.Float64
		}

		if zoneID.Valid {
			zone, found := zones[zoneID.Int64]
			if !found {
				zone = &domain.Zone{
					ID:            zoneID.Int64,
					Name:          zoneName.String,
					DisarmedDelay: toDuration(disarmedDelay),
					AwayDelay:     toDuration(awayDelay),
					StayDelay:     toDuration(stay),
				}
				zones[zoneID.Int64] = zone
			}

			sensor.Zone = zone
		}

		sensors = append(sensors, &sensor)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sensors: %w", err)
	}

	return sensors, nil
}

// Cleanup clears alert flags and closes alerts left open by an unclean shutdown.
func (s *SQLiteStore) Cleanup(ctx context.Context, endTime time.Time) (CleanupResult, error) {
	var result CleanupResult

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE sensors SET alert = 0 WHERE alert <> 0")
		if err != nil {
			return fmt.Errorf("clear sensor alerts: %w", err)
		}

		result.Sensors = rowsAffected(res)

		res, err = tx.ExecContext(ctx, "UPDATE alerts SET end_time = ? WHERE end_time IS NULL", endTime.UnixMilli())
		if err != nil {
			return fmt.Errorf("close open alerts: %w", err)
		}

		result.Alerts = rowsAffected(res)

		return nil
	})

	return result, err
}

// Commit applies every mutation of the batch in one transaction.
func (s *SQLiteStore) Commit(ctx context.Context, batch *Batch) error {
	if batch.Empty() {
		return nil
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		for sensorID, alert := range batch.SensorAlerts {
			if _, err := tx.ExecContext(ctx, "UPDATE sensors SET alert = ? WHERE id = ?", alert, sensorID); err != nil {
				return fmt.Errorf("update sensor %d alert: %w", sensorID, err)
			}
		}

		for sensorID, reference := range batch.References {
			res, err := tx.ExecContext(ctx, "UPDATE sensors SET reference_value = ? WHERE id = ?", reference, sensorID)
			if err != nil {
				return fmt.Errorf("update sensor %d reference: %w", sensorID, err)
			}

			if rowsAffected(res) == 0 {
				return fmt.Errorf("%w: %d", ErrSensorNotFound, sensorID)
			}
		}

		for _, alert := range batch.OpenedAlerts {
			var endTime any
			if alert.EndTime != nil {
				endTime = alert.EndTime.UnixMilli()
			}

			_, err := tx.ExecContext(ctx,
				"INSERT INTO alerts (id, sensor_id, arm_state, start_time, end_time) VALUES (?, ?, ?, ?, ?)",
				alert.ID, alert.SensorID, string(alert.ArmState), alert.StartTime.UnixMilli(), endTime,
			)
			if err != nil {
				return fmt.Errorf("insert alert %s: %w", alert.ID, err)
			}
		}

		for alertID, endTime := range batch.ClosedAlerts {
			_, err := tx.ExecContext(ctx,
				"UPDATE alerts SET end_time = ? WHERE id = ? AND end_time IS NULL", endTime.UnixMilli(), alertID)
			if err != nil {
				return fmt.Errorf("close alert %s: %w", alertID, err)
			}
		}

		return nil
	})
}

// Alerts returns alert records, newest first. Only open ones when openOnly is set.
func (s *SQLiteStore) Alerts(ctx context.Context, openOnly bool) ([]*domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, sensor_id, arm_state, start_time, end_time FROM alerts"
	if openOnly {
		query += " WHERE end_time IS NULL"
	}

	rows, err := s.db.QueryContext(ctx, query+" ORDER BY start_time DESC, id")
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var alerts []*domain.Alert

	for rows.Next() {
		var (
			alert     domain.Alert
			armState  string
			startTime int64
			endTime   sql.NullInt64
		)

		if err = rows.Scan(&alert.ID, &alert.SensorID, &armState, &startTime, &endTime); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}

		alert.ArmState = domain.ArmState(armState)
		alert.StartTime = time.UnixMilli(startTime).UTC()

		if endTime.Valid {
			end := time.UnixMilli(endTime.Int64).UTC()
			alert.EndTime = &end
		}

		alerts = append(alerts, &alert)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alerts: %w", err)
	}

	return alerts, nil
}

// inTx runs fn in a write transaction.
func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		_ = tx.Rollback()

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}

	return int(n)
}

func toDuration(v sql.NullInt64) *time.Duration {
	if !v.Valid {
		return nil
	}

	d := time.Duration(v.Int64)

	return &d
}

func fromDuration(d *time.Duration) any {
	if d == nil {
		return nil
	}

	return int64(*d)
}
