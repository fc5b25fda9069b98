package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	SyncPending = "pending"
	SyncSynced  = "synced"
)

type ReadingInsert struct {
	DeviceID        string
	Location        string
	DeviceTimestamp int64
	ServerTimestamp int64
	Temperature     *float64
	Humidity        *float64
	AirQuality      *int64
	Distance        *int64
	AlertType       string
	AlertActive     bool
}

// AlertInsert is the optional alert row committed alongside a reading.
// Device, location and created_at are taken from the reading so the two
// rows can never disagree.
type AlertInsert struct {
	AlertType string
	Message   string
	Severity  string
}

// CommitReading writes the reading, the device registry upsert and the
// optional alert in one transaction. Either all three land or none do;
// any failure is surfaced as a StorageError.
func (m *Manager) CommitReading(ctx context.Context, r ReadingInsert, al *AlertInsert) (int64, error) {
	tx, err := m.writer.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, &StorageError{Op: "begin tx", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO readings (
  device_id, location, device_ts, server_ts,
  temperature, humidity, air_quality, distance,
  alert_type, alert_active, sync_state, synced_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', NULL)
`,
		r.DeviceID,
		r.Location,
		r.DeviceTimestamp,
		r.ServerTimestamp,
		nullFloat(r.Temperature),
		nullFloat(r.Humidity),
		nullInt(r.AirQuality),
		nullInt(r.Distance),
		r.AlertType,
		boolToInt(r.AlertActive),
	)
	if err != nil {
		return 0, &StorageError{Op: "insert reading", Err: err}
	}
	readingID, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "reading id", Err: err}
	}

	if err := upsertDevice(ctx, tx, r.DeviceID, r.Location, r.ServerTimestamp); err != nil {
		return 0, &StorageError{Op: "upsert device", Err: err}
	}

	if al != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO alerts (reading_id, device_id, location, alert_type, message, severity, created_at, resolved, resolved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL)
`,
			readingID,
			r.DeviceID,
			r.Location,
			al.AlertType,
			al.Message,
			al.Severity,
			r.ServerTimestamp,
		); err != nil {
			return 0, &StorageError{Op: "insert alert", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit tx", Err: err}
	}
	return readingID, nil
}

// upsertDevice is an explicit read-check-then-write inside the commit
// transaction. last_seen only moves forward, and it tracks server
// receipt time, not the device-reported clock.
func upsertDevice(ctx context.Context, tx *sql.Tx, deviceID, location string, serverTS int64) error {
	var lastSeen int64
	err := tx.QueryRowContext(ctx, "SELECT last_seen FROM devices WHERE device_id = ?", deviceID).Scan(&lastSeen)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
INSERT INTO devices (device_id, location, status, last_seen, created_at)
VALUES (?, ?, 'active', ?, ?)
`, deviceID, location, serverTS, serverTS)
		return err
	case err != nil:
		return fmt.Errorf("read device: %w", err)
	}

	if serverTS < lastSeen {
		serverTS = lastSeen
	}
	_, err = tx.ExecContext(ctx, `
UPDATE devices SET location = ?, last_seen = ? WHERE device_id = ?
`, location, serverTS, deviceID)
	return err
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
