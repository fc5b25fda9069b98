package store

import (
	"context"
	"database/sql"
)

type Reading struct {
	ID              int64    `json:"id"`
	DeviceID        string   `json:"device_id"`
	Location        string   `json:"location"`
	DeviceTimestamp int64    `json:"device_timestamp"`
	ServerTimestamp int64    `json:"server_timestamp"`
	Temperature     *float64 `json:"temperature"`
	Humidity        *float64 `json:"humidity"`
	AirQuality      *int64   `json:"air_quality"`
	Distance        *int64   `json:"distance"`
	AlertType       string   `json:"alert_type"`
	AlertActive     bool     `json:"alert_active"`
	SyncState       string   `json:"sync_state"`
}

type Alert struct {
	ID         int64  `json:"id"`
	ReadingID  int64  `json:"reading_id"`
	DeviceID   string `json:"device_id"`
	Location   string `json:"location"`
	AlertType  string `json:"alert_type"`
	Message    string `json:"message"`
	Severity   string `json:"severity"`
	CreatedAt  int64  `json:"created_at"`
	Resolved   bool   `json:"resolved"`
	ResolvedAt *int64 `json:"resolved_at"`
}

type DeviceInfo struct {
	DeviceID      string `json:"device_id"`
	Location      string `json:"location"`
	Status        string `json:"status"`
	LastSeen      int64  `json:"last_seen"`
	CreatedAt     int64  `json:"created_at"`
	TotalReadings int64  `json:"total_readings"`
	LastReading   *int64 `json:"last_reading"`
}

type DeviceCount struct {
	DeviceID string `json:"device_id"`
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

type Statistics struct {
	TotalReadings    int64         `json:"total_readings"`
	TotalDevices     int64         `json:"total_devices"`
	UnresolvedAlerts int64         `json:"active_alerts"`
	ReadingsByDevice []DeviceCount `json:"readings_by_device"`
}

type AlertFilter struct {
	UnresolvedOnly bool
	DeviceID       string
	Limit          int
}

const readingColumns = `
id, device_id, location, device_ts, server_ts,
temperature, humidity, air_quality, distance,
alert_type, alert_active, sync_state
`

// LatestReadings returns the newest committed reading per device, or
// just the one device's newest reading when deviceID is given.
func (m *Manager) LatestReadings(ctx context.Context, deviceID string) ([]Reading, error) {
	if deviceID != "" {
		rows, err := m.reader.QueryContext(ctx, `
SELECT `+readingColumns+`
FROM readings
WHERE device_id = ?
ORDER BY server_ts DESC, id DESC
LIMIT 1
`, deviceID)
		if err != nil {
			return nil, err
		}
		return scanReadings(rows)
	}

	// server_ts is assigned in commit order under a single writer, so
	// max id per device is the max server_ts row.
	rows, err := m.reader.QueryContext(ctx, `
SELECT `+readingColumns+`
FROM readings
WHERE id IN (SELECT MAX(id) FROM readings GROUP BY device_id)
ORDER BY server_ts DESC, id DESC
`)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

func (m *Manager) Alerts(ctx context.Context, f AlertFilter) ([]Alert, error) {
	query := `
SELECT id, reading_id, device_id, location, alert_type, message, severity, created_at, resolved, resolved_at
FROM alerts
WHERE 1 = 1`
	args := make([]any, 0, 2)
	if f.UnresolvedOnly {
		query += " AND resolved = 0"
	}
	if f.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, f.DeviceID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := m.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		var a Alert
		var resolved int
		var resolvedAt sql.NullInt64
		if err := rows.Scan(
			&a.ID, &a.ReadingID, &a.DeviceID, &a.Location, &a.AlertType,
			&a.Message, &a.Severity, &a.CreatedAt, &resolved, &resolvedAt,
		); err != nil {
			return nil, err
		}
		a.Resolved = resolved != 0
		if resolvedAt.Valid {
			v := resolvedAt.Int64
			a.ResolvedAt = &v
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (m *Manager) Devices(ctx context.Context) ([]DeviceInfo, error) {
	rows, err := m.reader.QueryContext(ctx, `
SELECT d.device_id, d.location, d.status, d.last_seen, d.created_at,
       COUNT(r.id) AS total_readings,
       MAX(r.server_ts) AS last_reading
FROM devices d
LEFT JOIN readings r ON d.device_id = r.device_id
GROUP BY d.device_id
ORDER BY d.last_seen DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]DeviceInfo, 0)
	for rows.Next() {
		var d DeviceInfo
		var lastReading sql.NullInt64
		if err := rows.Scan(
			&d.DeviceID, &d.Location, &d.Status, &d.LastSeen, &d.CreatedAt,
			&d.TotalReadings, &lastReading,
		); err != nil {
			return nil, err
		}
		if lastReading.Valid {
			v := lastReading.Int64
			d.LastReading = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (m *Manager) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	if err := m.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings").Scan(&stats.TotalReadings); err != nil {
		return Statistics{}, err
	}
	if err := m.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices").Scan(&stats.TotalDevices); err != nil {
		return Statistics{}, err
	}
	if err := m.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts WHERE resolved = 0").Scan(&stats.UnresolvedAlerts); err != nil {
		return Statistics{}, err
	}

	rows, err := m.reader.QueryContext(ctx, `
SELECT device_id, location, COUNT(*) AS count
FROM readings
GROUP BY device_id
ORDER BY count DESC
`)
	if err != nil {
		return Statistics{}, err
	}
	defer rows.Close()

	stats.ReadingsByDevice = make([]DeviceCount, 0)
	for rows.Next() {
		var c DeviceCount
		if err := rows.Scan(&c.DeviceID, &c.Location, &c.Count); err != nil {
			return Statistics{}, err
		}
		stats.ReadingsByDevice = append(stats.ReadingsByDevice, c)
	}
	return stats, rows.Err()
}

func scanReadings(rows *sql.Rows) ([]Reading, error) {
	defer rows.Close()

	out := make([]Reading, 0)
	for rows.Next() {
		var r Reading
		var temp, hum sql.NullFloat64
		var air, dist sql.NullInt64
		var active int
		if err := rows.Scan(
			&r.ID, &r.DeviceID, &r.Location, &r.DeviceTimestamp, &r.ServerTimestamp,
			&temp, &hum, &air, &dist,
			&r.AlertType, &active, &r.SyncState,
		); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			r.Temperature = &v
		}
		if hum.Valid {
			v := hum.Float64
			r.Humidity = &v
		}
		if air.Valid {
			v := air.Int64
			r.AirQuality = &v
		}
		if dist.Valid {
			v := dist.Int64
			r.Distance = &v
		}
		r.AlertActive = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}
