package store

const schemaDDL = `
CREATE TABLE IF NOT EXISTS readings (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  device_id TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT 'unknown',
  device_ts INTEGER NOT NULL DEFAULT 0,
  server_ts INTEGER NOT NULL,
  temperature REAL,
  humidity REAL,
  air_quality INTEGER,
  distance INTEGER,
  alert_type TEXT NOT NULL DEFAULT 'none',
  alert_active INTEGER NOT NULL DEFAULT 0,
  sync_state TEXT NOT NULL DEFAULT 'pending'
    CHECK (sync_state IN ('pending', 'synced')),
  synced_at INTEGER
);

CREATE TABLE IF NOT EXISTS alerts (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reading_id INTEGER NOT NULL REFERENCES readings(id),
  device_id TEXT NOT NULL,
  location TEXT NOT NULL,
  alert_type TEXT NOT NULL,
  message TEXT NOT NULL,
  severity TEXT NOT NULL DEFAULT 'medium'
    CHECK (severity IN ('high', 'medium')),
  created_at INTEGER NOT NULL,
  resolved INTEGER NOT NULL DEFAULT 0,
  resolved_at INTEGER
);

CREATE TABLE IF NOT EXISTS devices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  device_id TEXT NOT NULL UNIQUE,
  location TEXT NOT NULL DEFAULT 'unknown',
  status TEXT NOT NULL DEFAULT 'active',
  last_seen INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings (device_id, server_ts);
CREATE INDEX IF NOT EXISTS idx_readings_sync ON readings (sync_state, id);
CREATE INDEX IF NOT EXISTS idx_alerts_device ON alerts (device_id, created_at);
CREATE INDEX IF NOT EXISTS idx_alerts_resolved ON alerts (resolved, created_at);
`
