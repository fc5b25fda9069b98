package store

import (
	"context"
	"fmt"
	"os"
	"time"
)

func (m *Manager) WALSizeBytes() int64 {
	fi, err := os.Stat(m.path + "-wal")
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (m *Manager) DBSizeBytes() int64 {
	fi, err := os.Stat(m.path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (m *Manager) CheckpointIfWALExceeds(ctx context.Context, thresholdBytes int64) (bool, error) {
	if m.WALSizeBytes() <= thresholdBytes {
		return false, nil
	}
	if _, err := m.writer.ExecContext(ctx, "PRAGMA wal_checkpoint(RESTART)"); err != nil {
		return false, fmt.Errorf("wal restart checkpoint: %w", err)
	}
	return true, nil
}

// CleanupSynced deletes mirrored readings and resolved alerts older
// than the retention window. Pending readings are never touched: until
// the mirror confirms a row, the local copy is the only copy.
func (m *Manager) CleanupSynced(ctx context.Context, retentionDays int) (deleted int64, err error) {
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour).UnixMilli()

	res, err := m.writer.ExecContext(ctx,
		"DELETE FROM alerts WHERE resolved = 1 AND created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	deleted += affected

	res, err = m.writer.ExecContext(ctx, `
DELETE FROM readings
WHERE sync_state = 'synced' AND server_ts < ?
  AND id NOT IN (SELECT reading_id FROM alerts)
`, cutoff)
	if err != nil {
		return deleted, err
	}
	affected, _ = res.RowsAffected()
	deleted += affected

	_, _ = m.writer.ExecContext(ctx, "PRAGMA incremental_vacuum(1000)")
	return deleted, nil
}
