package store

import (
	"context"
	"fmt"
	"strings"
)

// PendingReadings returns up to limit readings not yet mirrored, oldest
// first by id so sync order follows commit order.
func (m *Manager) PendingReadings(ctx context.Context, limit int) ([]Reading, error) {
	rows, err := m.reader.QueryContext(ctx, `
SELECT `+readingColumns+`
FROM readings
WHERE sync_state = 'pending'
ORDER BY id ASC
LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	return scanReadings(rows)
}

// MarkSynced flips the given readings from pending to synced. Rows that
// are already synced are left alone, so re-marking after a redelivery
// is a no-op rather than an error.
func (m *Manager) MarkSynced(ctx context.Context, ids []int64, syncedAt int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, syncedAt)
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	query := fmt.Sprintf(
		"UPDATE readings SET sync_state = 'synced', synced_at = ? WHERE id IN (%s) AND sync_state = 'pending'",
		strings.Join(placeholders, ","),
	)
	if _, err := m.writer.ExecContext(ctx, query, args...); err != nil {
		return &StorageError{Op: "mark synced", Err: err}
	}
	return nil
}

func (m *Manager) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	if err := m.reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM readings WHERE sync_state = 'pending'").Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
