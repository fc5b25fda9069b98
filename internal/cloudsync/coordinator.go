// Package cloudsync reconciles locally committed readings into the
// remote mirror. It runs beside ingestion, never in its path: an
// unreachable mirror only grows the pending set.
package cloudsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Ankkiyy/psms-demo-g2/internal/mirror"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

type Store interface {
	PendingReadings(ctx context.Context, limit int) ([]store.Reading, error)
	MarkSynced(ctx context.Context, ids []int64, syncedAt int64) error
	PendingCount(ctx context.Context) (int64, error)
}

// Result is one cycle's accounting. Succeeded + Failed equals the
// number of pending readings the cycle pulled.
type Result struct {
	Succeeded int
	Failed    int
}

// ItemError marks a single reading that could not be prepared for
// upload. It is counted and logged, never surfaced to ingestion.
type ItemError struct {
	ReadingID int64
	Err       error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("sync item %d: %v", e.ReadingID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

type Coordinator struct {
	logger      *slog.Logger
	store       Store
	mirror      mirror.Mirror
	objects     mirror.ObjectStore
	batchSize   int
	interval    time.Duration
	wakePending int64
	kick        chan struct{}
	now         func() time.Time
}

func New(logger *slog.Logger, st Store, m mirror.Mirror, objects mirror.ObjectStore, batchSize int, interval time.Duration, wakePending int64) *Coordinator {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Coordinator{
		logger:      logger,
		store:       st,
		mirror:      m,
		objects:     objects,
		batchSize:   batchSize,
		interval:    interval,
		wakePending: wakePending,
		kick:        make(chan struct{}, 1),
		now:         time.Now,
	}
}

// DocumentKey is the deterministic remote key for a local reading.
// Re-sending the same reading always lands on the same document.
func DocumentKey(deviceID string, deviceTS, readingID int64) string {
	return fmt.Sprintf("%s_%d_%d", deviceID, deviceTS, readingID)
}

// RunOnce drains at most one batch of pending readings into the
// mirror. Readings are marked synced only after the mirror confirms
// them; everything else stays pending for the next cycle.
func (c *Coordinator) RunOnce(ctx context.Context) (Result, error) {
	readings, err := c.store.PendingReadings(ctx, c.batchSize)
	if err != nil {
		return Result{}, fmt.Errorf("fetch pending: %w", err)
	}
	if len(readings) == 0 {
		return Result{}, nil
	}

	docs := make([]mirror.Document, 0, len(readings))
	idByKey := make(map[string]int64, len(readings))
	failed := 0
	for _, r := range readings {
		doc, err := prepareDocument(r, c.now().UTC())
		if err != nil {
			failed++
			c.logger.Warn("reading skipped this cycle", "error", &ItemError{ReadingID: r.ID, Err: err})
			continue
		}
		docs = append(docs, doc)
		idByKey[doc.Key] = r.ID
	}
	if len(docs) == 0 {
		return Result{Failed: failed}, nil
	}

	outcomes, err := c.mirror.UpsertBatch(ctx, docs)
	if err != nil {
		// Whole-batch failure: nothing confirmed, nothing marked.
		return Result{Failed: len(readings)}, err
	}

	confirmed := make([]int64, 0, len(outcomes))
	for _, oc := range outcomes {
		id, known := idByKey[oc.Key]
		if !known {
			continue
		}
		if oc.OK {
			confirmed = append(confirmed, id)
		} else {
			failed++
			c.logger.Warn("mirror rejected reading", "error", &ItemError{ReadingID: id, Err: fmt.Errorf("%s", oc.Error)})
		}
	}

	if err := c.store.MarkSynced(ctx, confirmed, c.now().UnixMilli()); err != nil {
		// The mirror holds the documents but local state still says
		// pending; the idempotent keys make the redelivery harmless.
		return Result{Failed: len(readings)}, fmt.Errorf("mark synced: %w", err)
	}
	return Result{Succeeded: len(confirmed), Failed: failed}, nil
}

func prepareDocument(r store.Reading, at time.Time) (mirror.Document, error) {
	if r.DeviceID == "" {
		return mirror.Document{}, fmt.Errorf("reading has no device_id")
	}

	sensors := map[string]any{}
	if r.Temperature != nil {
		sensors["temperature"] = *r.Temperature
	}
	if r.Humidity != nil {
		sensors["humidity"] = *r.Humidity
	}
	if r.AirQuality != nil {
		sensors["air_quality"] = *r.AirQuality
	}
	if r.Distance != nil {
		sensors["distance"] = *r.Distance
	}

	return mirror.Document{
		Key: DocumentKey(r.DeviceID, r.DeviceTimestamp, r.ID),
		Data: map[string]any{
			"local_record_id":  r.ID,
			"device_id":        r.DeviceID,
			"location":         r.Location,
			"device_timestamp": r.DeviceTimestamp,
			"server_timestamp": r.ServerTimestamp,
			"sensors":          sensors,
			"alert_type":       r.AlertType,
			"alert_active":     r.AlertActive,
			"synced_at":        at.Format(time.RFC3339),
		},
	}, nil
}

// Backup writes an arbitrary JSON-serializable object to the remote
// object store. It is independent of reading sync: a failure here is
// the caller's to log and never touches sync_state.
func (c *Coordinator) Backup(ctx context.Context, key string, v any) error {
	if c.objects == nil {
		return fmt.Errorf("object store not configured")
	}
	blob, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if key == "" {
		key = fmt.Sprintf("backups/%s_%s.json",
			c.now().UTC().Format("20060102_150405"), uuid.NewString())
	}
	if err := c.objects.PutObject(ctx, key, blob); err != nil {
		return fmt.Errorf("backup %s: %w", key, err)
	}
	return nil
}

// Kick asks the run loop to consider an early cycle. Non-blocking: a
// pending kick is enough.
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run drives periodic cycles until ctx is cancelled. A kick between
// ticks triggers an early drain once the pending set crosses the wake
// threshold. Cancellation lands between batches, never inside one.
func (c *Coordinator) Run(ctx context.Context, onCycle func(Result, error)) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.drain(ctx, onCycle)
		case <-c.kick:
			pending, err := c.store.PendingCount(ctx)
			if err != nil || pending < c.wakePending {
				continue
			}
			c.drain(ctx, onCycle)
		}
	}
}

func (c *Coordinator) drain(ctx context.Context, onCycle func(Result, error)) {
	for {
		if ctx.Err() != nil {
			return
		}
		res, err := c.RunOnce(ctx)
		if onCycle != nil && (res != (Result{}) || err != nil) {
			onCycle(res, err)
		}
		if err != nil || res.Succeeded == 0 {
			return
		}
	}
}
