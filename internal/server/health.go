package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

type RuntimeSnapshot struct {
	ReadingsReceived int64
	ReadingsRejected int64
	LastSyncTime     *int64
	LastSyncStatus   string
}

type SnapshotProvider interface {
	Snapshot() RuntimeSnapshot
}

type HealthResponse struct {
	Status           string   `json:"status"`
	UptimeSeconds    int64    `json:"uptime_seconds"`
	Version          string   `json:"version"`
	DBStatus         string   `json:"db_status"`
	DBSizeBytes      int64    `json:"db_size_bytes"`
	WALSizeBytes     int64    `json:"wal_size_bytes"`
	ReadingsReceived int64    `json:"readings_received"`
	ReadingsRejected int64    `json:"readings_rejected"`
	PendingSync      int64    `json:"pending_sync"`
	LastSyncTime     *int64   `json:"last_sync_time"`
	LastSyncStatus   string   `json:"last_sync_status"`
	GeneratedAt      string   `json:"generated_at"`
	Warnings         []string `json:"warnings,omitempty"`
}

type HealthHandler struct {
	st           *store.Manager
	startTime    time.Time
	version      string
	snapshotter  SnapshotProvider
	syncDisabled bool
}

func NewHealthHandler(st *store.Manager, start time.Time, version string, snapshotter SnapshotProvider, syncDisabled bool) *HealthHandler {
	return &HealthHandler{
		st:           st,
		startTime:    start,
		version:      version,
		snapshotter:  snapshotter,
		syncDisabled: syncDisabled,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.snapshotter.Snapshot()
	dbStats := h.st.Stats()
	pending, err := h.st.PendingCount(context.Background())

	resp := HealthResponse{
		Status:           "ok",
		UptimeSeconds:    int64(time.Since(h.startTime).Seconds()),
		Version:          h.version,
		DBStatus:         dbStats.DBStatus,
		DBSizeBytes:      dbStats.DBSizeBytes,
		WALSizeBytes:     dbStats.WALSize,
		ReadingsReceived: snapshot.ReadingsReceived,
		ReadingsRejected: snapshot.ReadingsRejected,
		LastSyncTime:     snapshot.LastSyncTime,
		LastSyncStatus:   snapshot.LastSyncStatus,
		PendingSync:      pending,
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
	}

	if h.syncDisabled && resp.LastSyncStatus == "" {
		resp.LastSyncStatus = "disabled"
	}
	if err != nil {
		resp.Status = "degraded"
		resp.Warnings = append(resp.Warnings, "pending_sync_unavailable")
		resp.PendingSync = 0
	}
	if resp.DBStatus != "ok" {
		resp.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
