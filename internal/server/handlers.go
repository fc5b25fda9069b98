package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Ankkiyy/psms-demo-g2/internal/ingest"
	"github.com/Ankkiyy/psms-demo-g2/internal/mirror"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

type Submitter interface {
	Submit(ctx context.Context, sub ingest.Submission) (ingest.Result, error)
}

type Queries interface {
	LatestReadings(ctx context.Context, deviceID string) ([]store.Reading, error)
	Alerts(ctx context.Context, f store.AlertFilter) ([]store.Alert, error)
	Devices(ctx context.Context) ([]store.DeviceInfo, error)
	Statistics(ctx context.Context) (store.Statistics, error)
}

type ConnectivityChecker interface {
	Connectivity(ctx context.Context) mirror.ConnectivityStatus
}

type Handlers struct {
	logger    *slog.Logger
	submitter Submitter
	queries   Queries
	cloud     ConnectivityChecker
}

func NewHandlers(logger *slog.Logger, submitter Submitter, queries Queries, cloud ConnectivityChecker) *Handlers {
	return &Handlers{
		logger:    logger,
		submitter: submitter,
		queries:   queries,
		cloud:     cloud,
	}
}

type submitResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	RecordID    int64  `json:"record_id"`
	AlertActive bool   `json:"alert_active"`
}

func (h *Handlers) PostSensorData(w http.ResponseWriter, r *http.Request) {
	var sub ingest.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json payload")
		return
	}

	res, err := h.submitter.Submit(r.Context(), sub)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Error("sensor data commit failed", "device_id", sub.DeviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store sensor data")
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		Status:      "success",
		Message:     "Sensor data received and stored",
		RecordID:    res.RecordID,
		AlertActive: res.AlertActive,
	})
}

func (h *Handlers) GetLatestData(w http.ResponseWriter, r *http.Request) {
	readings, err := h.queries.LatestReadings(r.Context(), r.URL.Query().Get("device_id"))
	if err != nil {
		h.logger.Error("latest data query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve latest data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(readings),
		"data":   readings,
	})
}

func (h *Handlers) GetAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.AlertFilter{
		UnresolvedOnly: true,
		DeviceID:       q.Get("device_id"),
		Limit:          100,
	}
	if v := q.Get("active"); v != "" {
		filter.UnresolvedOnly = v == "true"
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	alerts, err := h.queries.Alerts(r.Context(), filter)
	if err != nil {
		h.logger.Error("alerts query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve alerts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (h *Handlers) GetDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.queries.Devices(r.Context())
	if err != nil {
		h.logger.Error("devices query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"count":   len(devices),
		"devices": devices,
	})
}

func (h *Handlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.Statistics(r.Context())
	if err != nil {
		h.logger.Error("statistics query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"statistics": stats,
	})
}

func (h *Handlers) GetCloudStatus(w http.ResponseWriter, r *http.Request) {
	if h.cloud == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "disabled",
		})
		return
	}
	status := h.cloud.Connectivity(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"connectivity": status,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
