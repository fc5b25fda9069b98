package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Ankkiyy/psms-demo-g2/internal/alert"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

// Submission is one inbound reading as reported by a device. The
// alert_type/alert_active fields some firmwares send are advisory only
// and are recomputed here; a compromised reporter must not be able to
// suppress a real alert.
type Submission struct {
	DeviceID    string         `json:"device_id"`
	Location    string         `json:"location"`
	Timestamp   int64          `json:"timestamp"`
	Sensors     *alert.Sensors `json:"sensors"`
	AlertType   string         `json:"alert_type"`
	AlertActive bool           `json:"alert_active"`
}

type Result struct {
	RecordID    int64
	AlertType   alert.Type
	AlertActive bool
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s: %s", e.Field, e.Reason)
}

type Store interface {
	CommitReading(ctx context.Context, r store.ReadingInsert, al *store.AlertInsert) (int64, error)
}

type Gateway struct {
	logger     *slog.Logger
	store      Store
	thresholds alert.Thresholds
	now        func() time.Time
}

func NewGateway(logger *slog.Logger, st Store, thresholds alert.Thresholds) *Gateway {
	return &Gateway{
		logger:     logger,
		store:      st,
		thresholds: thresholds,
		now:        time.Now,
	}
}

// Submit validates, derives the alert decision and commits one atomic
// unit to the local store. No partial state survives a failure.
func (g *Gateway) Submit(ctx context.Context, sub Submission) (Result, error) {
	if sub.DeviceID == "" {
		return Result{}, &ValidationError{Field: "device_id", Reason: "required"}
	}
	if sub.Sensors == nil {
		return Result{}, &ValidationError{Field: "sensors", Reason: "required"}
	}

	location := sub.Location
	if location == "" {
		location = "unknown"
	}

	decision := alert.Evaluate(*sub.Sensors, g.thresholds)
	serverTS := g.now().UnixMilli()

	reading := store.ReadingInsert{
		DeviceID:        sub.DeviceID,
		Location:        location,
		DeviceTimestamp: sub.Timestamp,
		ServerTimestamp: serverTS,
		Temperature:     sub.Sensors.Temperature,
		Humidity:        sub.Sensors.Humidity,
		AirQuality:      sub.Sensors.AirQuality,
		Distance:        sub.Sensors.Distance,
		AlertType:       string(decision.Type),
		AlertActive:     decision.Active,
	}

	var alertRow *store.AlertInsert
	if decision.Active {
		alertRow = &store.AlertInsert{
			AlertType: string(decision.Type),
			Message:   alert.MessageFor(decision.Type, *sub.Sensors),
			Severity:  string(alert.SeverityFor(decision.Type)),
		}
	}

	recordID, err := g.store.CommitReading(ctx, reading, alertRow)
	if err != nil {
		return Result{}, fmt.Errorf("commit reading: %w", err)
	}

	if decision.Active {
		g.logger.Warn("alert raised",
			"record_id", recordID,
			"device_id", sub.DeviceID,
			"alert_type", decision.Type,
			"severity", alert.SeverityFor(decision.Type),
		)
	} else {
		g.logger.Debug("reading stored", "record_id", recordID, "device_id", sub.DeviceID)
	}

	return Result{
		RecordID:    recordID,
		AlertType:   decision.Type,
		AlertActive: decision.Active,
	}, nil
}
