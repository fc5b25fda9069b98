package store

import (
	"context"
	"errors"
	"testing"
)

func TestCommitReadingWithAlert(t *testing.T) {
	t.Parallel()

	m := openTestStore(t)
	ctx := context.Background()

	r := testReading("D1", 1000)
	r.AlertType = "poor_air_quality"
	r.AlertActive = true
	al := &AlertInsert{
		AlertType: "poor_air_quality",
		Message:   "Poor air quality detected: 650 ppm",
		Severity:  "high",
	}

	id, err := m.CommitReading(ctx, r, al)
	if err != nil {
		t.Fatalf("CommitReading() error = %v", err)
	}
	if id != 1 {
		t.Fatalf("record id = %d, want 1", id)
	}

	alerts, err := m.Alerts(ctx, AlertFilter{UnresolvedOnly: true})
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alert rows = %d, want 1", len(alerts))
	}
	if alerts[0].ReadingID != id || alerts[0].Severity != "high" {
		t.Fatalf("unexpected alert row: %+v", alerts[0])
	}

	devices, err := m.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 || devices[0].DeviceID != "D1" || devices[0].Status != "active" {
		t.Fatalf("unexpected device rows: %+v", devices)
	}
}

func TestCommitReadingWithoutAlertCreatesNoAlertRow(t *testing.T) {
	t.Parallel()

	m := openTestStore(t)
	ctx := context.Background()

	if _, err := m.CommitReading(ctx, testReading("D1", 1000), nil); err != nil {
		t.Fatalf("CommitReading() error = %v", err)
	}

	alerts, err := m.Alerts(ctx, AlertFilter{})
	if err != nil {
		t.Fatalf("Alerts() error = %v", err)
	}
	if len(alerts) != 0 {
		t.Fatalf("alert rows = %d, want 0", len(alerts))
	}
}

func TestCommitAtomicityOnAlertFailure(t *testing.T) {
	t.Parallel()

	m := openTestStore(t)
	ctx := context.Background()

	// Severity violates the schema check, so the third write of the
	// transaction fails after the reading and device writes.
	_, err := m.CommitReading(ctx, testReading("D1", 1000), &AlertInsert{
		AlertType: "poor_air_quality",
		Message:   "boom",
		Severity:  "catastrophic",
	})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
	var serr *StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want StorageError", err)
	}

	stats, err := m.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalReadings != 0 || stats.TotalDevices != 0 || stats.UnresolvedAlerts != 0 {
		t.Fatalf("partial state after failed commit: %+v", stats)
	}
}

func TestReadingIDsStrictlyIncrease(t *testing.T) {
	t.Parallel()

	m := openTestStore(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		id, err := m.CommitReading(ctx, testReading("D1", int64(1000+i)), nil)
		if err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
}

func TestDeviceUpsertKeepsOneRowAndMonotonicLastSeen(t *testing.T) {
	t.Parallel()

	m := openTestStore(t)
	ctx := context.Background()

	// Device timestamps arrive out of order; server receipt order
	// drives last_seen.
	timestamps := []int64{5000, 6000, 7000}
	deviceTS := []int64{900, 100, 500}
	for i, ts := range timestamps {
		r := testReading("D1", ts)
		r.DeviceTimestamp = deviceTS[i]
		r.Location = "Room_202"
		if _, err := m.CommitReading(ctx, r, nil); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	devices, err := m.Devices(ctx)
	if err != nil {
		t.Fatalf("Devices() error = %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("device rows = %d, want 1", len(devices))
	}
	if devices[0].LastSeen != 7000 {
		t.Fatalf("last_seen = %d, want 7000", devices[0].LastSeen)
	}
	if devices[0].Location != "Room_202" {
		t.Fatalf("location = %q, want Room_202", devices[0].Location)
	}
	if devices[0].TotalReadings != 3 {
		t.Fatalf("total readings = %d, want 3", devices[0].TotalReadings)
	}
}
