package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Ankkiyy/psms-demo-g2/internal/alert"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

type fakeStore struct {
	lastReading store.ReadingInsert
	lastAlert   *store.AlertInsert
	nextID      int64
	err         error
}

func (s *fakeStore) CommitReading(_ context.Context, r store.ReadingInsert, al *store.AlertInsert) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.lastReading = r
	s.lastAlert = al
	s.nextID++
	return s.nextID, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	g := NewGateway(testLogger(), &fakeStore{}, alert.DefaultThresholds())

	_, err := g.Submit(context.Background(), Submission{Sensors: &alert.Sensors{}})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "device_id" {
		t.Fatalf("missing device_id: error = %v, want ValidationError{device_id}", err)
	}

	_, err = g.Submit(context.Background(), Submission{DeviceID: "D1"})
	if !errors.As(err, &verr) || verr.Field != "sensors" {
		t.Fatalf("missing sensors: error = %v, want ValidationError{sensors}", err)
	}
}

func TestSubmitRecomputesAlertFields(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	g := NewGateway(testLogger(), st, alert.DefaultThresholds())

	// Reporter claims everything is fine while air quality is over
	// threshold: the claim is ignored.
	res, err := g.Submit(context.Background(), Submission{
		DeviceID:    "D1",
		Sensors:     &alert.Sensors{AirQuality: i64(650)},
		AlertType:   "none",
		AlertActive: false,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !res.AlertActive || res.AlertType != alert.TypePoorAirQuality {
		t.Fatalf("result = %+v, want active poor_air_quality", res)
	}
	if st.lastAlert == nil || st.lastAlert.Severity != "high" {
		t.Fatalf("alert row = %+v, want severity high", st.lastAlert)
	}
	if st.lastReading.AlertType != "poor_air_quality" || !st.lastReading.AlertActive {
		t.Fatalf("reading alert fields not recomputed: %+v", st.lastReading)
	}

	// Reporter claims an alert on nominal values: no alert is created.
	res, err = g.Submit(context.Background(), Submission{
		DeviceID:    "D1",
		Sensors:     &alert.Sensors{Temperature: f64(25)},
		AlertType:   "high_temperature",
		AlertActive: true,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.AlertActive {
		t.Fatalf("result = %+v, want inactive", res)
	}
	if st.lastAlert != nil {
		t.Fatalf("alert row created for nominal reading: %+v", st.lastAlert)
	}
}

func TestSubmitDefaultsLocationAndAssignsServerTime(t *testing.T) {
	t.Parallel()

	st := &fakeStore{}
	g := NewGateway(testLogger(), st, alert.DefaultThresholds())

	res, err := g.Submit(context.Background(), Submission{
		DeviceID:  "D1",
		Timestamp: 123456789,
		Sensors:   &alert.Sensors{Temperature: f64(22)},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.RecordID != 1 {
		t.Fatalf("record id = %d, want 1", res.RecordID)
	}
	if st.lastReading.Location != "unknown" {
		t.Fatalf("location = %q, want unknown", st.lastReading.Location)
	}
	if st.lastReading.DeviceTimestamp != 123456789 {
		t.Fatalf("device timestamp = %d, want 123456789", st.lastReading.DeviceTimestamp)
	}
	if st.lastReading.ServerTimestamp == 0 {
		t.Fatalf("server timestamp not assigned")
	}
}

func TestSubmitPropagatesStorageError(t *testing.T) {
	t.Parallel()

	st := &fakeStore{err: &store.StorageError{Op: "commit tx", Err: errors.New("disk full")}}
	g := NewGateway(testLogger(), st, alert.DefaultThresholds())

	_, err := g.Submit(context.Background(), Submission{
		DeviceID: "D1",
		Sensors:  &alert.Sensors{Temperature: f64(22)},
	})
	var serr *store.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("error = %v, want StorageError", err)
	}
}
