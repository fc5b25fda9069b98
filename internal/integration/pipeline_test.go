package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Ankkiyy/psms-demo-g2/internal/alert"
	"github.com/Ankkiyy/psms-demo-g2/internal/cloudsync"
	"github.com/Ankkiyy/psms-demo-g2/internal/ingest"
	"github.com/Ankkiyy/psms-demo-g2/internal/mirror"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

// mirrorServer is a minimal in-memory document store speaking the same
// HTTP surface the station syncs against.
type mirrorServer struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	down bool
}

func (s *mirrorServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if s.offline() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/collections/readings/documents:batchUpsert", func(w http.ResponseWriter, r *http.Request) {
		if s.offline() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req struct {
			Documents []mirror.Document `json:"documents"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		results := make([]mirror.BatchOutcome, 0, len(req.Documents))
		s.mu.Lock()
		for _, d := range req.Documents {
			s.docs[d.Key] = d.Data
			results = append(results, mirror.BatchOutcome{Key: d.Key, OK: true})
		}
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})
	return mux
}

func (s *mirrorServer) offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

func (s *mirrorServer) setDown(down bool) {
	s.mu.Lock()
	s.down = down
	s.mu.Unlock()
}

func (s *mirrorServer) document(key string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[key]
	return d, ok
}

func (s *mirrorServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

type pipeline struct {
	st     *store.Manager
	gw     *ingest.Gateway
	coord  *cloudsync.Coordinator
	remote *mirrorServer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(t.TempDir(), "psms.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	remote := &mirrorServer{docs: map[string]map[string]any{}}
	srv := httptest.NewServer(remote.handler())
	t.Cleanup(srv.Close)

	client := mirror.NewClient(srv.URL, "readings", "")
	return &pipeline{
		st:     st,
		gw:     ingest.NewGateway(logger, st, alert.DefaultThresholds()),
		coord:  cloudsync.New(logger, st, client, nil, 50, time.Minute, 100),
		remote: remote,
	}
}

func (p *pipeline) submit(t *testing.T, device string, ts int64, sensors alert.Sensors) ingest.Result {
	t.Helper()
	res, err := p.gw.Submit(context.Background(), ingest.Submission{
		DeviceID:  device,
		Location:  "Room_101",
		Timestamp: ts,
		Sensors:   &sensors,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return res
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func TestSubmittedReadingsReachTheMirror(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	normal := p.submit(t, "esp32_001", 1000, alert.Sensors{Temperature: f64(24.0)})
	alerting := p.submit(t, "esp32_001", 2000, alert.Sensors{AirQuality: i64(620)})
	if alerting.AlertActive != true || alerting.AlertType != alert.TypePoorAirQuality {
		t.Fatalf("alert decision = %+v", alerting)
	}

	res, err := p.coord.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sync cycle: %v", err)
	}
	if res.Succeeded != 2 || res.Failed != 0 {
		t.Fatalf("cycle result = %+v, want 2 succeeded", res)
	}

	pending, err := p.st.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if pending != 0 {
		t.Fatalf("pending = %d, want 0", pending)
	}

	key := cloudsync.DocumentKey("esp32_001", 2000, alerting.RecordID)
	doc, ok := p.remote.document(key)
	if !ok {
		t.Fatalf("document %s missing from mirror", key)
	}
	if doc["alert_type"] != "poor_air_quality" || doc["alert_active"] != true {
		t.Fatalf("mirrored alert fields = %v", doc)
	}
	sensors := doc["sensors"].(map[string]any)
	if sensors["air_quality"].(float64) != 620 {
		t.Fatalf("mirrored air_quality = %v", sensors["air_quality"])
	}
	if _, ok := p.remote.document(cloudsync.DocumentKey("esp32_001", 1000, normal.RecordID)); !ok {
		t.Fatalf("normal reading missing from mirror")
	}
}

func TestOutageQueuesAndRecoveryDrains(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)
	p.remote.setDown(true)

	for i := 0; i < 5; i++ {
		p.submit(t, "esp32_001", int64(1000+i), alert.Sensors{Temperature: f64(22.0)})
	}

	// Ingestion succeeds while the mirror is dark; sync does not.
	if _, err := p.coord.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected sync failure while mirror is down")
	}
	pending, err := p.st.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if pending != 5 {
		t.Fatalf("pending = %d, want 5", pending)
	}
	if p.remote.count() != 0 {
		t.Fatalf("mirror has %d documents during outage", p.remote.count())
	}

	p.remote.setDown(false)
	res, err := p.coord.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("recovery cycle: %v", err)
	}
	if res.Succeeded != 5 {
		t.Fatalf("recovery result = %+v, want 5 succeeded", res)
	}
	pending, _ = p.st.PendingCount(context.Background())
	if pending != 0 {
		t.Fatalf("pending after recovery = %d, want 0", pending)
	}
	if p.remote.count() != 5 {
		t.Fatalf("mirror documents = %d, want 5", p.remote.count())
	}
}

func TestReplayedCycleOverwritesSameDocuments(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	res := p.submit(t, "esp32_001", 1000, alert.Sensors{Humidity: f64(50.0)})
	key := cloudsync.DocumentKey("esp32_001", 1000, res.RecordID)

	if _, err := p.coord.RunOnce(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}

	// Force the row back to pending, simulating a mark that never
	// landed before a crash.
	db, err := sql.Open("sqlite", p.st.Path())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.ExecContext(context.Background(),
		`UPDATE readings SET sync_state = 'pending', synced_at = NULL`); err != nil {
		t.Fatalf("reset sync_state: %v", err)
	}
	_ = db.Close()

	if _, err := p.coord.RunOnce(context.Background()); err != nil {
		t.Fatalf("replay cycle: %v", err)
	}
	if p.remote.count() != 1 {
		t.Fatalf("mirror documents = %d, want 1 after replay", p.remote.count())
	}
	if _, ok := p.remote.document(key); !ok {
		t.Fatalf("replayed document landed under a different key")
	}
}

func TestEveryMirroredDocumentCarriesTheLocalRecord(t *testing.T) {
	t.Parallel()
	p := newPipeline(t)

	ids := map[int64]bool{}
	for i := 0; i < 3; i++ {
		r := p.submit(t, fmt.Sprintf("esp32_%03d", i), int64(1000+i), alert.Sensors{Temperature: f64(23.5)})
		ids[r.RecordID] = true
	}
	if _, err := p.coord.RunOnce(context.Background()); err != nil {
		t.Fatalf("sync cycle: %v", err)
	}

	p.remote.mu.Lock()
	defer p.remote.mu.Unlock()
	for key, doc := range p.remote.docs {
		id := int64(doc["local_record_id"].(float64))
		if !ids[id] {
			t.Fatalf("document %s references unknown record %d", key, id)
		}
		if doc["location"] != "Room_101" {
			t.Fatalf("document %s location = %v", key, doc["location"])
		}
	}
}
