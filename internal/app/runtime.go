package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ankkiyy/psms-demo-g2/internal/alert"
	"github.com/Ankkiyy/psms-demo-g2/internal/cloudsync"
	"github.com/Ankkiyy/psms-demo-g2/internal/config"
	"github.com/Ankkiyy/psms-demo-g2/internal/ingest"
	"github.com/Ankkiyy/psms-demo-g2/internal/mirror"
	"github.com/Ankkiyy/psms-demo-g2/internal/server"
	"github.com/Ankkiyy/psms-demo-g2/internal/sim"
	"github.com/Ankkiyy/psms-demo-g2/internal/store"
)

type Runtime struct {
	cfg         *config.Config
	logger      *slog.Logger
	version     string
	startedAt   time.Time
	st          *store.Manager
	gateway     *ingest.Gateway
	coordinator *cloudsync.Coordinator
	httpServer  *http.Server
	bgCancel    context.CancelFunc
	bgWG        sync.WaitGroup

	readingsReceived atomic.Int64
	readingsRejected atomic.Int64
	lastSyncTime     atomic.Int64
	lastSyncStatus   atomic.Value
}

func New(cfg *config.Config, logger *slog.Logger, version string) *Runtime {
	r := &Runtime{
		cfg:       cfg,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
	}
	r.lastSyncStatus.Store("disabled")
	return r
}

func (r *Runtime) thresholds() alert.Thresholds {
	return alert.Thresholds{
		AirQuality:   r.cfg.AirQualityThreshold,
		TempHigh:     r.cfg.TempHighThreshold,
		TempLow:      r.cfg.TempLowThreshold,
		HumidityHigh: r.cfg.HumidityHighThreshold,
		Distance:     r.cfg.DistanceThreshold,
	}
}

func (r *Runtime) Run(ctx context.Context) error {
	st, err := store.Open(r.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	r.st = st

	journalMode, busyTimeout, autoVacuum, err := r.st.Pragmas(ctx)
	if err != nil {
		return fmt.Errorf("query sqlite pragmas: %w", err)
	}
	r.logger.Info("SQLite opened",
		"path", r.cfg.DBPath,
		"journal_mode", journalMode,
		"busy_timeout", busyTimeout,
		"auto_vacuum", autoVacuum,
		"tables", 3,
	)

	r.gateway = ingest.NewGateway(r.logger, r.st, r.thresholds())

	var cloudClient *mirror.Client
	var cloud server.ConnectivityChecker
	if r.cfg.MirrorBaseURL != "" {
		cloudClient = mirror.NewClient(r.cfg.MirrorBaseURL, r.cfg.MirrorCollection, r.cfg.BackupBucket)
		cloud = cloudClient
		r.coordinator = cloudsync.New(
			r.logger, r.st, cloudClient, cloudClient,
			r.cfg.SyncBatchSize, r.cfg.SyncInterval, r.cfg.SyncWakePending,
		)
		r.lastSyncStatus.Store("ready")
	}

	healthHandler := server.NewHealthHandler(r.st, r.startedAt, r.version, r, r.coordinator == nil)
	handlers := server.NewHandlers(r.logger, r, r.st, cloud)
	r.httpServer = server.New(":"+r.cfg.Port, server.NewRouter(handlers, healthHandler.ServeHTTP))

	bgCtx, bgCancel := context.WithCancel(context.Background())
	r.bgCancel = bgCancel
	r.startBackgroundLoops(bgCtx)

	serverErr := make(chan error, 1)
	go func() {
		r.logger.Info("Listening", "addr", ":"+r.cfg.Port)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		r.logger.Info("Shutdown signal received")
		return r.shutdown(context.Background())
	}
}

// Submit routes one submission through the gateway, keeps the
// operational counters and nudges the sync loop.
func (r *Runtime) Submit(ctx context.Context, sub ingest.Submission) (ingest.Result, error) {
	res, err := r.gateway.Submit(ctx, sub)
	if err != nil {
		r.readingsRejected.Add(1)
		return ingest.Result{}, err
	}
	r.readingsReceived.Add(1)
	if r.coordinator != nil {
		r.coordinator.Kick()
	}
	return res, nil
}

func (r *Runtime) Snapshot() server.RuntimeSnapshot {
	var lastSync *int64
	if ts := r.lastSyncTime.Load(); ts > 0 {
		t := ts
		lastSync = &t
	}

	lastSyncStatus := ""
	if s, ok := r.lastSyncStatus.Load().(string); ok {
		lastSyncStatus = s
	}

	return server.RuntimeSnapshot{
		ReadingsReceived: r.readingsReceived.Load(),
		ReadingsRejected: r.readingsRejected.Load(),
		LastSyncTime:     lastSync,
		LastSyncStatus:   lastSyncStatus,
	}
}

func (r *Runtime) startBackgroundLoops(ctx context.Context) {
	if r.coordinator != nil {
		r.bgWG.Add(1)
		go func() {
			defer r.bgWG.Done()
			err := r.coordinator.Run(ctx, func(res cloudsync.Result, err error) {
				if err != nil {
					r.lastSyncStatus.Store("error")
					r.logger.Warn("sync cycle failed", "succeeded", res.Succeeded, "failed", res.Failed, "error", err)
					return
				}
				r.lastSyncStatus.Store("ok")
				r.lastSyncTime.Store(time.Now().UnixMilli())
				r.logger.Info("sync cycle completed", "succeeded", res.Succeeded, "failed", res.Failed)
			})
			if err != nil {
				r.logger.Warn("sync loop stopped", "error", err)
			}
		}()
	}

	if r.cfg.SimEnabled {
		r.bgWG.Add(1)
		go func() {
			defer r.bgWG.Done()
			generator := sim.New(r.logger, r, r.cfg.SimDeviceID, r.cfg.SimLocation, r.cfg.SimInterval)
			if err := generator.Run(ctx); err != nil {
				r.logger.Warn("simulator stopped", "error", err)
			}
		}()
	}

	r.bgWG.Add(1)
	go func() {
		defer r.bgWG.Done()
		ticker := time.NewTicker(r.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				deleted, err := r.st.CleanupSynced(cleanupCtx, r.cfg.RetentionDays)
				cancel()
				if err != nil {
					r.logger.Warn("cleanup failed", "error", err)
				} else if deleted > 0 {
					r.logger.Info("retention cleanup", "deleted", deleted)
				}
			}
		}
	}()

	r.bgWG.Add(1)
	go func() {
		defer r.bgWG.Done()
		ticker := time.NewTicker(r.cfg.WALCheckpointInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cpCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				_, err := r.st.CheckpointIfWALExceeds(cpCtx, r.cfg.WALRestartThresholdB)
				cancel()
				if err != nil {
					r.logger.Warn("wal checkpoint loop failed", "error", err)
				}
			}
		}
	}()
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var joined error

	if r.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.httpServer.Shutdown(httpCtx); err != nil {
			joined = errors.Join(joined, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if r.bgCancel != nil {
		r.bgCancel()
		done := make(chan struct{})
		go func() {
			r.bgWG.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			joined = errors.Join(joined, errors.New("background loop shutdown timeout"))
		}
	}

	if r.coordinator != nil {
		syncCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		res, err := r.coordinator.RunOnce(syncCtx)
		cancel()
		if err != nil {
			r.logger.Warn("final sync failed", "error", err)
			joined = errors.Join(joined, fmt.Errorf("final sync: %w", err))
		} else if res.Succeeded > 0 {
			r.logger.Info("final sync", "succeeded", res.Succeeded, "failed", res.Failed)
		}
	}

	if r.st != nil {
		cpCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.st.Checkpoint(cpCtx); err != nil {
			r.logger.Warn("WAL checkpoint failed", "error", err)
			joined = errors.Join(joined, fmt.Errorf("wal checkpoint: %w", err))
		}
		if err := r.st.Close(); err != nil {
			joined = errors.Join(joined, fmt.Errorf("store close: %w", err))
		}
	}

	r.logger.Info("Shutdown complete",
		"readings_received", r.readingsReceived.Load(),
		"uptime", time.Since(r.startedAt).String(),
	)
	return joined
}
