package config

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PSMS_PORT,default=5000"`
	DBPath   string `env:"PSMS_DB_PATH,default=/data/psms-station.db"`
	LogLevel string `env:"PSMS_LOG_LEVEL,default=info"`

	AirQualityThreshold   int64   `env:"PSMS_AIR_QUALITY_THRESHOLD,default=600"`
	TempHighThreshold     float64 `env:"PSMS_TEMP_HIGH_THRESHOLD,default=30.0"`
	TempLowThreshold      float64 `env:"PSMS_TEMP_LOW_THRESHOLD,default=18.0"`
	HumidityHighThreshold float64 `env:"PSMS_HUMIDITY_HIGH_THRESHOLD,default=70.0"`
	DistanceThreshold     int64   `env:"PSMS_DISTANCE_THRESHOLD,default=50"`

	MirrorBaseURL    string        `env:"PSMS_MIRROR_BASE_URL"`
	MirrorCollection string        `env:"PSMS_MIRROR_COLLECTION,default=psms_sensor_data"`
	BackupBucket     string        `env:"PSMS_BACKUP_BUCKET"`
	SyncInterval     time.Duration `env:"PSMS_SYNC_INTERVAL,default=1m"`
	SyncBatchSize    int           `env:"PSMS_SYNC_BATCH_SIZE,default=200"`
	SyncWakePending  int64         `env:"PSMS_SYNC_WAKE_PENDING,default=500"`

	SimEnabled  bool          `env:"PSMS_SIM_ENABLED,default=false"`
	SimDeviceID string        `env:"PSMS_SIM_DEVICE_ID,default=ESP8266_PSMS_001"`
	SimLocation string        `env:"PSMS_SIM_LOCATION,default=Room_101"`
	SimInterval time.Duration `env:"PSMS_SIM_INTERVAL,default=2s"`

	RetentionDays         int           `env:"PSMS_RETENTION_DAYS,default=14"`
	CleanupInterval       time.Duration `env:"PSMS_CLEANUP_INTERVAL,default=10m"`
	WALCheckpointInterval time.Duration `env:"PSMS_WAL_CHECKPOINT_INTERVAL,default=10m"`
	WALRestartThresholdB  int64         `env:"PSMS_WAL_RESTART_THRESHOLD_BYTES,default=52428800"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return &cfg, nil
}

func WriteHelp(w io.Writer, version string) {
	fmt.Fprintf(w, "psms-station %s\n\n", version)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  PSMS_PORT=5000")
	fmt.Fprintln(w, "  PSMS_DB_PATH=/data/psms-station.db")
	fmt.Fprintln(w, "  PSMS_LOG_LEVEL=info")
	fmt.Fprintln(w, "  PSMS_AIR_QUALITY_THRESHOLD=600")
	fmt.Fprintln(w, "  PSMS_TEMP_HIGH_THRESHOLD=30.0")
	fmt.Fprintln(w, "  PSMS_TEMP_LOW_THRESHOLD=18.0")
	fmt.Fprintln(w, "  PSMS_HUMIDITY_HIGH_THRESHOLD=70.0")
	fmt.Fprintln(w, "  PSMS_DISTANCE_THRESHOLD=50")
	fmt.Fprintln(w, "  PSMS_MIRROR_BASE_URL=")
	fmt.Fprintln(w, "  PSMS_MIRROR_COLLECTION=psms_sensor_data")
	fmt.Fprintln(w, "  PSMS_BACKUP_BUCKET=")
	fmt.Fprintln(w, "  PSMS_SYNC_INTERVAL=1m")
	fmt.Fprintln(w, "  PSMS_SYNC_BATCH_SIZE=200")
	fmt.Fprintln(w, "  PSMS_SYNC_WAKE_PENDING=500")
	fmt.Fprintln(w, "  PSMS_SIM_ENABLED=false")
	fmt.Fprintln(w, "  PSMS_SIM_DEVICE_ID=ESP8266_PSMS_001")
	fmt.Fprintln(w, "  PSMS_SIM_LOCATION=Room_101")
	fmt.Fprintln(w, "  PSMS_SIM_INTERVAL=2s")
	fmt.Fprintln(w, "  PSMS_RETENTION_DAYS=14")
	fmt.Fprintln(w, "  PSMS_CLEANUP_INTERVAL=10m")
	fmt.Fprintln(w, "  PSMS_WAL_CHECKPOINT_INTERVAL=10m")
	fmt.Fprintln(w, "  PSMS_WAL_RESTART_THRESHOLD_BYTES=52428800")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  --help")
	fmt.Fprintln(w, "  --version")
}
