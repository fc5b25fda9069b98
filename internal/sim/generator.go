// Package sim feeds the pipeline with one fake device until real
// field hardware is wired up. The loop is ticker-driven and stops with
// its context, so shutdown never waits on a sleeping goroutine.
package sim

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/Ankkiyy/psms-demo-g2/internal/alert"
	"github.com/Ankkiyy/psms-demo-g2/internal/ingest"
)

type Submitter interface {
	Submit(ctx context.Context, sub ingest.Submission) (ingest.Result, error)
}

type Generator struct {
	logger    *slog.Logger
	submitter Submitter
	deviceID  string
	location  string
	interval  time.Duration
	random    *rand.Rand
}

func New(logger *slog.Logger, submitter Submitter, deviceID, location string, interval time.Duration) *Generator {
	return &Generator{
		logger:    logger,
		submitter: submitter,
		deviceID:  deviceID,
		location:  location,
		interval:  interval,
		random:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sub := g.payload()
			if _, err := g.submitter.Submit(ctx, sub); err != nil {
				g.logger.Warn("simulated submission failed", "device_id", g.deviceID, "error", err)
			}
		}
	}
}

// payload draws values that mostly sit inside the default thresholds,
// with the upper air-quality range occasionally tripping an alert.
func (g *Generator) payload() ingest.Submission {
	temperature := roundTo1(20.0 + g.random.Float64()*8.0)
	humidity := roundTo1(40.0 + g.random.Float64()*25.0)
	airQuality := int64(300 + g.random.Intn(351))
	distance := int64(20 + g.random.Intn(101))

	return ingest.Submission{
		DeviceID:  g.deviceID,
		Location:  g.location,
		Timestamp: time.Now().UnixMilli(),
		Sensors: &alert.Sensors{
			Temperature: &temperature,
			Humidity:    &humidity,
			AirQuality:  &airQuality,
			Distance:    &distance,
		},
	}
}

func roundTo1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
