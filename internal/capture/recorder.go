package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/motion-bridge/internal/gesture"
)

// Telemetry receives one metric per completed capture. *influxdb.Client
// satisfies it.
type Telemetry interface {
	WriteCaptureMetric(deviceID int, samples int, duration time.Duration, matched int)
}

// Logger is the logging interface used by the recorder.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Options configures a Recorder. Either sink may be nil.
type Options struct {
	Repository Repository
	Telemetry  Telemetry
	Logger     Logger
}

// Recorder archives completed captures and reports them as telemetry.
type Recorder struct {
	repo      Repository
	telemetry Telemetry
	logger    Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(opts Options) *Recorder {
	r := &Recorder{
		repo:      opts.Repository,
		telemetry: opts.Telemetry,
		logger:    opts.Logger,
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// NewID returns a fresh capture record id.
func NewID() string {
	return "cap-" + uuid.NewString()
}

// RecordCapture writes the telemetry point and archives the session.
// Telemetry is sent even when archiving fails.
func (r *Recorder) RecordCapture(ctx context.Context, result gesture.Result) error {
	c := result.Capture

	if r.telemetry != nil {
		r.telemetry.WriteCaptureMetric(c.DeviceID, len(c.Samples), c.Duration(), result.Matched)
	}

	if r.repo == nil {
		return nil
	}

	rec, err := r.repo.Save(ctx, Record{
		ID:         NewID(),
		DeviceID:   c.DeviceID,
		StartedAt:  c.StartedAt,
		Duration:   c.Duration(),
		Candidates: result.Candidates.String(),
		Matched:    result.Matched,
	}, c.Samples)
	if err != nil {
		return fmt.Errorf("archiving capture for device %d: %w", c.DeviceID, err)
	}

	r.logger.Debug("capture archived",
		"id", rec.ID,
		"device", rec.DeviceID,
		"samples", rec.SampleCount,
		"encoding", rec.Encoding,
		"raw_size", rec.RawSize,
	)
	return nil
}
