// Package sampler runs the fixed-frequency accelerometer sampling loop.
//
// The Scheduler wakes once per period, reads the calibrated accelerometer
// of every capturing device and appends it to that device's capture buffer.
// It never touches the network, so a slow client or matcher cannot stall
// sampling, and sampling cannot stall the protocol server beyond the
// per-device lock held for a single append.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
)

// DefaultFrequency is the sampling rate used when Options.Frequency is zero.
const DefaultFrequency = 50.0

// ErrInvalidFrequency is returned for a negative or non-finite frequency.
var ErrInvalidFrequency = errors.New("sampler: invalid frequency")

// Logger is the logging surface of the sampler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Options configures a Scheduler.
type Options struct {
	// Frequency is the sampling rate in Hz. Zero means DefaultFrequency.
	Frequency float64

	Logger Logger

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Stats are cumulative sampler counters.
type Stats struct {
	Ticks      uint64 `json:"ticks"`
	Samples    uint64 `json:"samples"`
	ReadErrors uint64 `json:"read_errors"`
}

// Scheduler samples capturing devices at a fixed period.
type Scheduler struct {
	registry *device.Registry
	period   time.Duration
	now      func() time.Time
	logger   Logger

	mu       sync.Mutex
	lastTick time.Time

	ticks      atomic.Uint64
	samples    atomic.Uint64
	readErrors atomic.Uint64
}

// New creates a Scheduler over registry.
func New(registry *device.Registry, opts Options) (*Scheduler, error) {
	freq := opts.Frequency
	if freq == 0 {
		freq = DefaultFrequency
	}
	if !(freq > 0) || freq > float64(time.Second) {
		return nil, fmt.Errorf("%w: %v Hz", ErrInvalidFrequency, opts.Frequency)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Scheduler{
		registry: registry,
		period:   time.Duration(float64(time.Second) / freq),
		now:      now,
		logger:   logger,
		lastTick: now(),
	}, nil
}

// Period returns the sampling period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Run wakes every period and calls Tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("sampler started", "period", s.period, "devices", s.registry.Count())
	for {
		select {
		case <-ctx.Done():
			st := s.Stats()
			s.logger.Info("sampler stopped", "ticks", st.Ticks, "samples", st.Samples, "read_errors", st.ReadErrors)
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick samples every capturing device if at least one period has passed
// since the last sample. The last-sample time advances by whole periods so
// rounding never accumulates; several missed periods collapse into one
// sample per device. Returns the number of samples stored.
func (s *Scheduler) Tick(now time.Time) int {
	s.mu.Lock()
	elapsed := now.Sub(s.lastTick)
	if elapsed < s.period {
		s.mu.Unlock()
		return 0
	}
	s.lastTick = s.lastTick.Add(elapsed / s.period * s.period)
	s.mu.Unlock()

	s.ticks.Add(1)

	stored := 0
	for _, d := range s.registry.Devices() {
		capturing, _ := s.registry.IsCapturing(d.ID)
		if !capturing {
			continue
		}

		st, err := d.Controller.State()
		if err != nil {
			s.readErrors.Add(1)
			s.logger.Debug("controller read failed, skipping sample", "device", d.ID, "error", err)
			continue
		}

		// The session may have closed since the check; AppendSample drops
		// the sample in that case.
		ok, _ := s.registry.AppendSample(d.ID, device.SampleFromAccel(st.Accel))
		if ok {
			stored++
		}
	}

	s.samples.Add(uint64(stored))
	return stored
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Ticks:      s.ticks.Load(),
		Samples:    s.samples.Load(),
		ReadErrors: s.readErrors.Load(),
	}
}
