package device

import (
	"fmt"
	"time"

	"github.com/nerrad567/motion-bridge/internal/hardware"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Options configures a Registry.
type Options struct {
	// BufferCapacity is the number of samples preallocated per capture
	// buffer. Longer captures grow the buffer.
	BufferCapacity int

	Logger Logger
}

// Registry is the fixed, ordered set of connected devices.
//
// The device set is built once and never changes, so lookups take no
// registry-wide lock. Each device serialises its own capture state with a
// per-device mutex shared by the sampler and the protocol server.
//
// All public methods are thread-safe.
type Registry struct {
	devices []*Device
	logger  Logger
}

// NewRegistry registers controllers in order; the i-th controller gets id i.
func NewRegistry(controllers []hardware.Controller, opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	capacity := max(opts.BufferCapacity, 0)

	r := &Registry{
		devices: make([]*Device, len(controllers)),
		logger:  logger,
	}
	for i, c := range controllers {
		r.devices[i] = &Device{
			ID:         i,
			Name:       c.Name(),
			Controller: c,
			buffer:     make([]Sample, 0, capacity),
			capacity:   capacity,
		}
	}

	logger.Info("device registry ready", "count", len(r.devices), "buffer_capacity", capacity)
	return r
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	return len(r.devices)
}

// IsValid reports whether id addresses a registered device.
func (r *Registry) IsValid(id int) bool {
	return id >= 0 && id < len(r.devices)
}

// Get returns the device with the given id.
// Returns ErrInvalidDevice if the id is out of range.
func (r *Registry) Get(id int) (*Device, error) {
	if !r.IsValid(id) {
		return nil, fmt.Errorf("%w: id %d (have %d)", ErrInvalidDevice, id, len(r.devices))
	}
	return r.devices[id], nil
}

// Devices returns the devices in id order.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// SetCapturing sets the capture flag without touching the buffer or the
// session start time.
func (r *Registry) SetCapturing(id int, capturing bool) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.capturing = capturing
	d.mu.Unlock()
	return nil
}

// IsCapturing reports whether a capture session is open on the device.
func (r *Registry) IsCapturing(id int) (bool, error) {
	d, err := r.Get(id)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capturing, nil
}

// StartCapture opens a capture session at now. On a device that is already
// capturing only the start time is reset; buffered samples are kept.
func (r *Registry) StartCapture(id int, now time.Time) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}

	d.mu.Lock()
	restarted := d.capturing
	d.capturing = true
	d.startedAt = now
	d.mu.Unlock()

	r.logger.Debug("capture started", "device", id, "restarted", restarted)
	return nil
}

// AppendSample stores s if the device is capturing and reports whether it
// was stored.
func (r *Registry) AppendSample(id int, s Sample) (bool, error) {
	d, err := r.Get(id)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.capturing {
		return false, nil
	}
	d.buffer = append(d.buffer, s)
	return true, nil
}

// DrainAndClear returns the buffered samples and empties the buffer.
// The returned slice is owned by the caller.
func (r *Registry) DrainAndClear(id int) ([]Sample, error) {
	d, err := r.Get(id)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.drainLocked(), nil
}

// StopCapture closes the session at now and drains the buffer in one step,
// so no sample can land between the flag change and the drain. An idle
// device yields an empty capture.
func (r *Registry) StopCapture(id int, now time.Time) (Capture, error) {
	d, err := r.Get(id)
	if err != nil {
		return Capture{}, err
	}

	d.mu.Lock()
	wasCapturing := d.capturing
	started := d.startedAt
	d.capturing = false
	samples := d.drainLocked()
	d.mu.Unlock()

	if !wasCapturing {
		started = now
	}

	r.logger.Debug("capture stopped", "device", id, "samples", len(samples), "was_capturing", wasCapturing)
	return Capture{
		DeviceID:  id,
		StartedAt: started,
		EndedAt:   now,
		Samples:   samples,
	}, nil
}

// BufferLen returns the number of buffered samples.
func (r *Registry) BufferLen(id int) (int, error) {
	d, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffer), nil
}

// Snapshot returns the status of every device in id order.
func (r *Registry) Snapshot() []Status {
	out := make([]Status, len(r.devices))
	for i, d := range r.devices {
		d.mu.Lock()
		out[i] = Status{
			ID:        d.ID,
			Index:     d.Index(),
			Name:      d.Name,
			Capturing: d.capturing,
			Buffered:  len(d.buffer),
		}
		if d.capturing {
			out[i].StartedAt = d.startedAt
		}
		d.mu.Unlock()
	}
	return out
}

// drainLocked hands the buffer to the caller and installs a fresh one.
// d.mu must be held.
func (d *Device) drainLocked() []Sample {
	out := d.buffer
	d.buffer = make([]Sample, 0, d.capacity)
	if out == nil {
		out = []Sample{}
	}
	return out
}
