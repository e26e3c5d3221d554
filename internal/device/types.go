package device

import (
	"sync"
	"time"

	"github.com/nerrad567/motion-bridge/internal/hardware"
)

// Sample is one calibrated accelerometer reading in g.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SampleFromAccel converts a controller reading to a Sample.
func SampleFromAccel(a hardware.Accel) Sample {
	return Sample{X: a.X, Y: a.Y, Z: a.Z}
}

// Device is one connected controller and its capture state.
//
// ID, Name and Controller never change after registration. The capture
// flag, buffer and session start time are guarded by mu and are only
// touched through Registry methods.
type Device struct {
	ID         int
	Name       string
	Controller hardware.Controller

	mu        sync.Mutex
	capturing bool
	startedAt time.Time
	buffer    []Sample
	capacity  int
}

// Index returns the 1-based index the device is addressed by on the wire.
func (d *Device) Index() int {
	return d.ID + 1
}

// Capture is the drained result of a closed capture session.
type Capture struct {
	DeviceID  int
	StartedAt time.Time
	EndedAt   time.Time
	Samples   []Sample
}

// Duration is the wall-clock length of the session.
func (c Capture) Duration() time.Duration {
	return c.EndedAt.Sub(c.StartedAt)
}

// Status is a point-in-time view of a device for status surfaces.
type Status struct {
	ID        int       `json:"id"`
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Capturing bool      `json:"capturing"`
	Buffered  int       `json:"buffered"`
	StartedAt time.Time `json:"started_at,omitzero"`
}
