package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/hardware"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	sim      *hardware.Simulated
	registry *device.Registry
	sched    *Scheduler
}

func newFixture(t *testing.T, devices int, now func() time.Time) *fixture {
	t.Helper()
	sim := hardware.NewSimulated(devices, 1, now)
	controllers, err := hardware.ConnectAll(context.Background(), sim, hardware.LEDsOff, nil)
	if err != nil {
		t.Fatalf("ConnectAll() error = %v", err)
	}
	registry := device.NewRegistry(controllers, device.Options{BufferCapacity: 900})

	sched, err := New(registry, Options{Frequency: 50, Now: now})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{sim: sim, registry: registry, sched: sched}
}

func TestNew_Frequency(t *testing.T) {
	registry := device.NewRegistry(nil, device.Options{})

	s, err := New(registry, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.Period() != 20*time.Millisecond {
		t.Errorf("default Period() = %v, want 20ms", s.Period())
	}

	if _, err := New(registry, Options{Frequency: -1}); !errors.Is(err, ErrInvalidFrequency) {
		t.Errorf("New(-1 Hz) error = %v, want ErrInvalidFrequency", err)
	}
}

func TestTick_SamplesOnlyCapturingDevices(t *testing.T) {
	f := newFixture(t, 2, func() time.Time { return t0 })
	_ = f.registry.StartCapture(1, t0)

	if n := f.sched.Tick(t0.Add(20 * time.Millisecond)); n != 1 {
		t.Errorf("Tick() = %d, want 1", n)
	}

	if n, _ := f.registry.BufferLen(0); n != 0 {
		t.Errorf("idle device buffered %d samples", n)
	}
	if n, _ := f.registry.BufferLen(1); n != 1 {
		t.Errorf("capturing device buffered %d samples, want 1", n)
	}
}

func TestTick_RespectsPeriod(t *testing.T) {
	f := newFixture(t, 1, func() time.Time { return t0 })
	_ = f.registry.StartCapture(0, t0)

	if n := f.sched.Tick(t0.Add(19 * time.Millisecond)); n != 0 {
		t.Errorf("Tick() before a full period = %d, want 0", n)
	}
	if n := f.sched.Tick(t0.Add(20 * time.Millisecond)); n != 1 {
		t.Errorf("Tick() at one period = %d, want 1", n)
	}
	if n := f.sched.Tick(t0.Add(25 * time.Millisecond)); n != 0 {
		t.Errorf("Tick() 5ms later = %d, want 0", n)
	}
}

func TestTick_NoDrift(t *testing.T) {
	f := newFixture(t, 1, func() time.Time { return t0 })
	_ = f.registry.StartCapture(0, t0)

	// Wake 1ms late every period for one second. Without drift correction
	// the lateness would add up and lose samples.
	now := t0
	for i := 1; i <= 50; i++ {
		now = t0.Add(time.Duration(i)*20*time.Millisecond + time.Millisecond)
		f.sched.Tick(now)
	}

	if n, _ := f.registry.BufferLen(0); n != 50 {
		t.Errorf("buffered %d samples in one second at 50 Hz, want 50", n)
	}
}

func TestTick_CoalescesMissedPeriods(t *testing.T) {
	f := newFixture(t, 1, func() time.Time { return t0 })
	_ = f.registry.StartCapture(0, t0)

	if n := f.sched.Tick(t0.Add(100 * time.Millisecond)); n != 1 {
		t.Errorf("Tick() after 5 missed periods = %d, want 1", n)
	}
	// The schedule stays on the period grid.
	if n := f.sched.Tick(t0.Add(119 * time.Millisecond)); n != 0 {
		t.Errorf("Tick() mid-period = %d, want 0", n)
	}
	if n := f.sched.Tick(t0.Add(120 * time.Millisecond)); n != 1 {
		t.Errorf("Tick() on the grid = %d, want 1", n)
	}

	if st := f.sched.Stats(); st.Ticks != 2 || st.Samples != 2 {
		t.Errorf("Stats() = %+v, want 2 ticks and 2 samples", st)
	}
}

func TestTick_ReadFailureSkipsDevice(t *testing.T) {
	f := newFixture(t, 2, func() time.Time { return t0 })
	_ = f.registry.StartCapture(0, t0)
	_ = f.registry.StartCapture(1, t0)
	f.sim.Controller(0).FailWith(errors.New("link lost"))

	if n := f.sched.Tick(t0.Add(20 * time.Millisecond)); n != 1 {
		t.Errorf("Tick() = %d, want 1", n)
	}
	if st := f.sched.Stats(); st.ReadErrors != 1 {
		t.Errorf("ReadErrors = %d, want 1", st.ReadErrors)
	}
}

func TestTick_StoresCalibratedAccel(t *testing.T) {
	now := t0
	f := newFixture(t, 1, func() time.Time { return now })
	_ = f.registry.StartCapture(0, t0)

	now = t0.Add(20 * time.Millisecond)
	f.sched.Tick(now)

	capture, _ := f.registry.StopCapture(0, now)
	st, _ := f.sim.Controller(0).State()
	if len(capture.Samples) != 1 || capture.Samples[0] != device.SampleFromAccel(st.Accel) {
		t.Errorf("samples = %v, want the controller's calibrated reading %v", capture.Samples, st.Accel)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, 1, nil)
	_ = f.registry.StartCapture(0, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.sched.Run(ctx)
		close(done)
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if n, _ := f.registry.BufferLen(0); n == 0 {
		t.Error("Run stored no samples in 200ms")
	}
}
