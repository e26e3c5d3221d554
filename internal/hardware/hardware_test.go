package hardware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Info(string, ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// fixedClock returns a clock function frozen at t, advanced via the pointer.
func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestPlayerLED(t *testing.T) {
	tests := []struct {
		n    int
		want LEDs
	}{
		{1, LEDs{true, false, false, false}},
		{4, LEDs{false, false, false, true}},
		{0, LEDsOff},
		{5, LEDsOff},
	}
	for _, tt := range tests {
		if got := PlayerLED(tt.n); got != tt.want {
			t.Errorf("PlayerLED(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestLEDsFromSlice(t *testing.T) {
	got := LEDsFromSlice([]bool{true, false, true})
	want := LEDs{true, false, true, false}
	if got != want {
		t.Errorf("LEDsFromSlice() = %v, want %v", got, want)
	}
}

func TestConnectAll(t *testing.T) {
	sim := NewSimulated(3, 1, nil)
	sim.Controller(1).FailWith(errors.New("pairing lost"))
	log := &recordingLogger{}

	controllers, err := ConnectAll(context.Background(), sim, PlayerLED(1), log)
	if err != nil {
		t.Fatalf("ConnectAll() error = %v", err)
	}

	if len(controllers) != 2 {
		t.Fatalf("connected %d controllers, want 2", len(controllers))
	}
	if controllers[0].Name() != "sim-1" || controllers[1].Name() != "sim-3" {
		t.Errorf("connected = [%s %s], want [sim-1 sim-3]", controllers[0].Name(), controllers[1].Name())
	}
	if got := sim.Controller(0).LEDs(); got != PlayerLED(1) {
		t.Errorf("LEDs after connect = %v, want %v", got, PlayerLED(1))
	}
	if len(log.warns) != 1 {
		t.Errorf("warnings = %d, want 1", len(log.warns))
	}
}

func TestConnectAll_DiscoverCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ConnectAll(ctx, NewSimulated(1, 1, nil), LEDsOff, nil)
	if !errors.Is(err, ErrHardwareFailure) {
		t.Errorf("ConnectAll() error = %v, want ErrHardwareFailure", err)
	}
}

func TestShutdown_ClearsLEDsThenDisconnects(t *testing.T) {
	sim := NewSimulated(2, 1, nil)
	controllers, err := ConnectAll(context.Background(), sim, PlayerLED(2), nil)
	if err != nil {
		t.Fatalf("ConnectAll() error = %v", err)
	}

	if err := Shutdown(controllers, nil); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		c := sim.Controller(i)
		if c.Connected() {
			t.Errorf("controller %d still connected", i)
		}
		calls := c.LEDCalls()
		if len(calls) != 2 || calls[1] != LEDsOff {
			t.Errorf("controller %d LED calls = %v, want [connect, off]", i, calls)
		}
	}
}

func TestShutdown_JoinsErrors(t *testing.T) {
	sim := NewSimulated(3, 1, nil)
	controllers, _ := ConnectAll(context.Background(), sim, LEDsOff, nil)

	sim.Controller(0).FailWith(errors.New("radio off"))

	err := Shutdown(controllers, nil)
	if !errors.Is(err, ErrHardwareFailure) {
		t.Fatalf("Shutdown() error = %v, want ErrHardwareFailure", err)
	}

	// Later controllers are still cleaned up.
	for i := 1; i < 3; i++ {
		if sim.Controller(i).Connected() {
			t.Errorf("controller %d still connected after earlier failure", i)
		}
	}
}

func TestSimulatedController_State(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sim := NewSimulated(1, 1, fixedClock(&now))
	c := sim.Controller(0)

	if _, err := c.State(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("State() before connect error = %v, want ErrNotConnected", err)
	}
	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// A quarter period in: sin = 1, cos = 0.
	now = now.Add(250 * time.Millisecond)
	st, err := c.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}

	if math.Abs(st.Accel.X-1) > 1e-9 || math.Abs(st.Accel.Y) > 1e-9 || st.Accel.Z != 1 {
		t.Errorf("Accel = %+v, want {1 0 1}", st.Accel)
	}
	if st.RawAccel != (RawAccel{X: 612, Y: 512, Z: 612}) {
		t.Errorf("RawAccel = %+v, want {612 512 612}", st.RawAccel)
	}
}

func TestSimulatedController_Outputs(t *testing.T) {
	sim := NewSimulated(1, 1, nil)
	c := sim.Controller(0)
	_ = c.Connect()

	_ = c.SetRumble(true)
	_ = c.SetRumble(true)
	if !c.Rumbling() {
		t.Error("Rumbling() = false after SetRumble(true) twice")
	}

	_ = c.PlayTone(TestTone)
	tones := c.Tones()
	if len(tones) != 1 || tones[0] != TestTone {
		t.Errorf("Tones() = %v, want [%v]", tones, TestTone)
	}

	c.Press(Buttons{A: true, Home: true})
	st, _ := c.State()
	if !st.Buttons.A || !st.Buttons.Home || st.Buttons.B {
		t.Errorf("Buttons = %+v, want A and Home pressed", st.Buttons)
	}
}

func TestNewDriver(t *testing.T) {
	d, err := NewDriver(config.HardwareConfig{Driver: "simulated", Simulated: config.SimulatedHardwareConfig{Devices: 2}})
	if err != nil {
		t.Fatalf("NewDriver(simulated) error = %v", err)
	}
	found, _ := d.Discover(context.Background())
	if len(found) != 2 {
		t.Errorf("Discover() = %d controllers, want 2", len(found))
	}

	if _, err := NewDriver(config.HardwareConfig{Driver: "bluez"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("NewDriver(bluez) error = %v, want ErrUnknownDriver", err)
	}
}
