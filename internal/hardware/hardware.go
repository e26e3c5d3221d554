package hardware

import (
	"context"
	"errors"
	"fmt"
)

// Driver discovers controllers.
type Driver interface {
	Discover(ctx context.Context) ([]Controller, error)
}

// Controller is one motion controller.
// Implementations must be safe for concurrent use: the sampler reads State
// while the protocol server drives rumble and LEDs.
type Controller interface {
	Name() string
	Connect() error
	Disconnect() error
	SetLEDs(leds LEDs) error
	SetRumble(on bool) error
	PlayTone(tone Tone) error
	State() (State, error)
}

// LEDs is the on/off state of the four player LEDs.
type LEDs [4]bool

// LEDsOff turns every LED off.
var LEDsOff = LEDs{}

// PlayerLED lights the single LED for player n (1-4). Out of range n
// yields all LEDs off.
func PlayerLED(n int) LEDs {
	var leds LEDs
	if n >= 1 && n <= len(leds) {
		leds[n-1] = true
	}
	return leds
}

// LEDsFromSlice copies up to four flags into an LEDs value.
func LEDsFromSlice(flags []bool) LEDs {
	var leds LEDs
	copy(leds[:], flags)
	return leds
}

// Tone is a speaker request. Values are passed to the controller unchanged.
type Tone struct {
	Frequency byte
	Volume    byte
	Duration  byte
}

// TestTone is played by the manual "test speaker" action.
var TestTone = Tone{Frequency: 0x10, Volume: 0x40, Duration: 0xC3}

// Buttons is the pressed state of the controller buttons.
type Buttons struct {
	A, B                  bool
	Up, Down, Left, Right bool
	Plus, Minus           bool
	One, Two              bool
	Home                  bool
}

// Nunchuk is the state of the Nunchuk extension. Zero when none is attached.
type Nunchuk struct {
	C, Z      bool
	JoystickX float64
	JoystickY float64
}

// Accel is a calibrated accelerometer reading in g.
type Accel struct {
	X, Y, Z float64
}

// RawAccel is the uncalibrated accelerometer reading.
type RawAccel struct {
	X, Y, Z int
}

// State is a combined input snapshot.
type State struct {
	Buttons   Buttons
	Nunchuk   Nunchuk
	Accel     Accel
	RawAccel  RawAccel
	Extension string
}

// Logger is the logging surface used by the lifecycle helpers.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// ConnectAll discovers controllers, connects each one and lights leds on it.
// A controller that fails to connect is logged and left out; a failure to set
// LEDs is logged but the controller is kept.
func ConnectAll(ctx context.Context, driver Driver, leds LEDs, log Logger) ([]Controller, error) {
	if log == nil {
		log = noopLogger{}
	}

	found, err := driver.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discover: %w", ErrHardwareFailure, err)
	}

	connected := make([]Controller, 0, len(found))
	for _, c := range found {
		if err := c.Connect(); err != nil {
			log.Warn("controller connect failed, skipping", "controller", c.Name(), "error", err)
			continue
		}
		if err := c.SetLEDs(leds); err != nil {
			log.Warn("setting controller LEDs failed", "controller", c.Name(), "error", err)
		}
		log.Info("controller connected", "controller", c.Name(), "index", len(connected)+1)
		connected = append(connected, c)
	}

	return connected, nil
}

// Shutdown clears the LEDs of every controller and then disconnects it, in
// order. Every step is attempted; all failures are joined.
func Shutdown(controllers []Controller, log Logger) error {
	if log == nil {
		log = noopLogger{}
	}

	var errs []error
	for _, c := range controllers {
		if err := c.SetLEDs(LEDsOff); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: clearing LEDs: %w", ErrHardwareFailure, c.Name(), err))
		}
		if err := c.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s: disconnect: %w", ErrHardwareFailure, c.Name(), err))
			continue
		}
		log.Info("controller disconnected", "controller", c.Name())
	}

	return errors.Join(errs...)
}
