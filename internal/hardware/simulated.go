package hardware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
)

// DriverSimulated is the config name of the simulated driver.
const DriverSimulated = "simulated"

// Raw accelerometer scaling of the simulated controllers: raw = zero + g*scale.
const (
	simRawZero  = 512
	simRawScale = 100
)

// NewDriver builds the driver named in cfg.
func NewDriver(cfg config.HardwareConfig) (Driver, error) {
	switch cfg.Driver {
	case DriverSimulated:
		return NewSimulated(cfg.Simulated.Devices, cfg.Simulated.MotionHz, nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// Simulated is a Driver producing virtual controllers that swing in a
// deterministic circle: X = sin(2πft), Y = cos(2πft), Z = 1g.
type Simulated struct {
	controllers []*SimulatedController
}

// NewSimulated creates count virtual controllers moving at motionHz.
// now defaults to time.Now.
func NewSimulated(count int, motionHz float64, now func() time.Time) *Simulated {
	if now == nil {
		now = time.Now
	}
	epoch := now()

	s := &Simulated{}
	for i := 0; i < count; i++ {
		s.controllers = append(s.controllers, &SimulatedController{
			name:     fmt.Sprintf("sim-%d", i+1),
			motionHz: motionHz,
			epoch:    epoch,
			now:      now,
		})
	}
	return s
}

// Discover returns every virtual controller.
func (s *Simulated) Discover(ctx context.Context) ([]Controller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Controller, len(s.controllers))
	for i, c := range s.controllers {
		out[i] = c
	}
	return out, nil
}

// Controller returns the i-th virtual controller for inspection.
func (s *Simulated) Controller(i int) *SimulatedController {
	return s.controllers[i]
}

// SimulatedController is a virtual controller that records every output
// call. Failures can be injected with FailWith.
type SimulatedController struct {
	name     string
	motionHz float64
	epoch    time.Time
	now      func() time.Time

	mu        sync.Mutex
	connected bool
	leds      LEDs
	rumble    bool
	tones     []Tone
	ledCalls  []LEDs
	buttons   Buttons
	fail      error
}

// Name returns the controller identifier.
func (c *SimulatedController) Name() string { return c.name }

// Connect marks the controller connected.
func (c *SimulatedController) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.connected = true
	return nil
}

// Disconnect marks the controller disconnected and stops the rumble motor.
func (c *SimulatedController) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.connected = false
	c.rumble = false
	return nil
}

// SetLEDs records the LED pattern.
func (c *SimulatedController) SetLEDs(leds LEDs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}
	c.leds = leds
	c.ledCalls = append(c.ledCalls, leds)
	return nil
}

// SetRumble records the rumble state.
func (c *SimulatedController) SetRumble(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}
	c.rumble = on
	return nil
}

// PlayTone records the tone.
func (c *SimulatedController) PlayTone(tone Tone) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return err
	}
	c.tones = append(c.tones, tone)
	return nil
}

// State returns the current simulated input state.
func (c *SimulatedController) State() (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usableLocked(); err != nil {
		return State{}, err
	}

	t := c.now().Sub(c.epoch).Seconds()
	phase := 2 * math.Pi * c.motionHz * t
	accel := Accel{X: math.Sin(phase), Y: math.Cos(phase), Z: 1}

	return State{
		Buttons: c.buttons,
		Accel:   accel,
		RawAccel: RawAccel{
			X: simRawZero + int(math.Round(accel.X*simRawScale)),
			Y: simRawZero + int(math.Round(accel.Y*simRawScale)),
			Z: simRawZero + int(math.Round(accel.Z*simRawScale)),
		},
		Extension: "none",
	}, nil
}

func (c *SimulatedController) usableLocked() error {
	if c.fail != nil {
		return c.fail
	}
	if !c.connected {
		return ErrNotConnected
	}
	return nil
}

// FailWith makes every subsequent call return err. nil clears the failure.
func (c *SimulatedController) FailWith(err error) {
	c.mu.Lock()
	c.fail = err
	c.mu.Unlock()
}

// Press sets the simulated button state.
func (c *SimulatedController) Press(b Buttons) {
	c.mu.Lock()
	c.buttons = b
	c.mu.Unlock()
}

// Connected reports whether the controller is connected.
func (c *SimulatedController) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LEDs returns the last LED pattern set.
func (c *SimulatedController) LEDs() LEDs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leds
}

// LEDCalls returns every LED pattern set, in order.
func (c *SimulatedController) LEDCalls() []LEDs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LEDs(nil), c.ledCalls...)
}

// Rumbling reports whether the rumble motor is on.
func (c *SimulatedController) Rumbling() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rumble
}

// Tones returns every tone played, in order.
func (c *SimulatedController) Tones() []Tone {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Tone(nil), c.tones...)
}
