package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/hardware"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/motion-bridge/internal/notify"
)

// DefaultRumblePulse is how long the test rumble runs.
const DefaultRumblePulse = 200 * time.Millisecond

// ErrUnknownAction is returned for a command action with no handler.
var ErrUnknownAction = errors.New("control: unknown action")

// Logger is the logging interface used by the tester.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Options configures a Tester.
type Options struct {
	Notifier    notify.Sink
	Logger      Logger
	RumblePulse time.Duration
}

// Tester runs the manual hardware checks exposed by the status surfaces.
type Tester struct {
	registry *device.Registry
	notifier notify.Sink
	logger   Logger
	pulse    time.Duration
}

// NewTester creates a Tester over registry.
func NewTester(registry *device.Registry, opts Options) *Tester {
	t := &Tester{
		registry: registry,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		pulse:    opts.RumblePulse,
	}
	if t.logger == nil {
		t.logger = noopLogger{}
	}
	if t.pulse <= 0 {
		t.pulse = DefaultRumblePulse
	}
	return t
}

// TestRumble turns the rumble motor of device id on for the pulse duration
// and then off. The motor is switched off even when ctx is cancelled during
// the pulse.
func (t *Tester) TestRumble(ctx context.Context, id int) error {
	d, err := t.registry.Get(id)
	if err != nil {
		return err
	}

	t.push(fmt.Sprintf("Testing rumble %d", id))

	if err := d.Controller.SetRumble(true); err != nil {
		return fmt.Errorf("%w: rumble on: %w", hardware.ErrHardwareFailure, err)
	}

	timer := time.NewTimer(t.pulse)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	if err := d.Controller.SetRumble(false); err != nil {
		return fmt.Errorf("%w: rumble off: %w", hardware.ErrHardwareFailure, err)
	}
	return ctx.Err()
}

// TestSpeaker plays hardware.TestTone on device id.
func (t *Tester) TestSpeaker(id int) error {
	d, err := t.registry.Get(id)
	if err != nil {
		return err
	}

	t.push(fmt.Sprintf("Testing speaker %d", id))

	if err := d.Controller.PlayTone(hardware.TestTone); err != nil {
		return fmt.Errorf("%w: play tone: %w", hardware.ErrHardwareFailure, err)
	}
	return nil
}

// HandleMQTTCommand runs the action named by a
// motionbridge/command/<index>/<action> topic. The payload is ignored.
func (t *Tester) HandleMQTTCommand(topic string, _ []byte) error {
	index, action, err := mqtt.ParseCommandTopic(topic)
	if err != nil {
		return err
	}
	id := index - 1

	t.logger.Info("test command received", "source", "mqtt", "device", id, "action", action)

	switch action {
	case mqtt.ActionTestRumble:
		return t.TestRumble(context.Background(), id)
	case mqtt.ActionTestSpeaker:
		return t.TestSpeaker(id)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func (t *Tester) push(msg string) {
	if t.notifier != nil {
		t.notifier.Push(msg)
	}
}
