package protocol

import (
	"strconv"
	"strings"

	"github.com/nerrad567/motion-bridge/internal/hardware"
)

// StateFieldCount is the number of fields in a state reply.
const StateFieldCount = 18

// ErrorCode is the machine-readable part of an error reply.
type ErrorCode string

// Error codes.
const (
	CodeInvalidDevice   ErrorCode = "invalid_device"
	CodeHardwareFailure ErrorCode = "hardware_failure"
)

// Shake is the handshake reply carrying the device count.
func Shake(count int) []byte {
	return []byte("shake " + strconv.Itoa(count))
}

// CaptureStarted acknowledges a capture start.
func CaptureStarted() []byte {
	return []byte("g")
}

// CaptureResult carries the matched gesture id (negative for no match).
func CaptureResult(id int) []byte {
	return []byte("g " + strconv.Itoa(id))
}

// Rumble acknowledges a rumble change.
func Rumble() []byte {
	return []byte("r")
}

// Error builds "error <code> <detail>". An empty detail is omitted.
func Error(code ErrorCode, detail string) []byte {
	if detail == "" {
		return []byte("error " + string(code))
	}
	return []byte("error " + string(code) + " " + detail)
}

// State encodes an input snapshot: eleven buttons (A B Up Down Left Right
// Plus Minus One Two Home), Nunchuk C and Z, joystick X and Y, then the raw
// accelerometer X Y Z.
func State(st hardware.State) []byte {
	b := st.Buttons
	fields := make([]string, 0, StateFieldCount)
	for _, v := range []bool{
		b.A, b.B, b.Up, b.Down, b.Left, b.Right,
		b.Plus, b.Minus, b.One, b.Two, b.Home,
		st.Nunchuk.C, st.Nunchuk.Z,
	} {
		fields = append(fields, flag(v))
	}
	fields = append(fields,
		formatFloat(st.Nunchuk.JoystickX),
		formatFloat(st.Nunchuk.JoystickY),
		strconv.Itoa(st.RawAccel.X),
		strconv.Itoa(st.RawAccel.Y),
		strconv.Itoa(st.RawAccel.Z),
	)
	return []byte(strings.Join(fields, " "))
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
