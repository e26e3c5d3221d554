package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/motion-bridge/internal/gesture"
)

// MaxDatagramSize is the largest request the server reads.
const MaxDatagramSize = 1024

// ErrInvalidCommand is returned for unknown words and malformed arguments.
var ErrInvalidCommand = errors.New("protocol: invalid command")

// Kind identifies a request.
type Kind int

// Request kinds.
const (
	Unknown Kind = iota
	Handshake
	CaptureToggle
	StateQuery
	RumbleSet
	Disconnect
)

var kindWords = map[string]Kind{
	"shake": Handshake,
	"g":     CaptureToggle,
	"u":     StateQuery,
	"r":     RumbleSet,
	"e":     Disconnect,
}

// String returns the wire word of the kind.
func (k Kind) String() string {
	switch k {
	case Handshake:
		return "shake"
	case CaptureToggle:
		return "g"
	case StateQuery:
		return "u"
	case RumbleSet:
		return "r"
	case Disconnect:
		return "e"
	default:
		return "unknown"
	}
}

// Command is a parsed request.
type Command struct {
	Kind Kind

	// Raw is the datagram exactly as received.
	Raw []byte

	// Word is the first token; Args are the rest.
	Word string
	Args []string
}

// Parse decodes one datagram. Unknown words return a Command of Kind
// Unknown together with ErrInvalidCommand.
func Parse(packet []byte) (Command, error) {
	cmd := Command{Raw: packet}

	text := strings.TrimRight(string(packet), "\r\n")
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return cmd, fmt.Errorf("%w: empty request", ErrInvalidCommand)
	}

	cmd.Word = fields[0]
	cmd.Args = fields[1:]

	kind, ok := kindWords[cmd.Word]
	if !ok {
		return cmd, fmt.Errorf("%w: unknown word %q", ErrInvalidCommand, cmd.Word)
	}
	cmd.Kind = kind
	return cmd, nil
}

// arg returns argument i or ErrInvalidCommand if it is missing.
func (c Command) arg(i int, name string) (string, error) {
	if i >= len(c.Args) {
		return "", fmt.Errorf("%w: %s: missing %s", ErrInvalidCommand, c.Word, name)
	}
	return c.Args[i], nil
}

// IndexArg returns the device index argument as sent.
func (c Command) IndexArg() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// DeviceIndex returns the 0-based device id addressed by the 1-based
// index argument. Range checking is left to the registry.
func (c Command) DeviceIndex() (int, error) {
	s, err := c.arg(0, "device index")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: device index %q", ErrInvalidCommand, c.Word, s)
	}
	return n - 1, nil
}

// Toggle returns the on/off argument. Only "1" and "0" are accepted.
func (c Command) Toggle() (bool, error) {
	s, err := c.arg(1, "toggle")
	if err != nil {
		return false, err
	}
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s: toggle %q is not 1 or 0", ErrInvalidCommand, c.Word, s)
	}
}

// Candidates returns the candidate gesture list of a capture stop. A missing
// list is the empty set.
func (c Command) Candidates() (gesture.Candidates, error) {
	if len(c.Args) < 3 {
		return gesture.Candidates{}, nil
	}
	cands, err := gesture.ParseCandidates(c.Args[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cands, nil
}

// Echo returns a copy of the raw request.
func (c Command) Echo() []byte {
	return bytes.Clone(c.Raw)
}
