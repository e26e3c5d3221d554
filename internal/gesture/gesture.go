// Package gesture defines the pluggable gesture matcher invoked when a
// capture session closes.
//
// No recognition algorithm ships with the bridge. Fixed returns a
// configured id for every capture and is the default; real matchers plug
// in through the Matcher interface.
package gesture

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
)

// NoMatch is returned when no candidate matched.
const NoMatch = -1

// MatcherFixed is the config name of the Fixed matcher.
const MatcherFixed = "fixed"

var (
	// ErrInvalidCandidates is returned for a malformed candidate list.
	ErrInvalidCandidates = errors.New("gesture: invalid candidate list")

	// ErrUnknownMatcher is returned for an unsupported matcher name.
	ErrUnknownMatcher = errors.New("gesture: unknown matcher")
)

// Matcher classifies a captured sample sequence against candidate gestures.
//
// Match returns a non-negative gesture id or a negative value for no match.
// It runs on the protocol dispatch goroutine and may be slow; the client
// waits for the reply.
type Matcher interface {
	Match(samples []device.Sample, candidates Candidates, duration time.Duration) int
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(samples []device.Sample, candidates Candidates, duration time.Duration) int

// Match calls f.
func (f MatcherFunc) Match(samples []device.Sample, candidates Candidates, duration time.Duration) int {
	return f(samples, candidates, duration)
}

// Candidates is an ordered set of gesture ids with no duplicates.
type Candidates []int

// ParseCandidates parses a "|" separated list such as "3|5|7".
// Duplicates keep their first position; the empty string is the empty set.
func ParseCandidates(s string) (Candidates, error) {
	if s == "" {
		return Candidates{}, nil
	}

	parts := strings.Split(s, "|")
	out := make(Candidates, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidCandidates, s, err)
		}
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

// Contains reports whether id is a candidate.
func (c Candidates) Contains(id int) bool {
	return slices.Contains(c, id)
}

// String joins the candidates with "|".
func (c Candidates) String() string {
	parts := make([]string, len(c))
	for i, id := range c {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}

// Result is a matched capture session.
type Result struct {
	Capture    device.Capture
	Candidates Candidates
	Matched    int
}

// IsMatch reports whether the matcher found a gesture.
func (r Result) IsMatch() bool {
	return r.Matched >= 0
}

// Logger is the logging surface of the built-in matchers.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Fixed is a placeholder Matcher that returns Result for every capture.
type Fixed struct {
	Result int
	Logger Logger
}

// Match logs the request and returns f.Result.
func (f Fixed) Match(samples []device.Sample, candidates Candidates, duration time.Duration) int {
	logger := f.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	logger.Debug("matching gesture",
		"samples", len(samples),
		"candidates", candidates.String(),
		"duration", duration,
		"result", f.Result,
	)
	return f.Result
}

// New builds the matcher named in cfg.
func New(cfg config.GestureConfig, logger Logger) (Matcher, error) {
	switch cfg.Matcher {
	case MatcherFixed:
		return Fixed{Result: cfg.FixedResult, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatcher, cfg.Matcher)
	}
}
