package gesture

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/motion-bridge/internal/device"
	"github.com/nerrad567/motion-bridge/internal/infrastructure/config"
)

type debugRecorder struct {
	msgs []string
}

func (d *debugRecorder) Debug(msg string, _ ...any) {
	d.msgs = append(d.msgs, msg)
}

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Candidates
		wantErr bool
	}{
		{name: "three ids", input: "3|5|7", want: Candidates{3, 5, 7}},
		{name: "single id", input: "12", want: Candidates{12}},
		{name: "empty", input: "", want: Candidates{}},
		{name: "duplicates keep first position", input: "5|3|5|7|3", want: Candidates{5, 3, 7}},
		{name: "order preserved", input: "9|1", want: Candidates{9, 1}},
		{name: "not a number", input: "3|x", wantErr: true},
		{name: "trailing separator", input: "3|", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCandidates(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCandidates) {
					t.Errorf("error = %v, want ErrInvalidCandidates", err)
				}
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("ParseCandidates(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCandidates_String(t *testing.T) {
	if got := (Candidates{3, 5, 7}).String(); got != "3|5|7" {
		t.Errorf("String() = %q, want 3|5|7", got)
	}
	if got := (Candidates{}).String(); got != "" {
		t.Errorf("String() of empty = %q, want empty", got)
	}
	if !(Candidates{3, 5}).Contains(5) || (Candidates{3, 5}).Contains(4) {
		t.Error("Contains() wrong")
	}
}

func TestFixed_Match(t *testing.T) {
	rec := &debugRecorder{}
	m := Fixed{Result: 5, Logger: rec}

	got := m.Match([]device.Sample{{X: 1}}, Candidates{3, 5}, time.Second)
	if got != 5 {
		t.Errorf("Match() = %d, want 5", got)
	}
	if len(rec.msgs) != 1 {
		t.Errorf("debug messages = %d, want 1", len(rec.msgs))
	}

	// Nil logger is allowed.
	if got := (Fixed{Result: NoMatch}).Match(nil, nil, 0); got != NoMatch {
		t.Errorf("Match() = %d, want NoMatch", got)
	}
}

func TestMatcherFunc(t *testing.T) {
	var gotSamples int
	var gotCandidates Candidates
	m := MatcherFunc(func(samples []device.Sample, candidates Candidates, _ time.Duration) int {
		gotSamples = len(samples)
		gotCandidates = candidates
		return candidates[0]
	})

	if got := m.Match(make([]device.Sample, 3), Candidates{7}, 0); got != 7 {
		t.Errorf("Match() = %d, want 7", got)
	}
	if gotSamples != 3 || !slices.Equal(gotCandidates, Candidates{7}) {
		t.Errorf("matcher saw %d samples and %v", gotSamples, gotCandidates)
	}
}

func TestResult_IsMatch(t *testing.T) {
	if (Result{Matched: NoMatch}).IsMatch() {
		t.Error("IsMatch() = true for NoMatch")
	}
	if !(Result{Matched: 0}).IsMatch() {
		t.Error("IsMatch() = false for gesture 0")
	}
}

func TestNew(t *testing.T) {
	m, err := New(config.GestureConfig{Matcher: "fixed", FixedResult: 2}, nil)
	if err != nil {
		t.Fatalf("New(fixed) error = %v", err)
	}
	if got := m.Match(nil, nil, 0); got != 2 {
		t.Errorf("Match() = %d, want 2", got)
	}

	if _, err := New(config.GestureConfig{Matcher: "dtw"}, nil); !errors.Is(err, ErrUnknownMatcher) {
		t.Errorf("New(dtw) error = %v, want ErrUnknownMatcher", err)
	}
}

func TestResultEvent(t *testing.T) {
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	r := Result{
		Capture: device.Capture{
			DeviceID:  1,
			StartedAt: start,
			EndedAt:   start.Add(900 * time.Millisecond),
			Samples:   make([]device.Sample, 45),
		},
		Matched: NoMatch,
	}

	ev := r.Event()
	if ev.DeviceID != 1 || ev.Index != 2 {
		t.Errorf("DeviceID/Index = %d/%d, want 1/2", ev.DeviceID, ev.Index)
	}
	if ev.DurationMS != 900 || ev.Samples != 45 || ev.Matched != NoMatch {
		t.Errorf("Event() = %+v", ev)
	}
	if ev.Candidates == nil {
		t.Error("Candidates should be an empty slice, not nil")
	}
}
