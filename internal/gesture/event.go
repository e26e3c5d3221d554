package gesture

import "time"

// Event is the JSON form of a Result published to live subscribers.
type Event struct {
	DeviceID   int       `json:"device_id"`
	Index      int       `json:"index"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Samples    int       `json:"samples"`
	Candidates []int     `json:"candidates"`
	Matched    int       `json:"matched"`
}

// Event summarizes r without the raw samples.
func (r Result) Event() Event {
	candidates := []int(r.Candidates)
	if candidates == nil {
		candidates = []int{}
	}
	return Event{
		DeviceID:   r.Capture.DeviceID,
		Index:      r.Capture.DeviceID + 1,
		StartedAt:  r.Capture.StartedAt,
		DurationMS: r.Capture.Duration().Milliseconds(),
		Samples:    len(r.Capture.Samples),
		Candidates: candidates,
		Matched:    r.Matched,
	}
}
