package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by this package.
const (
	MeasurementCapture = "capture"
	MeasurementSampler = "sampler"
)

// WriteCaptureMetric records one completed capture session.
//
// The device id is the 0-based registry id. matched is the candidate id the
// matcher returned, or -1 for no match. The write is non-blocking; points are
// batched and sent asynchronously.
//
//	client.WriteCaptureMetric(0, 42, 840*time.Millisecond, 3)
func (c *Client) WriteCaptureMetric(deviceID int, samples int, duration time.Duration, matched int) {
	c.write(write.NewPoint(
		MeasurementCapture,
		map[string]string{
			"device_id": strconv.Itoa(deviceID),
			"matched":   strconv.FormatBool(matched >= 0),
		},
		map[string]any{
			"samples":     samples,
			"duration_ms": duration.Milliseconds(),
			"gesture":     matched,
		},
		time.Now(),
	))
}

// WriteSamplerStats records the sampler's cumulative counters.
func (c *Client) WriteSamplerStats(ticks, samples, readErrors uint64) {
	c.write(write.NewPoint(
		MeasurementSampler,
		nil,
		map[string]any{
			"ticks":       ticks,
			"samples":     samples,
			"read_errors": readErrors,
		},
		time.Now(),
	))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Tags are indexed and should be low cardinality; fields carry the data.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	c.write(write.NewPoint(measurement, tags, fields, timestamp))
}
