// Package influxdb writes capture telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring.
//
// Each completed capture session becomes one point in the "capture"
// measurement (tags device_id and matched; fields samples, duration_ms and
// gesture). The bridge can also write periodic sampler counters.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteCaptureMetric(0, 42, 840*time.Millisecond, 3)
//
// Writes are batched according to batch_size and flush_interval. Write
// errors are delivered asynchronously to the SetOnError callback.
//
// A nil *Client is safe to call: it reports not connected and drops writes.
package influxdb
