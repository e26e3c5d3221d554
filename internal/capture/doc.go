// Package capture archives completed capture sessions.
//
// Each session stopped through the protocol server becomes one Record in
// the capture_sessions table. Samples are stored as a blob:
//
//	[x y z] triples -> deterministic CBOR -> zstd | lz4 | none -> BLAKE3
//
// The checksum covers the stored bytes and is verified on every read.
// Compression that does not shrink the payload is skipped and the blob is
// tagged "none".
//
// Recorder plugs into the server as its capture recorder and also emits a
// telemetry point per capture when InfluxDB is configured.
package capture
