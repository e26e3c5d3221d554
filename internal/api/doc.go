// Package api provides the HTTP status API and WebSocket event stream.
//
// It replaces a desktop status window: device list and capture state,
// request counters, recent notifications, the runtime exit policy toggle,
// manual rumble and speaker tests, and the capture archive.
//
// Routes (all under /api/v1):
//
//	GET  /health                         liveness and version
//	GET  /status                         bridge-wide counters
//	GET  /devices                        registered controllers
//	POST /devices/{index}/test-rumble    200 ms rumble pulse
//	POST /devices/{index}/test-speaker   test tone
//	GET  /notifications                  recent notifications
//	PUT  /settings/respond-to-exit       {"enabled": true|false}
//	GET  /captures                       archived captures (?device=&limit=)
//	GET  /captures/{id}/samples          decoded samples of one capture
//	GET  /ws                             WebSocket event stream
//
// Device indexes in paths are 1-based, as on the UDP wire.
//
// WebSocket clients send {"type":"subscribe","payload":{"channels":[...]}}
// with "notification" and/or "capture.completed" and then receive event
// messages on those channels.
//
// Lifecycle:
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api
