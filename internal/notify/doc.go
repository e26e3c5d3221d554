// Package notify delivers human-readable status notifications ("User
// connected!", "User disconnected.") from the protocol server to whatever
// surfaces are attached: the log, the in-memory history shown by the status
// API, MQTT and WebSocket clients.
//
// Push is fire-and-forget. Messages are handed over a buffered channel to a
// single dispatcher goroutine, so consumers see them in push order and a
// slow consumer never blocks the UDP dispatch loop. When the buffer is full
// the message is dropped and counted.
package notify
