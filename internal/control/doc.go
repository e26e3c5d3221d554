// Package control implements the manual hardware checks: a short rumble
// pulse and a test tone on one controller.
//
// The same Tester backs the HTTP endpoints and the MQTT command topics.
// Each check pushes a status notification ("Testing rumble 0") using the
// 0-based device id.
package control
