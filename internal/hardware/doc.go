// Package hardware defines the motion controller contract the bridge
// consumes, plus the simulated driver used when no real controller stack is
// configured.
//
// A Driver discovers controllers; a Controller exposes LEDs, rumble, a tone
// generator and a combined input State (buttons, Nunchuk, accelerometer).
// Pairing and discovery belong to the driver and are outside this package.
//
// Lifecycle:
//
//	controllers, err := hardware.ConnectAll(ctx, driver, hardware.PlayerLED(1), log)
//	...
//	defer hardware.Shutdown(controllers, log) // LEDs off, then disconnect
package hardware
