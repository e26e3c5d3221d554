// Package device provides the capture registry: the fixed set of connected
// motion controllers and their per-device capture buffers.
//
// # Architecture
//
//	┌──────────────┐   AppendSample    ┌──────────────────────────────┐
//	│   Sampler    │──────────────────▶│           Registry           │
//	│ (50 Hz tick) │                   │                              │
//	└──────────────┘                   │  Device 0   Device 1   ...   │
//	                                   │  ┌────────┐ ┌────────┐       │
//	┌──────────────┐  Start/StopCapture│  │ mutex  │ │ mutex  │       │
//	│ UDP server   │──────────────────▶│  │ flag   │ │ flag   │       │
//	│ (g/u/r/e)    │                   │  │ buffer │ │ buffer │       │
//	└──────────────┘                   │  └────────┘ └────────┘       │
//	                                   └──────────────────────────────┘
//
// Device ids are assigned in connection order starting at 0 and never
// change. The wire protocol addresses devices by 1-based index; conversion
// happens in the protocol package.
//
// # Thread Safety
//
// Every device owns a mutex guarding its capture flag, buffer and session
// start time. StopCapture clears the flag and drains the buffer under one
// lock, so a drain sees the buffer either before or after any append.
//
// # Usage
//
//	registry := device.NewRegistry(controllers, device.Options{BufferCapacity: 900})
//
//	_ = registry.StartCapture(0, time.Now())
//	// ... sampler appends ...
//	capture, _ := registry.StopCapture(0, time.Now())
//	fmt.Println(len(capture.Samples), capture.Duration())
package device
