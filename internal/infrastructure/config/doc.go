// Package config loads the bridge configuration: built-in defaults, then a
// YAML file, then MOTIONBRIDGE_* environment variables, then validation.
//
// The configuration is an explicit value handed to each component at
// construction time. Nothing reads it through package-level state, and
// nothing is written back to disk: runtime changes (such as toggling the
// exit policy from the status API) last only for the life of the process.
//
// Keep the MQTT password and the InfluxDB token out of the file; set
// MOTIONBRIDGE_MQTT_PASSWORD and MOTIONBRIDGE_INFLUXDB_TOKEN instead.
//
//	cfg, err := config.LoadOrDefault("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
