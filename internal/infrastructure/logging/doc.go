// Package logging provides structured logging for Motion Bridge.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the level and format chosen in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// Components usually take a narrower view of the logger:
//
//	logger := logging.New(cfg.Logging, version)
//	srv := server.New(server.Options{Logger: logger.Component("server")})
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
