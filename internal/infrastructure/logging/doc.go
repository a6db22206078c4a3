// Package logging provides structured logging for the simulator.
//
// It wraps log/slog so that every component, from the bus adapter down to a
// single blind agent, logs with the same default fields.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("device plugged", "device_id", id, "kind", "led")
//
// Agents log per-message outcomes at debug, discarded mode-mismatched
// updates at info and rejected values at warn.
package logging
