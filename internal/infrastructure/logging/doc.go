// Package logging provides structured logging for heatpump-sync.
//
// It wraps log/slog so every record carries the service name and build
// version. JSON output is the default; text output is available for
// development.
//
// Configuration in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Never log the myUplink bearer token or the MQTT password.
package logging
