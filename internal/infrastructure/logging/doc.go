// Package logging provides structured logging for the Gray Logic automation service.
//
// It wraps log/slog: JSON output for production, text for development, and
// the default fields service and version on every record.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	registry.SetLogger(logger.Component("entity"))
//
// Never log secrets, tokens or passwords.
package logging
