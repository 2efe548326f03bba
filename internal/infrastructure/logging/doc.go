// Package logging provides structured logging for the inventory core.
//
// It wraps log/slog so every component logs with the same handler, level
// filter and default fields (service, version).
//
// Configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Component("accesspoint").Info("item identified", "scan_type", "code")
//
// Never log image payloads, tokens or API keys.
package logging
