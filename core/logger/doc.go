// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production) and an optional rotating log file.
//
// # Run Correlation
//
// Every sync run gets a run identifier. The WithRunID helper attaches it to
// the logger handed to the engine, so that all log lines of a single sync can
// be correlated, including lines written to the log file.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json or console on stderr
//   - File: optional JSON log file rotated by lumberjack
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Sync started")
//
//	l := logger.WithRunID(log, logger.NewRunID())
//	l.Error("Create failed", zap.Error(err))
package logger
