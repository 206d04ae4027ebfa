// Package logging provides structured logging configuration for intercept.
//
// This package wraps log/slog to provide consistent logging across all
// intercept components. It supports configurable log levels and output
// formats.
//
// # Usage
//
// Create a logger with desired configuration:
//
//	logger := logging.New(logging.Config{
//	    Level:  slog.LevelDebug,
//	    Format: logging.FormatText,
//	})
//
//	logger.Debug("serving stub", "rule", rule.ID)
//
// # Integration
//
// Components accept a *slog.Logger via a WithLogger option. If no logger is
// provided, logging is off; logging.Nop() returns the same discard logger
// explicitly.
package logging
