// Package logger provides structured logging for filekv.
//
// It wraps log/slog:
//
//   - logger.go: configuration, dynamic level, global default
//   - context.go: context-aware logging with request IDs
//   - redact.go: payload and secret redaction
//
// Stored values never reach the log output: attributes named like a
// payload are replaced by their size.
package logger
