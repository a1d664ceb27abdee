// Package logging provides structured logging for MusicToLight Core.
//
// It wraps log/slog with service-wide default fields and config-driven
// level, format, and output selection. Components receive child loggers
// via With("component", ...) so every line carries its origin.
package logging
