// Package logging wires log/slog with easel's console and JSON output formats
// and the standardized structured field names used across the pipeline.
package logging
