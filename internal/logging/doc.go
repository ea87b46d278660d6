// Package logging configures the process-wide slog logger. Logs are JSON
// lines in a size-rotated file, optionally mirrored to stderr, and can be
// read back with Viewer.
package logging
