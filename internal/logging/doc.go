// Package logging assembles the slog loggers used by booksync.
//
// Console output goes to stderr so the run report on stdout stays clean.
// When a log directory is configured, every run is also written as JSON to
// booksync.log at debug level, which is the place to look when an external
// tool fails. Context helpers tag lines with the run ID, pipeline stage, and
// audio stem carried on the context.
package logging
