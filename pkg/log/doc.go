// Package log is the structured logging abstraction used across framedrive.
//
// Components depend on the [Logger] interface only. The driver wires the
// zerolog-backed adapter writing human-readable lines to stderr, so logs never
// interleave with the progress lines printed on stdout:
//
//	logger, err := log.NewConsoleLogger(os.Stderr, "debug")
//
// Tests use the no-op logger:
//
//	logger := log.NewNoopLogger()
//
// [Logger.With] derives a child logger carrying fixed fields, which is how a
// session tags every line with its session ID.
package log
