// Package domain contains the core entities and error kinds for framedrive.
//
// This package is the innermost layer of the application. It has no
// dependencies on infrastructure concerns (processes, file system, logging)
// and contains only the types the rest of the driver agrees on.
//
// # Entities
//
//   - [Command]: One line of the command file, sent to the backend as a frame
//   - [Message]: One decoded payload received from the backend
//   - [Report]: Summary of a finished driver run
//
// # Errors
//
// Every failure the driver reports is one of [ArgumentArityError],
// [ProtocolFormatError], [ProcessSpawnError] or [StreamIOError], possibly
// joined with others. Use errors.As to inspect them.
package domain
