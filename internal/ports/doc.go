// Package ports defines the interfaces that connect the session orchestrator
// to infrastructure adapters.
//
// # Port Interfaces
//
//   - [CommandSource]: Loads the ordered command list
//   - [ArtifactWriter]: Writes the pre-encoded command artifact
//   - [MessageSink]: Persists decoded messages as they arrive
//   - [Spawner] and [Backend]: Launch and own the backend child process
//   - [ProgressReporter]: Reports [i/N] progress to the operator
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with the file
// system, os/exec and the console.
package ports
