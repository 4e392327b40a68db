package ports

import (
	"context"
	"io"
	"time"
)

// BackendSpec describes how to launch the backend.
type BackendSpec struct {
	// Path is the backend executable.
	Path string

	// Args are passed to the backend verbatim.
	Args []string

	// Env replaces the inherited environment when non-nil.
	Env []string

	// Stdin requests a writable standard input pipe.
	Stdin bool

	// Stderr receives the backend's standard error. Nil discards it.
	Stderr io.Writer
}

// Spawner launches backend processes.
type Spawner interface {
	Spawn(ctx context.Context, spec BackendSpec) (Backend, error)
}

// Backend is a running backend process. The session owns it from Spawn
// until Terminate returns.
type Backend interface {
	// Pid returns the operating system process ID.
	Pid() int

	// Stdout is the backend's standard output, read by the decode loop.
	Stdout() io.Reader

	// Stdin is the backend's standard input, nil unless requested.
	Stdin() io.WriteCloser

	// Exited is closed once the process has exited and been reaped.
	Exited() <-chan struct{}

	// ExitCode returns the exit code once Exited is closed, -1 when the
	// process was killed by a signal or is still running.
	ExitCode() int

	// Terminate asks the process to stop, killing it after grace.
	// It returns once the process has exited. Safe to call repeatedly.
	Terminate(grace time.Duration) error

	// CloseStdout releases the read side of the stdout pipe, unblocking a
	// decode loop stuck on a stream still held open by a grandchild.
	CloseStdout() error
}
