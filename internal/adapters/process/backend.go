package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/ports"
	"github.com/bft-labs/framedrive/pkg/log"
)

// waitDelay bounds how long reaping waits for stream copies after exit.
const waitDelay = 2 * time.Second

// ExecSpawner implements ports.Spawner with os/exec.
type ExecSpawner struct {
	logger log.Logger
}

// Compile-time verification that ExecSpawner implements ports.Spawner.
var _ ports.Spawner = (*ExecSpawner)(nil)

// NewExecSpawner creates a spawner that logs process lifecycle events.
func NewExecSpawner(logger log.Logger) *ExecSpawner {
	return &ExecSpawner{logger: logger}
}

// Spawn starts the backend described by spec. The process is not bound to
// ctx; its lifetime ends with Terminate.
func (s *ExecSpawner) Spawn(ctx context.Context, spec ports.BackendSpec) (ports.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &domain.ProcessSpawnError{Path: spec.Path, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	//nolint:gosec // G204: the backend path is operator supplied by design
	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Stdout = stdoutW
	cmd.Stderr = spec.Stderr
	cmd.Env = spec.Env
	cmd.WaitDelay = waitDelay

	var stdin io.WriteCloser
	if spec.Stdin {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			stdout.Close()
			stdoutW.Close()
			return nil, &domain.ProcessSpawnError{Path: spec.Path, Err: fmt.Errorf("stdin pipe: %w", err)}
		}
	}

	if err := cmd.Start(); err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, &domain.ProcessSpawnError{Path: spec.Path, Err: err}
	}
	// the child holds its own copy of the write end
	stdoutW.Close()

	b := &Backend{
		cmd:    cmd,
		stdout: stdout,
		stdin:  stdin,
		done:   make(chan struct{}),
		logger: s.logger.With(log.Int("pid", cmd.Process.Pid)),
	}
	go b.reap()

	b.logger.Info("backend started", log.String("path", spec.Path), log.Strings("args", spec.Args))
	return b, nil
}

// Backend is a running child process. It implements ports.Backend.
type Backend struct {
	cmd    *exec.Cmd
	stdout *os.File
	stdin  io.WriteCloser
	logger log.Logger

	done    chan struct{}
	waitErr error

	termOnce sync.Once
	termErr  error
}

var _ ports.Backend = (*Backend)(nil)

func (b *Backend) reap() {
	b.waitErr = b.cmd.Wait()
	close(b.done)

	var exitErr *exec.ExitError
	switch {
	case b.waitErr == nil:
		b.logger.Debug("backend exited", log.Int("exit_code", 0))
	case errors.As(b.waitErr, &exitErr):
		b.logger.Debug("backend exited", log.Int("exit_code", exitErr.ExitCode()), log.String("state", exitErr.String()))
	default:
		b.logger.Warn("backend wait failed", log.Err(b.waitErr))
	}
}

func (b *Backend) Pid() int                { return b.cmd.Process.Pid }
func (b *Backend) Stdout() io.Reader       { return b.stdout }
func (b *Backend) Stdin() io.WriteCloser   { return b.stdin }
func (b *Backend) Exited() <-chan struct{} { return b.done }

// ExitCode returns the exit code once the process has been reaped.
func (b *Backend) ExitCode() int {
	select {
	case <-b.done:
		return b.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}

// Terminate sends SIGTERM and waits up to grace for the process to exit
// before killing it. Later calls return the first call's result.
func (b *Backend) Terminate(grace time.Duration) error {
	b.termOnce.Do(func() {
		b.termErr = b.terminate(grace)
	})
	return b.termErr
}

func (b *Backend) terminate(grace time.Duration) error {
	select {
	case <-b.done:
		return nil
	default:
	}

	b.logger.Debug("terminating backend", log.Duration("grace", grace))
	if err := b.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-b.done
			return nil
		}
		// no SIGTERM on this platform
		return b.kill()
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-b.done:
		return nil
	case <-timer.C:
		b.logger.Warn("backend ignored SIGTERM, killing", log.Duration("grace", grace))
		return b.kill()
	}
}

func (b *Backend) kill() error {
	if err := b.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill backend (pid %d): %w", b.cmd.Process.Pid, err)
	}
	<-b.done
	return nil
}

// CloseStdout closes the read end of the stdout pipe.
func (b *Backend) CloseStdout() error {
	if err := b.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
