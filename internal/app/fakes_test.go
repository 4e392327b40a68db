package app

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/ports"
)

type staticCommands struct {
	cmds []domain.Command
	err  error
}

func (s staticCommands) Load(ctx context.Context) ([]domain.Command, error) {
	return s.cmds, s.err
}

func commands(texts ...string) staticCommands {
	var cmds []domain.Command
	for i, t := range texts {
		cmds = append(cmds, domain.Command{Index: i + 1, Line: i + 1, Text: t})
	}
	return staticCommands{cmds: cmds}
}

type memArtifact struct {
	written []domain.Command
}

func (m *memArtifact) WriteArtifact(ctx context.Context, cmds []domain.Command) (string, error) {
	m.written = cmds
	return "mem.encoded", nil
}

type memSink struct {
	mu     sync.Mutex
	msgs   []string
	closed bool
	err    error
}

func (m *memSink) Append(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msg.Payload)
	return nil
}

func (m *memSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memSink) Payloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.msgs...)
}

type progressRecorder struct {
	mu    sync.Mutex
	lines [][2]int
}

func (p *progressRecorder) Progress(done, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines = append(p.lines, [2]int{done, total})
	return nil
}

func (p *progressRecorder) Lines() [][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][2]int(nil), p.lines...)
}

// script plays the backend. stdin is nil unless stdin delivery was
// requested. Returning closes stdout, as if the backend exited, unless hold
// is set on the spawner.
type script func(stdin io.Reader, stdout io.Writer, spec ports.BackendSpec)

type memSpawner struct {
	script  script
	hold    bool
	err     error
	spec    ports.BackendSpec
	backend *memBackend
	spawns  atomic.Int32
}

func (s *memSpawner) Spawn(ctx context.Context, spec ports.BackendSpec) (ports.Backend, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.spawns.Add(1)
	s.spec = spec
	r, w := io.Pipe()
	b := &memBackend{stdoutR: r, stdoutW: w, done: make(chan struct{})}
	if spec.Stdin {
		b.stdinR, b.stdinW = io.Pipe()
	}
	s.backend = b
	var stdin io.Reader
	if b.stdinR != nil {
		stdin = b.stdinR
	}
	go func() {
		if s.script != nil {
			s.script(stdin, w, spec)
		}
		if !s.hold {
			b.exit()
		}
	}()
	return b, nil
}

type memBackend struct {
	stdoutR    *io.PipeReader
	stdoutW    *io.PipeWriter
	stdinR     *io.PipeReader
	stdinW     *io.PipeWriter
	done       chan struct{}
	once       sync.Once
	terminated atomic.Bool
}

func (b *memBackend) exit() {
	b.once.Do(func() {
		b.stdoutW.Close()
		if b.stdinR != nil {
			b.stdinR.CloseWithError(syscall.EPIPE)
		}
		close(b.done)
	})
}

func (b *memBackend) Pid() int                { return 4242 }
func (b *memBackend) Stdout() io.Reader       { return b.stdoutR }
func (b *memBackend) Exited() <-chan struct{} { return b.done }
func (b *memBackend) ExitCode() int           { return 0 }

func (b *memBackend) Stdin() io.WriteCloser {
	if b.stdinW == nil {
		return nil
	}
	return b.stdinW
}

func (b *memBackend) Terminate(grace time.Duration) error {
	b.terminated.Store(true)
	b.exit()
	return nil
}

func (b *memBackend) CloseStdout() error {
	return b.stdoutR.Close()
}

func (b *memBackend) Running() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}
