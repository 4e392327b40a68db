package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/frame"
	"github.com/bft-labs/framedrive/internal/ports"
	"github.com/bft-labs/framedrive/pkg/log"
)

// SessionConfig contains the settings of a single driver run.
type SessionConfig struct {
	BackendPath string
	Delivery    domain.Delivery
	Progress    domain.ProgressMode

	// Pace is the heartbeat interval between progress lines.
	Pace time.Duration
	// Drain is how long to wait for the backend to finish writing after
	// the progress loop, before terminating it.
	Drain time.Duration
	// KillGrace is how long a terminated backend gets before it is killed.
	KillGrace time.Duration
	// Timeout bounds the whole run; zero means no limit.
	Timeout time.Duration

	MaxMessageSize int

	// Stderr receives the backend's standard error.
	Stderr io.Writer
	// Env replaces the backend's inherited environment when non-nil.
	Env []string
}

// Dependencies are the ports a session drives.
type Dependencies struct {
	Commands ports.CommandSource
	// Artifact is required for domain.DeliveryFile only.
	Artifact ports.ArtifactWriter
	Spawner  ports.Spawner
	Sink     ports.MessageSink
	Progress ports.ProgressReporter
	Logger   log.Logger
	Emitter  EventEmitter
}

// Session owns one run: the backend process, the decode goroutine and the
// message sink. A Session is single-use.
type Session struct {
	id     string
	cfg    SessionConfig
	deps   Dependencies
	logger log.Logger

	lifecycle *Lifecycle

	received atomic.Int64
	arrived  chan struct{}
	stopping atomic.Bool

	mu       sync.Mutex
	messages []domain.Message
}

// NewSession creates a session with a fresh ULID.
func NewSession(cfg SessionConfig, deps Dependencies) *Session {
	id := ulid.Make().String()
	if deps.Logger == nil {
		deps.Logger = log.NewNoopLogger()
	}
	logger := deps.Logger.With(log.String("session", id))
	return &Session{
		id:        id,
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		lifecycle: NewLifecycle(logger, deps.Emitter),
		arrived:   make(chan struct{}, 1),
	}
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// State returns the session's lifecycle state.
func (s *Session) State() State { return s.lifecycle.State() }

// Messages returns the messages decoded so far, in arrival order.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Run loads the commands, launches the backend, decodes its output into the
// sink and reports progress until every command is accounted for.
//
// The backend is terminated on every return path and the decode goroutine
// is joined before Run returns, so the output is complete when Run reports.
// Decode failures are returned, joined with any other failure.
func (s *Session) Run(ctx context.Context) (report domain.Report, err error) {
	if err := s.lifecycle.Start("loading commands"); err != nil {
		return domain.Report{}, fmt.Errorf("session %s: %w", s.id, err)
	}

	start := time.Now()
	report = domain.Report{SessionID: s.id, Delivery: s.cfg.Delivery}
	defer func() {
		report.Messages = int(s.received.Load())
		report.Duration = time.Since(start)
		if cerr := s.deps.Sink.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			s.transition(StateFailed, err.Error())
			return
		}
		s.transition(StateTerminated, "all commands accounted for")
	}()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	cmds, err := s.deps.Commands.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load commands: %w", err)
	}
	report.Commands = len(cmds)
	s.logger.Info("commands loaded", log.Int("count", len(cmds)))

	spec := ports.BackendSpec{
		Path:   s.cfg.BackendPath,
		Env:    s.cfg.Env,
		Stderr: s.cfg.Stderr,
	}
	switch s.cfg.Delivery {
	case domain.DeliveryStdin:
		spec.Stdin = true
	default:
		path, err := s.deps.Artifact.WriteArtifact(ctx, cmds)
		if err != nil {
			return report, fmt.Errorf("encode commands: %w", err)
		}
		report.EncodedPath = path
		spec.Args = []string{path}
		s.logger.Debug("encoded commands written", log.String("path", path))
	}

	backend, err := s.deps.Spawner.Spawn(ctx, spec)
	if err != nil {
		return report, err
	}
	s.transition(StateRunning, "backend started")

	g, gctx := errgroup.WithContext(ctx)
	decodeDone := make(chan struct{})
	g.Go(func() error {
		defer close(decodeDone)
		return s.decode(backend)
	})
	if spec.Stdin {
		g.Go(func() error {
			return s.deliver(gctx, backend, cmds)
		})
	}

	defer func() {
		if serr := s.shutdown(ctx, backend, g, decodeDone); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	return report, s.runProgress(ctx, gctx, len(cmds), decodeDone)
}

// decode runs the decode loop against the backend's stdout. It owns the
// sink's write side for the whole run.
func (s *Session) decode(backend ports.Backend) error {
	dec := frame.NewDecoder(backend.Stdout(), frame.WithMaxMessageSize(s.cfg.MaxMessageSize))
	for seq := 1; ; seq++ {
		payload, err := dec.Next()
		if errors.Is(err, io.EOF) {
			s.logger.Debug("backend output closed", log.Int("messages", seq-1))
			return nil
		}
		if err != nil {
			if s.stopping.Load() && (errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed)) {
				s.logger.Warn("backend output cut off during shutdown", log.Err(err))
				return nil
			}
			s.logger.Error("decode failed", log.Err(err))
			return fmt.Errorf("decode backend output: %w", err)
		}

		msg := domain.Message{Seq: seq, Payload: payload, ReceivedAt: time.Now()}
		if err := s.deps.Sink.Append(msg); err != nil {
			return fmt.Errorf("persist message %d: %w", seq, err)
		}
		s.mu.Lock()
		s.messages = append(s.messages, msg)
		s.mu.Unlock()
		s.received.Add(1)
		s.logger.Debug("message received", log.Int("seq", seq), log.Int("bytes", len(payload)))

		select {
		case s.arrived <- struct{}{}:
		default:
		}
	}
}

// deliver streams every command to the backend's stdin, then closes it.
// A backend that exits without reading all of its input is not a failure;
// its output decides the outcome.
func (s *Session) deliver(ctx context.Context, backend ports.Backend, cmds []domain.Command) error {
	stdin := backend.Stdin()
	w := frame.NewWriter(stdin)
	for _, cmd := range cmds {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := w.WriteFrame(cmd.Text); err != nil {
			if s.stopping.Load() {
				return nil
			}
			if s.inputAbandoned(backend, err) {
				s.logger.Warn("backend exited before reading all commands",
					log.Int("delivered", w.Frames()), log.Int("commands", len(cmds)), log.Err(err))
				return nil
			}
			return fmt.Errorf("deliver command %d (line %d): %w", cmd.Index, cmd.Line, err)
		}
	}
	s.logger.Debug("commands delivered", log.Int("frames", w.Frames()), log.Int64("bytes", w.Bytes()))
	if err := stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) && !s.stopping.Load() && !s.inputAbandoned(backend, err) {
		return &domain.StreamIOError{Op: "close backend stdin", Err: err}
	}
	return nil
}

// inputAbandoned reports whether err is a closed or broken stdin pipe left
// behind by a backend that has exited. EPIPE can precede reaping, so the
// exit is awaited for up to KillGrace.
func (s *Session) inputAbandoned(backend ports.Backend, err error) bool {
	if !errors.Is(err, os.ErrClosed) && !errors.Is(err, syscall.EPIPE) {
		return false
	}
	timer := time.NewTimer(s.cfg.KillGrace)
	defer timer.Stop()
	select {
	case <-backend.Exited():
		return true
	case <-timer.C:
		return false
	}
}

// runProgress drives the progress lines. ctx is the caller's context and
// gctx the errgroup's; when gctx ends because a worker failed the loop stops
// quietly and the worker's error is reported by shutdown.
func (s *Session) runProgress(ctx, gctx context.Context, total int, decodeDone <-chan struct{}) error {
	if s.cfg.Progress == domain.ProgressMessages {
		return s.messageProgress(ctx, gctx, total, decodeDone)
	}
	return s.heartbeat(ctx, gctx, total)
}

// heartbeat prints one line per command at a fixed pace. It does not track
// message arrival.
func (s *Session) heartbeat(ctx, gctx context.Context, total int) error {
	ticker := time.NewTicker(s.cfg.Pace)
	defer ticker.Stop()

	for i := 1; i <= total; i++ {
		select {
		case <-gctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := s.deps.Progress.Progress(i, total); err != nil {
			return err
		}
	}
	return nil
}

// messageProgress prints one line per decoded message, counted against the
// number of commands. It ends when every command has a message or the
// decode loop has finished.
func (s *Session) messageProgress(ctx, gctx context.Context, total int, decodeDone <-chan struct{}) error {
	printed := 0
	catchUp := func() error {
		n := min(int(s.received.Load()), total)
		for printed < n {
			printed++
			if err := s.deps.Progress.Progress(printed, total); err != nil {
				return err
			}
		}
		return nil
	}

	for printed < total {
		select {
		case <-gctx.Done():
			return ctx.Err()
		case <-decodeDone:
			return catchUp()
		case <-s.arrived:
		}
		if err := catchUp(); err != nil {
			return err
		}
	}
	return nil
}

// shutdown drains, terminates the backend and joins the workers. The drain
// wait is skipped once ctx is done.
func (s *Session) shutdown(ctx context.Context, backend ports.Backend, g *errgroup.Group, decodeDone <-chan struct{}) error {
	s.transition(StateDraining, "progress loop finished")

	if s.cfg.Drain > 0 {
		timer := time.NewTimer(s.cfg.Drain)
		select {
		case <-decodeDone:
		case <-ctx.Done():
		case <-timer.C:
			s.logger.Debug("drain period elapsed", log.Duration("drain", s.cfg.Drain))
		}
		timer.Stop()
	}

	s.stopping.Store(true)
	var errs []error
	if err := backend.Terminate(s.cfg.KillGrace); err != nil {
		errs = append(errs, err)
	}
	s.logger.Info("backend stopped", log.Int("exit_code", backend.ExitCode()))

	// a grandchild may still hold the write end of stdout
	timer := time.NewTimer(s.cfg.KillGrace)
	select {
	case <-decodeDone:
	case <-timer.C:
		s.logger.Warn("backend output still open after exit, closing it")
		if err := backend.CloseStdout(); err != nil {
			errs = append(errs, err)
		}
	}
	timer.Stop()

	if err := g.Wait(); err != nil {
		errs = append(errs, err)
	}
	if err := backend.CloseStdout(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Session) transition(state State, reason string) {
	if err := s.lifecycle.TransitionTo(state, reason); err != nil {
		s.logger.Debug("skipped state transition", log.Err(err))
	}
}
