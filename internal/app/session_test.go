package app

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/frame"
	"github.com/bft-labs/framedrive/internal/ports"
)

type harness struct {
	cfg      SessionConfig
	source   staticCommands
	artifact *memArtifact
	spawner  *memSpawner
	sink     *memSink
	progress *progressRecorder
	emitter  *mockEmitter
}

func newHarness(source staticCommands, sc script) *harness {
	return &harness{
		cfg: SessionConfig{
			BackendPath: "backend",
			Delivery:    domain.DeliveryFile,
			Progress:    domain.ProgressHeartbeat,
			Pace:        5 * time.Millisecond,
			Drain:       time.Second,
			KillGrace:   time.Second,
		},
		source:   source,
		artifact: &memArtifact{},
		spawner:  &memSpawner{script: sc},
		sink:     &memSink{},
		progress: &progressRecorder{},
		emitter:  &mockEmitter{},
	}
}

func (h *harness) session() *Session {
	return NewSession(h.cfg, Dependencies{
		Commands: h.source,
		Artifact: h.artifact,
		Spawner:  h.spawner,
		Sink:     h.sink,
		Progress: h.progress,
		Emitter:  h.emitter,
	})
}

// replyPerCommand answers each command with "len:<n>", reading commands
// back from the artifact the harness recorded.
func replyPerCommand(h *harness) script {
	return func(stdin io.Reader, stdout io.Writer, spec ports.BackendSpec) {
		w := frame.NewWriter(stdout)
		if stdin != nil {
			for msg, err := range frame.Messages(stdin) {
				if err != nil {
					return
				}
				_ = w.WriteFrame("len:" + strconv.Itoa(len(msg)))
			}
			return
		}
		for _, c := range h.artifact.written {
			_ = w.WriteFrame("len:" + strconv.Itoa(len(c.Text)))
		}
	}
}

func TestSession_Run_Heartbeat(t *testing.T) {
	h := newHarness(commands("ping", "status"), nil)
	h.spawner.script = replyPerCommand(h)
	s := h.session()

	report, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"len:4", "len:6"}, h.sink.Payloads())
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, h.progress.Lines())
	assert.Equal(t, []string{"mem.encoded"}, h.spawner.spec.Args)
	assert.False(t, h.spawner.spec.Stdin)
	assert.True(t, h.sink.closed)

	assert.Equal(t, s.ID(), report.SessionID)
	assert.Equal(t, 2, report.Commands)
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, "mem.encoded", report.EncodedPath)

	assert.Equal(t, StateTerminated, s.State())
	assert.Equal(t, []State{StateSpawning, StateRunning, StateDraining, StateTerminated}, h.emitter.States())

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, 1, msgs[0].Seq)
	assert.Equal(t, "len:6", msgs[1].Payload)
}

func TestSession_Run_TerminatesHeldBackend(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	h.spawner.script = replyPerCommand(h)
	h.spawner.hold = true
	h.cfg.Drain = 20 * time.Millisecond

	_, err := h.session().Run(context.Background())
	require.NoError(t, err)

	assert.True(t, h.spawner.backend.terminated.Load())
	assert.False(t, h.spawner.backend.Running())
	assert.Equal(t, []string{"len:4"}, h.sink.Payloads())
}

func TestSession_Run_StdinDelivery(t *testing.T) {
	h := newHarness(commands("ping", "status", "x"), nil)
	h.spawner.script = replyPerCommand(h)
	h.cfg.Delivery = domain.DeliveryStdin

	report, err := h.session().Run(context.Background())
	require.NoError(t, err)

	assert.True(t, h.spawner.spec.Stdin)
	assert.Empty(t, h.spawner.spec.Args)
	assert.Empty(t, report.EncodedPath)
	assert.Nil(t, h.artifact.written)
	assert.Equal(t, []string{"len:4", "len:6", "len:1"}, h.sink.Payloads())
}

func TestSession_Run_DecodeErrorIsReturned(t *testing.T) {
	h := newHarness(commands("a", "b", "c"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		_, _ = io.WriteString(stdout, "garbage\r\n\r\n")
	})
	h.spawner.hold = true
	h.cfg.Pace = time.Hour
	s := h.session()

	_, err := s.Run(context.Background())

	var perr *domain.ProtocolFormatError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "garbage", perr.Header)
	assert.True(t, h.spawner.backend.terminated.Load(), "backend must be terminated on failure")
	assert.Empty(t, h.progress.Lines(), "decode failure cancels the progress loop")
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, h.sink.closed)
}

func TestSession_Run_MessagesProgress(t *testing.T) {
	h := newHarness(commands("ping", "status"), nil)
	h.spawner.script = replyPerCommand(h)
	h.spawner.hold = true
	h.cfg.Progress = domain.ProgressMessages
	h.cfg.Pace = time.Hour
	h.cfg.Drain = 0

	_, err := h.session().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, h.progress.Lines())
	assert.True(t, h.spawner.backend.terminated.Load())
}

func TestSession_Run_MessagesProgressStopsAtEndOfOutput(t *testing.T) {
	h := newHarness(commands("a", "b", "c"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		_ = frame.NewWriter(stdout).WriteFrame("only one")
	})
	h.cfg.Progress = domain.ProgressMessages

	report, err := h.session().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 3}}, h.progress.Lines())
	assert.Equal(t, 1, report.Messages)
	assert.Equal(t, 3, report.Commands)
}

func TestSession_Run_ExtraMessagesAreKept(t *testing.T) {
	h := newHarness(commands("a"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		w := frame.NewWriter(stdout)
		_ = w.WriteFrame("notification")
		_ = w.WriteFrame("response")
	})
	h.cfg.Progress = domain.ProgressMessages

	report, err := h.session().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{1, 1}}, h.progress.Lines())
	assert.Equal(t, 2, report.Messages)
	assert.Equal(t, []string{"notification", "response"}, h.sink.Payloads())
}

func TestSession_Run_SpawnError(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	spawnErr := &domain.ProcessSpawnError{Path: "backend", Err: errors.New("exec format error")}
	h.spawner.err = spawnErr
	s := h.session()

	_, err := s.Run(context.Background())

	assert.ErrorIs(t, err, spawnErr)
	assert.Equal(t, StateFailed, s.State())
	assert.True(t, h.sink.closed)
	assert.Empty(t, h.progress.Lines())
}

func TestSession_Run_LoadError(t *testing.T) {
	h := newHarness(staticCommands{err: &domain.StreamIOError{Op: "open commands", Path: "cmds.txt", Err: errors.New("denied")}}, nil)

	_, err := h.session().Run(context.Background())

	var serr *domain.StreamIOError
	require.ErrorAs(t, err, &serr)
	assert.Nil(t, h.spawner.backend, "nothing is spawned when commands cannot be loaded")
}

func TestSession_Run_SinkError(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	h.spawner.script = replyPerCommand(h)
	h.sink.err = errors.New("disk full")

	_, err := h.session().Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist message 1")
	assert.Contains(t, err.Error(), "disk full")
}

func TestSession_Run_Timeout(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	h.spawner.hold = true
	h.cfg.Pace = time.Hour
	h.cfg.Timeout = 30 * time.Millisecond
	h.cfg.Drain = time.Hour

	_, err := h.session().Run(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, h.spawner.backend.terminated.Load())
}

func TestSession_Run_CanceledByCaller(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	h.spawner.hold = true
	h.cfg.Pace = time.Hour
	h.cfg.Drain = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := h.session().Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, h.spawner.backend.terminated.Load())
}

func TestSession_Run_TruncatedFrameDuringShutdown(t *testing.T) {
	h := newHarness(commands("ping"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		_, _ = io.WriteString(stdout, "Content-Length: 100\r\n\r\npartial")
	})
	h.spawner.hold = true
	h.cfg.Drain = 10 * time.Millisecond

	report, err := h.session().Run(context.Background())

	require.NoError(t, err, "a frame cut off by termination is not a protocol failure")
	assert.Equal(t, 0, report.Messages)
	assert.Empty(t, h.sink.Payloads())
}

func TestSession_Run_TruncatedFrameBeforeShutdown(t *testing.T) {
	h := newHarness(commands("ping"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		_, _ = io.WriteString(stdout, "Content-Length: 100\r\n\r\npartial")
	})
	h.cfg.Pace = time.Hour

	_, err := h.session().Run(context.Background())

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSession_Run_SingleUse(t *testing.T) {
	h := newHarness(commands(), nil)
	s := h.session()

	_, err := s.Run(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSession_Run_BackendExitsWithoutReadingStdin(t *testing.T) {
	h := newHarness(commands("ping", "status", "shutdown"), func(_ io.Reader, stdout io.Writer, _ ports.BackendSpec) {
		_ = frame.NewWriter(stdout).WriteFrame("ready")
	})
	h.cfg.Delivery = domain.DeliveryStdin

	report, err := h.session().Run(context.Background())

	require.NoError(t, err, "unread input is not a failure once the backend has exited")
	assert.Equal(t, []string{"ready"}, h.sink.Payloads())
	assert.Equal(t, 1, report.Messages)
	assert.Equal(t, 3, report.Commands)
}

func TestSession_Run_StdinClosedByRunningBackend(t *testing.T) {
	h := newHarness(commands("ping"), func(stdin io.Reader, _ io.Writer, _ ports.BackendSpec) {
		stdin.(*io.PipeReader).CloseWithError(syscall.EPIPE)
	})
	h.spawner.hold = true
	h.cfg.Delivery = domain.DeliveryStdin
	h.cfg.Pace = time.Hour
	h.cfg.KillGrace = 50 * time.Millisecond
	h.cfg.Drain = 10 * time.Millisecond

	_, err := h.session().Run(context.Background())

	require.ErrorIs(t, err, syscall.EPIPE)
	assert.Contains(t, err.Error(), "deliver command 1")
	assert.True(t, h.spawner.backend.terminated.Load())
}

func TestSession_Run_ConcurrentCallsStartOnce(t *testing.T) {
	h := newHarness(commands("ping"), nil)
	h.spawner.script = replyPerCommand(h)
	s := h.session()

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Run(context.Background())
		}()
	}
	wg.Wait()

	started := 0
	for _, err := range errs {
		if err == nil {
			started++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, int32(1), h.spawner.spawns.Load())
	assert.Equal(t, []string{"len:4"}, h.sink.Payloads())
}
