// Package framedrive drives a backend process that speaks Content-Length
// framed text over its standard streams.
//
// A run reads one command per line from a file, hands the encoded commands
// to the backend, decodes every framed message the backend writes to its
// stdout into an output file and prints progress while it goes.
//
// Example usage:
//
//	cfg := framedrive.DefaultConfig()
//	cfg.BackendPath = "./lang-server"
//	cfg.CommandPath = "commands.txt"
//	cfg.OutputPath = "responses.txt"
//	report, err := framedrive.Run(context.Background(), cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report.Messages, "messages")
package framedrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bft-labs/framedrive/internal/adapters/console"
	"github.com/bft-labs/framedrive/internal/adapters/fs"
	"github.com/bft-labs/framedrive/internal/adapters/process"
	"github.com/bft-labs/framedrive/internal/app"
	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/frame"
)

// Config holds the settings of a single run.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// BackendPath is the backend executable.
	BackendPath string
	// CommandPath is the command file, one command per line.
	CommandPath string
	// OutputPath receives one decoded message per line.
	OutputPath string

	Delivery Delivery
	Progress ProgressMode

	// Pace is the interval between heartbeat progress lines.
	// Default: 1 second
	Pace time.Duration
	// Drain bounds the wait for the backend to finish writing once progress
	// is complete. Zero terminates immediately.
	// Default: 1 second
	Drain time.Duration
	// KillGrace is the time between SIGTERM and kill.
	// Default: 2 seconds
	KillGrace time.Duration
	// Timeout bounds the whole run. Zero means no limit.
	Timeout time.Duration

	// MaxMessageBytes rejects frames announcing a larger payload.
	// Default: 64 MiB
	MaxMessageBytes int
	// KeepBlank sends blank command lines instead of skipping them.
	KeepBlank bool
	// Truncate empties the output file before the run instead of appending.
	Truncate bool

	// Stdout receives progress lines. Default: os.Stdout
	Stdout io.Writer
	// Stderr receives the backend's standard error. Default: os.Stderr
	Stderr io.Writer
	// Color is "auto", "always" or "never".
	Color string
}

// DefaultConfig returns a Config with sensible default values.
// BackendPath, CommandPath and OutputPath must be set before calling Run.
func DefaultConfig() Config {
	return Config{
		Delivery:        DeliveryFile,
		Progress:        ProgressHeartbeat,
		Pace:            time.Second,
		Drain:           time.Second,
		KillGrace:       2 * time.Second,
		MaxMessageBytes: frame.DefaultMaxMessageSize,
		Color:           console.ColorAuto,
	}
}

// SetDefaults fills zero-valued fields that have no meaningful zero.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.Delivery == "" {
		c.Delivery = d.Delivery
	}
	if c.Progress == "" {
		c.Progress = d.Progress
	}
	if c.Pace == 0 {
		c.Pace = d.Pace
	}
	if c.KillGrace == 0 {
		c.KillGrace = d.KillGrace
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = d.MaxMessageBytes
	}
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
}

// Validate checks the configuration. Failures wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.BackendPath == "":
		return fmt.Errorf("%w: backend path is required", ErrInvalidConfig)
	case c.CommandPath == "":
		return fmt.Errorf("%w: command file path is required", ErrInvalidConfig)
	case c.OutputPath == "":
		return fmt.Errorf("%w: output file path is required", ErrInvalidConfig)
	case c.Delivery != DeliveryFile && c.Delivery != DeliveryStdin:
		return fmt.Errorf("%w: unknown delivery %q", ErrInvalidConfig, c.Delivery)
	case c.Progress != ProgressHeartbeat && c.Progress != ProgressMessages:
		return fmt.Errorf("%w: unknown progress mode %q", ErrInvalidConfig, c.Progress)
	case c.Pace <= 0, c.KillGrace <= 0:
		return fmt.Errorf("%w: pace and kill grace must be positive", ErrInvalidConfig)
	case c.Drain < 0, c.Timeout < 0:
		return fmt.Errorf("%w: drain and timeout must not be negative", ErrInvalidConfig)
	case c.MaxMessageBytes <= 0:
		return fmt.Errorf("%w: max message bytes must be positive", ErrInvalidConfig)
	}
	return nil
}

// Run performs one complete run: load commands, launch the backend, decode
// its output into OutputPath and report progress on Stdout.
//
// The backend is always terminated before Run returns and every decoded
// message is on disk. A malformed backend stream is returned as a
// *ProtocolFormatError.
func Run(ctx context.Context, cfg Config, opts ...Option) (Report, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	out, err := fs.OpenOutputFile(cfg.OutputPath, cfg.Truncate)
	if err != nil {
		return Report{}, err
	}

	session := app.NewSession(app.SessionConfig{
		BackendPath:    cfg.BackendPath,
		Delivery:       cfg.Delivery,
		Progress:       cfg.Progress,
		Pace:           cfg.Pace,
		Drain:          cfg.Drain,
		KillGrace:      cfg.KillGrace,
		Timeout:        cfg.Timeout,
		MaxMessageSize: cfg.MaxMessageBytes,
		Stderr:         cfg.Stderr,
	}, app.Dependencies{
		Commands: fs.NewCommandFile(cfg.CommandPath, cfg.KeepBlank),
		Artifact: fs.NewEncodedFile(fs.EncodedPathFor(cfg.CommandPath)),
		Spawner:  process.NewExecSpawner(o.logger),
		Sink:     out,
		Progress: console.NewProgressPrinter(cfg.Stdout, cfg.Color),
		Logger:   o.logger,
		Emitter:  &eventEmitterWrapper{handler: o.eventHandler},
	})

	report, err := session.Run(ctx)
	report.OutputPath = cfg.OutputPath
	return report, err
}

// Encode returns the frame carrying payload.
func Encode(payload string) []byte {
	return frame.Encode(payload)
}

// Messages decodes framed messages from r in order. Iteration stops after
// the first error.
var Messages = frame.Messages

// DefaultMaxMessageBytes is the default cap on a single payload.
const DefaultMaxMessageBytes = frame.DefaultMaxMessageSize

// Re-exported domain types.
type (
	// Report summarizes a finished run.
	Report = domain.Report
	// Message is one decoded backend message.
	Message = domain.Message
	// Delivery selects how commands reach the backend.
	Delivery = domain.Delivery
	// ProgressMode selects what drives the progress lines.
	ProgressMode = domain.ProgressMode

	// ProtocolFormatError reports a malformed frame header or separator.
	ProtocolFormatError = domain.ProtocolFormatError
	// ProcessSpawnError reports a backend that could not be started.
	ProcessSpawnError = domain.ProcessSpawnError
	// StreamIOError reports a failed read or write on a file or pipe.
	StreamIOError = domain.StreamIOError
	// ArgumentArityError reports a wrong number of CLI arguments.
	ArgumentArityError = domain.ArgumentArityError
)

const (
	DeliveryFile      = domain.DeliveryFile
	DeliveryStdin     = domain.DeliveryStdin
	ProgressHeartbeat = domain.ProgressHeartbeat
	ProgressMessages  = domain.ProgressMessages
)

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = domain.ErrInvalidConfig
