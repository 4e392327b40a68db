package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/framedrive"
	"github.com/bft-labs/framedrive/internal/cliconfig"
	"github.com/bft-labs/framedrive/internal/watch"
	"github.com/bft-labs/framedrive/pkg/log"
)

const helpDescription = `
Drive a backend that speaks Content-Length framed text and record what it says.

Each line of the command file is one command. The commands are framed as
"Content-Length: <n>\r\n\r\n<payload>" and handed to the backend, either as an
encoded file (<command-file>.encoded) passed as its only argument or live on
its stdin. Every framed message the backend writes to stdout is appended to
the output file, one per line, while progress is printed to stdout.

Configure via file ($HOME/.framedrive/config.toml), FRAMEDRIVE_* env, or flags.
`

var exampleUsage = strings.TrimSpace(`
  framedrive ./lang-server commands.txt responses.txt
  framedrive --delivery stdin --progress messages ./lang-server commands.txt responses.txt
  framedrive --watch --truncate ./lang-server commands.txt responses.txt
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// exactArgs reports a wrong positional count as an ArgumentArityError
// before any side effect.
func exactArgs(cmd *cobra.Command, args []string) error {
	if len(args) != cliconfig.PositionalArgs {
		return &framedrive.ArgumentArityError{Want: cliconfig.PositionalArgs, Got: len(args)}
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger, _ := log.NewConsoleLogger(os.Stderr, "info")
		logger.Error("framedrive", log.Err(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "framedrive [flags] <backend-executable> <command-file> <output-file>",
		Short:         "Capture/record test driver for Content-Length framed backends",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          exactArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cliconfig.ApplyArgs(&cfg, args); err != nil {
				return err
			}

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// An explicit --config must exist; the default one is optional.
			if cfgFile != "" && (cfgPath != "" || cliconfig.FileExists(cfgFile)) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// FRAMEDRIVE_* override the file but not explicit flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := log.NewConsoleLogger(os.Stderr, cfg.LogLevel)
			if err != nil {
				return err
			}
			logger.Debug("configuration",
				log.String("backend", cfg.BackendPath),
				log.String("commands", cfg.CommandPath),
				log.String("output", cfg.OutputPath),
				log.String("delivery", cfg.Delivery),
				log.String("progress", cfg.Progress),
				log.Duration("pace", cfg.Pace),
				log.Duration("drain", cfg.Drain),
				log.Duration("kill_grace", cfg.KillGrace),
				log.Bool("watch", cfg.Watch),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runCfg := toRunConfig(cfg)
			run := func(ctx context.Context) error {
				report, err := framedrive.Run(ctx, runCfg, framedrive.WithLogger(logger))
				logger.Info("run complete",
					log.String("session", report.SessionID),
					log.Int("commands", report.Commands),
					log.Int("messages", report.Messages),
					log.String("output", report.OutputPath),
					log.Duration("duration", report.Duration),
				)
				return err
			}

			if !cfg.Watch {
				err := run(ctx)
				if errors.Is(err, context.Canceled) {
					logger.Info("received signal, stopped")
				}
				return err
			}

			return watch.New(cfg.CommandPath, run, watch.DefaultConfig(), logger).Run(ctx)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.framedrive/config.toml)")
	f.StringVar(&cfg.Delivery, "delivery", cfg.Delivery, `how commands reach the backend: "file" (encoded file argument) or "stdin"`)
	f.StringVar(&cfg.Progress, "progress", cfg.Progress, `progress lines: "heartbeat" (one per --pace) or "messages" (one per decoded message)`)
	f.DurationVar(&cfg.Pace, "pace", cfg.Pace, "interval between heartbeat progress lines")
	f.DurationVar(&cfg.Drain, "drain", cfg.Drain, "how long to wait for remaining output before terminating the backend")
	f.DurationVar(&cfg.KillGrace, "kill-grace", cfg.KillGrace, "time between SIGTERM and kill")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "bound on a whole run (0 = none)")
	f.IntVar(&cfg.MaxMessageBytes, "max-message-bytes", cfg.MaxMessageBytes, "reject frames announcing a larger payload")
	f.BoolVar(&cfg.KeepBlank, "keep-blank", cfg.KeepBlank, "send blank command lines instead of skipping them")
	f.BoolVar(&cfg.Truncate, "truncate", cfg.Truncate, "empty the output file before each run instead of appending")
	f.StringVar(&cfg.Color, "color", cfg.Color, `colorize progress: "auto", "always" or "never"`)
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "re-run whenever the command file changes")

	return root
}

func toRunConfig(cfg cliconfig.Config) framedrive.Config {
	return framedrive.Config{
		BackendPath:     cfg.BackendPath,
		CommandPath:     cfg.CommandPath,
		OutputPath:      cfg.OutputPath,
		Delivery:        framedrive.Delivery(cfg.Delivery),
		Progress:        framedrive.ProgressMode(cfg.Progress),
		Pace:            cfg.Pace,
		Drain:           cfg.Drain,
		KillGrace:       cfg.KillGrace,
		Timeout:         cfg.Timeout,
		MaxMessageBytes: cfg.MaxMessageBytes,
		KeepBlank:       cfg.KeepBlank,
		Truncate:        cfg.Truncate,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
		Color:           cfg.Color,
	}
}
