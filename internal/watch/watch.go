// Package watch re-runs a driver session whenever its command file changes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/framedrive/pkg/log"
)

// RunFunc performs one complete run. Its error is logged; watching goes on.
type RunFunc func(ctx context.Context) error

// Config holds configuration options for the watcher.
type Config struct {
	// DebounceDelay is how long the file must stay quiet after a change
	// before a run starts.
	// Default: 200 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with the default debounce.
func DefaultConfig() Config {
	return Config{DebounceDelay: 200 * time.Millisecond}
}

// Watcher runs RunFunc once, then again after every change to a file.
// Runs never overlap: events that arrive during a run are coalesced into at
// most one follow-up run.
type Watcher struct {
	path   string
	run    RunFunc
	cfg    Config
	logger log.Logger
}

// New creates a watcher for path. A nil logger discards output.
func New(path string, run RunFunc, cfg Config, logger log.Logger) *Watcher {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultConfig().DebounceDelay
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{path: path, run: run, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done. The parent directory is watched rather than
// the file, so editors that replace the file by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	name := filepath.Base(w.path)

	w.runOnce(ctx, 1)

	var (
		debounce *time.Timer
		fire     <-chan time.Time
		runs     = 1
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("command file changed", log.String("op", event.Op.String()))
			if debounce == nil {
				debounce = time.NewTimer(w.cfg.DebounceDelay)
			} else {
				debounce.Reset(w.cfg.DebounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			runs++
			w.runOnce(ctx, runs)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, n int) {
	w.logger.Info("starting run", log.Int("run", n), log.String("commands", w.path))
	err := w.run(ctx)
	switch {
	case err == nil:
		w.logger.Info("run finished", log.Int("run", n))
	case errors.Is(err, context.Canceled):
		w.logger.Info("run canceled", log.Int("run", n))
	default:
		w.logger.Error("run failed", log.Int("run", n), log.Err(err))
	}
	if ctx.Err() == nil {
		w.logger.Info("watching for changes", log.String("path", w.path))
	}
}
