package framedrive

import "github.com/bft-labs/framedrive/pkg/log"

// Option configures optional behavior of Run.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
}

func defaultOptions() options {
	return options{logger: log.NewNoopLogger()}
}

// WithLogger sets a logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler sets a handler for session state changes.
// Events are called synchronously from the goroutine changing state.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}
