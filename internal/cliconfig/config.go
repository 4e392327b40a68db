package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/framedrive/internal/adapters/console"
	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/internal/frame"
	"github.com/bft-labs/framedrive/pkg/log"
)

// PositionalArgs is the number of positional arguments the CLI takes:
// backend executable, command file and output file.
const PositionalArgs = 3

// Config holds CLI configuration for framedrive.
type Config struct {
	BackendPath string
	CommandPath string
	OutputPath  string

	Delivery string
	Progress string

	Pace      time.Duration
	Drain     time.Duration
	KillGrace time.Duration
	Timeout   time.Duration

	MaxMessageBytes int
	KeepBlank       bool
	Truncate        bool
	Watch           bool

	Color    string
	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Delivery:        string(domain.DeliveryFile),
		Progress:        string(domain.ProgressHeartbeat),
		Pace:            time.Second,
		Drain:           time.Second,
		KillGrace:       2 * time.Second,
		MaxMessageBytes: frame.DefaultMaxMessageSize,
		Color:           console.ColorAuto,
		LogLevel:        "info",
	}
}

// ApplyArgs sets the three positional paths. Any other count is an
// ArgumentArityError.
func ApplyArgs(cfg *Config, args []string) error {
	if len(args) != PositionalArgs {
		return &domain.ArgumentArityError{Want: PositionalArgs, Got: len(args)}
	}
	cfg.BackendPath, cfg.CommandPath, cfg.OutputPath = args[0], args[1], args[2]
	return nil
}

// Validate checks the configuration for errors. Every failure wraps
// domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.BackendPath == "" {
		return invalid("backend path is required")
	}
	if c.CommandPath == "" {
		return invalid("command file path is required")
	}
	if c.OutputPath == "" {
		return invalid("output file path is required")
	}

	switch domain.Delivery(c.Delivery) {
	case domain.DeliveryFile, domain.DeliveryStdin:
	default:
		return invalid("delivery must be %q or %q, got %q", domain.DeliveryFile, domain.DeliveryStdin, c.Delivery)
	}
	switch domain.ProgressMode(c.Progress) {
	case domain.ProgressHeartbeat, domain.ProgressMessages:
	default:
		return invalid("progress must be %q or %q, got %q", domain.ProgressHeartbeat, domain.ProgressMessages, c.Progress)
	}
	switch c.Color {
	case console.ColorAuto, console.ColorAlways, console.ColorNever:
	default:
		return invalid("color must be auto, always or never, got %q", c.Color)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return invalid("log level: %v", err)
	}

	if c.Pace <= 0 {
		return invalid("pace must be positive")
	}
	if c.Drain < 0 {
		return invalid("drain must not be negative")
	}
	if c.KillGrace <= 0 {
		return invalid("kill grace must be positive")
	}
	if c.Timeout < 0 {
		return invalid("timeout must not be negative")
	}
	if c.MaxMessageBytes <= 0 {
		return invalid("max message bytes must be positive")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidConfig}, args...)...)
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
// "0s" is accepted, so drain and timeout can be disabled from a file or env.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidConfig, flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
