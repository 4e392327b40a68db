package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Positional paths are never read from a file.
type FileConfig struct {
	Delivery        string `toml:"delivery"`
	Progress        string `toml:"progress"`
	Pace            string `toml:"pace"`
	Drain           string `toml:"drain"`
	KillGrace       string `toml:"kill_grace"`
	Timeout         string `toml:"timeout"`
	MaxMessageBytes int    `toml:"max_message_bytes"`
	KeepBlank       *bool  `toml:"keep_blank"`
	Truncate        *bool  `toml:"truncate"`
	Watch           *bool  `toml:"watch"`
	Color           string `toml:"color"`
	LogLevel        string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
// Unknown keys are rejected so typos do not pass silently.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	f, err := os.Open(path)
	if err != nil {
		return fc, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.framedrive/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".framedrive", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("delivery", fc.Delivery, &cfg.Delivery)
	s.setString("progress", fc.Progress, &cfg.Progress)
	s.setString("color", fc.Color, &cfg.Color)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("pace", fc.Pace, &cfg.Pace); err != nil {
		return err
	}
	if err := s.setDuration("drain", fc.Drain, &cfg.Drain); err != nil {
		return err
	}
	if err := s.setDuration("kill-grace", fc.KillGrace, &cfg.KillGrace); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}

	s.setInt("max-message-bytes", fc.MaxMessageBytes, &cfg.MaxMessageBytes)

	s.setBool("keep-blank", fc.KeepBlank, &cfg.KeepBlank)
	s.setBool("truncate", fc.Truncate, &cfg.Truncate)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
