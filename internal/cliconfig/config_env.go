package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "FRAMEDRIVE_"

// ApplyEnvConfig applies configuration from environment variables (FRAMEDRIVE_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(name string) string { return os.Getenv(EnvPrefix + name) }

	s.setString("delivery", env("DELIVERY"), &cfg.Delivery)
	s.setString("progress", env("PROGRESS"), &cfg.Progress)
	s.setString("color", env("COLOR"), &cfg.Color)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("pace", env("PACE"), &cfg.Pace); err != nil {
		return err
	}
	if err := s.setDuration("drain", env("DRAIN"), &cfg.Drain); err != nil {
		return err
	}
	if err := s.setDuration("kill-grace", env("KILL_GRACE"), &cfg.KillGrace); err != nil {
		return err
	}
	if err := s.setDuration("timeout", env("TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}

	if err := s.setIntFromString("max-message-bytes", env("MAX_MESSAGE_BYTES"), &cfg.MaxMessageBytes); err != nil {
		return err
	}

	s.setBoolFromString("keep-blank", env("KEEP_BLANK"), &cfg.KeepBlank)
	s.setBoolFromString("truncate", env("TRUNCATE"), &cfg.Truncate)
	s.setBoolFromString("watch", env("WATCH"), &cfg.Watch)

	return nil
}
