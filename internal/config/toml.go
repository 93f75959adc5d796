// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Operator OperatorConfig `toml:"operator"`
	Trial    TrialConfig    `toml:"trial"`
	Log      LogConfig      `toml:"log"`
}

// OperatorConfig maps the simulated operator's profile.
type OperatorConfig struct {
	Name             *string  `toml:"name"`
	BaseTaskTime     *float64 `toml:"base-task-time"`
	TaskTimeJitter   *float64 `toml:"task-time-jitter"`
	Strategy         *string  `toml:"strategy"`
	PreemptThreshold *float64 `toml:"preempt-threshold"`
}

// TrialConfig maps trial generation and Monte Carlo settings.
type TrialConfig struct {
	Conditions   *int     `toml:"conditions"`
	Horizon      *int     `toml:"horizon"`
	Policies     []string `toml:"policies"`
	Trials       *int     `toml:"trials"`
	Seed         *int64   `toml:"seed"`
	Workers      *int     `toml:"workers"`
	HarmWeight   *string  `toml:"harm-weight"`
	PauseSeconds *int     `toml:"pause-seconds"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
