package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/icalgate/icalgate/pkg/fetch"
	"github.com/icalgate/icalgate/pkg/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// LocalSettingsFile is the project-local developer settings filename.
const LocalSettingsFile = "icalgate.local.toml"

// EnvPrefix namespaces environment overrides, e.g. ICALGATE_LOG_LEVEL.
const EnvPrefix = "ICALGATE"

// Settings holds operator preferences that are NOT committed to version
// control and never change what the release gate checks. Resolved with
// Viper precedence: CLI flags > ICALGATE_* env > icalgate.local.toml >
// ~/.icalgate/config.toml > defaults.
type Settings struct {
	LogLevel  string `toml:"log-level" mapstructure:"log-level"`
	LogFormat string `toml:"log-format" mapstructure:"log-format"`
	Retries   uint   `toml:"retries" mapstructure:"retries"`
	UserAgent string `toml:"user-agent" mapstructure:"user-agent"`
}

func (s *Settings) Logging() logging.Config {
	return logging.Config{Level: s.LogLevel, Format: s.LogFormat}
}

// LoadSettings resolves settings for the current directory. flags may be nil;
// only flags named after a settings key are bound.
func LoadSettings(flags *pflag.FlagSet) (*Settings, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return nil, err
	}
	return loadSettings(flags, filepath.Join(dir, "config.toml"), LocalSettingsFile)
}

// loadSettings is the internal implementation that accepts explicit paths,
// making it testable without touching the real home directory.
func loadSettings(flags *pflag.FlagSet, globalPath, localPath string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", logging.FormatConsole)
	v.SetDefault("retries", 0)
	v.SetDefault("user-agent", fetch.DefaultUserAgent)

	// Lowest priority: global settings; ignore if missing.
	if _, err := os.Stat(globalPath); err == nil {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", globalPath, err)
		}
	}

	if _, err := os.Stat(localPath); err == nil {
		v.SetConfigFile(localPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", localPath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Highest priority: CLI flags, when set.
	if flags != nil {
		for _, key := range []string{"log-level", "log-format", "retries", "user-agent"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding --%s: %w", key, err)
				}
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("unmarshaling settings: %w", err)
	}
	if err := s.Logging().Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// GlobalConfigDir returns the path to ~/.icalgate. It is not created.
func GlobalConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}
	return filepath.Join(home, ".icalgate"), nil
}
