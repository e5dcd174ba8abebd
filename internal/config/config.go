// Package config loads the TOML configuration file and manages the
// personal dictionary store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Check      CheckConfig      `toml:"check"`
	Suggest    SuggestConfig    `toml:"suggest"`
	Dictionary DictionaryConfig `toml:"dictionary"`
	Rules      RulesConfig      `toml:"rules"`
}

// CheckConfig tunes the background checking pipeline.
type CheckConfig struct {
	// DebounceMS is the quiet period after an edit before a paragraph is
	// checked, in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// TimeoutMS bounds one worker request, in milliseconds.
	TimeoutMS int `toml:"timeout_ms"`

	// Workers is the analysis worker count.
	Workers int `toml:"workers"`

	// CacheCapacity is the maximum number of cached paragraph results.
	CacheCapacity int `toml:"cache_capacity"`
}

// SuggestConfig tunes the ghost-text flow.
type SuggestConfig struct {
	// DebounceMS is the trigger debounce, in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// Backend selects the completion provider: static, openai,
	// anthropic, or gemini.
	Backend string `toml:"backend"`

	// Model overrides the backend's default model.
	Model string `toml:"model"`

	// Trigger is the character that, typed twice, requests a suggestion.
	Trigger string `toml:"trigger"`
}

// DictionaryConfig locates the personal word list.
type DictionaryConfig struct {
	// Path is the word list file, one word per line. Empty disables
	// persistence.
	Path string `toml:"path"`
}

// RulesConfig locates user rule scripts.
type RulesConfig struct {
	// Lua lists Lua rule script paths, loaded in order.
	Lua []string `toml:"lua"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Check: CheckConfig{
			DebounceMS:    500,
			TimeoutMS:     2000,
			Workers:       2,
			CacheCapacity: 200,
		},
		Suggest: SuggestConfig{
			DebounceMS: 100,
			Backend:    "static",
			Trigger:    "+",
		},
	}
}

// Load reads configuration from a TOML file, layered over the defaults.
// A missing file is not an error; the defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Check.DebounceMS < 0 || c.Check.TimeoutMS < 0 || c.Suggest.DebounceMS < 0 {
		return fmt.Errorf("config: negative duration")
	}
	if c.Check.Workers < 0 {
		return fmt.Errorf("config: negative worker count")
	}
	switch c.Suggest.Backend {
	case "", "static", "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("config: unknown backend %q", c.Suggest.Backend)
	}
	if len(c.Suggest.Trigger) > 1 {
		return fmt.Errorf("config: trigger must be a single character")
	}
	return nil
}

// CheckDebounce returns the check debounce as a duration.
func (c Config) CheckDebounce() time.Duration {
	return time.Duration(c.Check.DebounceMS) * time.Millisecond
}

// CheckTimeout returns the worker timeout as a duration.
func (c Config) CheckTimeout() time.Duration {
	return time.Duration(c.Check.TimeoutMS) * time.Millisecond
}

// SuggestDebounce returns the trigger debounce as a duration.
func (c Config) SuggestDebounce() time.Duration {
	return time.Duration(c.Suggest.DebounceMS) * time.Millisecond
}

// TriggerMarker returns the trigger byte, defaulting to '+'.
func (c Config) TriggerMarker() byte {
	if c.Suggest.Trigger == "" {
		return '+'
	}
	return c.Suggest.Trigger[0]
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "prosecheck.toml"
	}
	return filepath.Join(dir, "prosecheck", "config.toml")
}

// DefaultDictionaryPath returns the conventional word list location.
func DefaultDictionaryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "words.txt"
	}
	return filepath.Join(dir, "prosecheck", "words.txt")
}
