package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !reflect.DeepEqual(cfg, Default()) {
			t.Errorf("cfg = %+v, want defaults", cfg)
		}
	})

	t.Run("file layers over defaults", func(t *testing.T) {
		path := writeConfig(t, `
[check]
debounce_ms = 250
workers = 4

[suggest]
backend = "openai"
model = "gpt-4o-mini"

[dictionary]
path = "/tmp/words.txt"

[rules]
lua = ["a.lua", "b.lua"]
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.Check.DebounceMS != 250 || cfg.Check.Workers != 4 {
			t.Errorf("check = %+v", cfg.Check)
		}
		// Keys the file omits keep their defaults.
		if cfg.Check.TimeoutMS != 2000 || cfg.Check.CacheCapacity != 200 {
			t.Errorf("unset keys lost defaults: %+v", cfg.Check)
		}
		if cfg.Suggest.Backend != "openai" || cfg.Suggest.Model != "gpt-4o-mini" {
			t.Errorf("suggest = %+v", cfg.Suggest)
		}
		if cfg.Dictionary.Path != "/tmp/words.txt" {
			t.Errorf("dictionary = %+v", cfg.Dictionary)
		}
		if len(cfg.Rules.Lua) != 2 || cfg.Rules.Lua[0] != "a.lua" {
			t.Errorf("rules = %+v", cfg.Rules)
		}
	})

	t.Run("malformed toml fails", func(t *testing.T) {
		path := writeConfig(t, `[check`)
		if _, err := Load(path); err == nil {
			t.Error("want parse error")
		}
	})

	t.Run("invalid values fail", func(t *testing.T) {
		path := writeConfig(t, "[suggest]\nbackend = \"clippy\"\n")
		if _, err := Load(path); err == nil {
			t.Error("want validation error")
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty backend", func(c *Config) { c.Suggest.Backend = "" }, true},
		{"negative debounce", func(c *Config) { c.Check.DebounceMS = -1 }, false},
		{"negative timeout", func(c *Config) { c.Check.TimeoutMS = -1 }, false},
		{"negative workers", func(c *Config) { c.Check.Workers = -1 }, false},
		{"unknown backend", func(c *Config) { c.Suggest.Backend = "oracle" }, false},
		{"multi-char trigger", func(c *Config) { c.Suggest.Trigger = "++" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tc.ok && err == nil {
				t.Error("want error")
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if cfg.CheckDebounce() != 500*time.Millisecond {
		t.Errorf("CheckDebounce = %v", cfg.CheckDebounce())
	}
	if cfg.CheckTimeout() != 2*time.Second {
		t.Errorf("CheckTimeout = %v", cfg.CheckTimeout())
	}
	if cfg.SuggestDebounce() != 100*time.Millisecond {
		t.Errorf("SuggestDebounce = %v", cfg.SuggestDebounce())
	}
	if cfg.TriggerMarker() != '+' {
		t.Errorf("TriggerMarker = %q", cfg.TriggerMarker())
	}
	cfg.Suggest.Trigger = ""
	if cfg.TriggerMarker() != '+' {
		t.Errorf("empty trigger should default to '+', got %q", cfg.TriggerMarker())
	}
}
