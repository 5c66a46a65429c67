package training

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 32 || cfg.EmbedSize != 300 || cfg.HiddenSize != 512 || cfg.NumClasses != 2 {
		t.Fatalf("unexpected model defaults %+v", cfg)
	}
	if cfg.Epochs != 100 || cfg.Optimizer != "adam" || cfg.SplitFactor != 0.9 {
		t.Fatalf("unexpected training defaults %+v", cfg)
	}
	if cfg.Seed == 0 {
		t.Fatalf("expected a non-zero seed")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"batch size":   func(c *Config) { c.BatchSize = -1 },
		"one class":    func(c *Config) { c.NumClasses = 1 },
		"split factor": func(c *Config) { c.SplitFactor = 1.5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %+v", cfg)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"batch_size": 8, "optimizer": "sgd", "seed": 42}`), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BatchSize != 8 || cfg.Optimizer != "sgd" || cfg.Seed != 42 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.EmbedSize != 300 || cfg.LearningRate != 0.001 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	broken := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(broken, []byte(`{"batch_size": `), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(broken); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveConfig_TemplateLeavesSeedUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")
	if err := SaveConfig(path, TemplateConfig()); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	if !strings.Contains(string(data), `"seed": 0`) {
		t.Fatalf("template pins a seed:\n%s", data)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Seed == 0 {
		t.Fatalf("expected a seed chosen at load time")
	}
	if cfg.BatchSize != 32 || cfg.HiddenSize != 512 {
		t.Fatalf("template lost defaults: %+v", cfg)
	}
}
