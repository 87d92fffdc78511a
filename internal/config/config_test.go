package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Complexity.Threshold != 7.0 {
		t.Errorf("expected complexity threshold 7.0, got %v", cfg.Complexity.Threshold)
	}
	if cfg.Execution.RetryLimit != 3 {
		t.Errorf("expected retry limit 3, got %d", cfg.Execution.RetryLimit)
	}
	if cfg.Gate.OverallThreshold != 85.0 {
		t.Errorf("expected gate threshold 85, got %v", cfg.Gate.OverallThreshold)
	}
	if cfg.Gate.Aggregation != "mean" {
		t.Errorf("expected mean aggregation, got %q", cfg.Gate.Aggregation)
	}
	if cfg.Priority.TickInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms tick, got %v", cfg.Priority.TickInterval)
	}

	sum := cfg.Priority.Weights.Impact + cfg.Priority.Weights.Urgency +
		cfg.Priority.Weights.ResourceFit + cfg.Priority.Weights.Alignment +
		cfg.Priority.Weights.Risk
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("expected default weights to sum to 1.0, got %v", sum)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
complexity:
  threshold: 5.5
priority:
  weights:
    impact: 0.4
    urgency: 0.3
execution:
  retry_limit: 5
gate:
  overall_threshold: 90
  aggregation: min
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Complexity.Threshold != 5.5 {
		t.Errorf("expected threshold 5.5, got %v", cfg.Complexity.Threshold)
	}
	if cfg.Priority.Weights.Impact != 0.4 {
		t.Errorf("expected impact weight 0.4, got %v", cfg.Priority.Weights.Impact)
	}
	if cfg.Execution.RetryLimit != 5 {
		t.Errorf("expected retry limit 5, got %d", cfg.Execution.RetryLimit)
	}
	if cfg.Gate.Aggregation != "min" {
		t.Errorf("expected min aggregation, got %q", cfg.Gate.Aggregation)
	}

	// Unspecified values keep defaults.
	if cfg.Priority.Weights.Risk != 0.10 {
		t.Errorf("expected default risk weight 0.10, got %v", cfg.Priority.Weights.Risk)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold too high", func(c *Config) { c.Complexity.Threshold = 11 }},
		{"zero retry limit", func(c *Config) { c.Execution.RetryLimit = 0 }},
		{"negative timeout", func(c *Config) { c.Execution.SubtaskTimeout = -time.Second }},
		{"gate threshold over 100", func(c *Config) { c.Gate.OverallThreshold = 101 }},
		{"unknown aggregation", func(c *Config) { c.Gate.Aggregation = "median" }},
		{"zero tick", func(c *Config) { c.Priority.TickInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestWatchReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("complexity:\n  threshold: 6\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	changed := make(chan *Config, 1)
	err := Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("complexity:\n  threshold: 8\n"), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-changed:
		if cfg.Complexity.Threshold != 8 {
			t.Errorf("expected reloaded threshold 8, got %v", cfg.Complexity.Threshold)
		}
	case <-time.After(3 * time.Second):
		t.Skip("filesystem notification did not arrive; environment-dependent")
	}
}
