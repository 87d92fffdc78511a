// Package config handles configuration loading for conductor.
// It supports XDG config paths, project-level overrides, environment
// variables, and hot reload of tunable weights.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the engine.
type Config struct {
	Complexity ComplexityConfig `mapstructure:"complexity"`
	Priority   PriorityConfig   `mapstructure:"priority"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Gate       GateConfig       `mapstructure:"gate"`
	Store      StoreConfig      `mapstructure:"store"`
}

// ComplexityConfig holds complexity assessment settings.
type ComplexityConfig struct {
	// Threshold is the score (0-10) at or above which a task is decomposed.
	Threshold float64 `mapstructure:"threshold"`
	// SubGoalWeight weights the estimated sub-goal count signal.
	SubGoalWeight float64 `mapstructure:"sub_goal_weight"`
	// DiversityWeight weights the required-capability diversity signal.
	DiversityWeight float64 `mapstructure:"diversity_weight"`
	// ScopeWeight weights the declared scope size signal.
	ScopeWeight float64 `mapstructure:"scope_weight"`
}

// PriorityWeights holds the factor weights of the priority formula.
// Deployment-tunable; the defaults are a starting point, not ground truth.
type PriorityWeights struct {
	Impact      float64 `mapstructure:"impact"`
	Urgency     float64 `mapstructure:"urgency"`
	ResourceFit float64 `mapstructure:"resource_fit"`
	Alignment   float64 `mapstructure:"alignment"`
	Risk        float64 `mapstructure:"risk"`
}

// PriorityConfig holds priority engine settings.
type PriorityConfig struct {
	Weights PriorityWeights `mapstructure:"weights"`
	// TickInterval is the scheduling tick period.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// DefaultUrgency is the urgency (1-10) for subtasks without a deadline.
	DefaultUrgency float64 `mapstructure:"default_urgency"`
	// DownstreamBoost is the urgency added per transitively blocked subtask.
	DownstreamBoost float64 `mapstructure:"downstream_boost"`
	// UrgencyHorizon is the window before a deadline over which urgency
	// ramps from DefaultUrgency to the maximum.
	UrgencyHorizon time.Duration `mapstructure:"urgency_horizon"`
}

// BackoffConfig holds the exponential backoff schedule for subtask retries.
type BackoffConfig struct {
	InitialInterval     time.Duration `mapstructure:"initial_interval"`
	MaxInterval         time.Duration `mapstructure:"max_interval"`
	Multiplier          float64       `mapstructure:"multiplier"`
	RandomizationFactor float64       `mapstructure:"randomization_factor"`
}

// ExecutionConfig holds orchestrator settings.
type ExecutionConfig struct {
	// RetryLimit is the maximum execution attempts per subtask.
	RetryLimit int `mapstructure:"retry_limit"`
	// SubtaskTimeout bounds a single execution attempt.
	SubtaskTimeout time.Duration `mapstructure:"subtask_timeout"`
	// Backoff is the retry delay schedule.
	Backoff BackoffConfig `mapstructure:"backoff"`
	// BreakerThreshold is the consecutive-failure count that opens a
	// capability's circuit breaker.
	BreakerThreshold uint32 `mapstructure:"breaker_threshold"`
	// BreakerCooldown is how long an open breaker stays open.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// GateConfig holds quality gate settings.
type GateConfig struct {
	// OverallThreshold is the minimum overall score (0-100).
	OverallThreshold float64 `mapstructure:"overall_threshold"`
	// Dimensions maps dimension names to per-dimension thresholds.
	Dimensions map[string]float64 `mapstructure:"dimensions"`
	// Aggregation is "mean" or "min".
	Aggregation string `mapstructure:"aggregation"`
	// SafetyCritical lists dimensions that force min aggregation when present.
	SafetyCritical []string `mapstructure:"safety_critical"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Path is the SQLite database path. Empty disables persistence.
	Path string `mapstructure:"path"`
}

// Default returns the built-in default configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// Defaults are static; an unmarshal failure is a programming error.
		panic(fmt.Sprintf("config: unmarshal defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
//  1. Environment variables (CONDUCTOR_*)
//  2. Project config (.conductor.yaml in current directory or a parent)
//  3. User config (~/.config/conductor/config.yaml)
//  4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		pv := viper.New()
		pv.SetConfigFile(projectConfig)
		if err := pv.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CONDUCTOR")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// Watch reloads the config file on change and invokes onChange with the new
// configuration. Weight and threshold changes take effect at the next
// scheduling tick. Invalid edits are reported and the previous configuration
// stays active.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg := &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			if onError != nil {
				onError(fmt.Errorf("reloading config: %w", err))
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

// userConfigDir returns the XDG config directory for conductor.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "conductor")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conductor"
	}
	return filepath.Join(home, ".config", "conductor")
}

// findProjectConfig walks up from the working directory looking for
// .conductor.yaml.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".conductor.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("complexity.threshold", 7.0)
	v.SetDefault("complexity.sub_goal_weight", 0.5)
	v.SetDefault("complexity.diversity_weight", 0.3)
	v.SetDefault("complexity.scope_weight", 0.2)

	v.SetDefault("priority.weights.impact", 0.30)
	v.SetDefault("priority.weights.urgency", 0.25)
	v.SetDefault("priority.weights.resource_fit", 0.15)
	v.SetDefault("priority.weights.alignment", 0.20)
	v.SetDefault("priority.weights.risk", 0.10)
	v.SetDefault("priority.tick_interval", 500*time.Millisecond)
	v.SetDefault("priority.default_urgency", 5.0)
	v.SetDefault("priority.downstream_boost", 0.5)
	v.SetDefault("priority.urgency_horizon", 24*time.Hour)

	v.SetDefault("execution.retry_limit", 3)
	v.SetDefault("execution.subtask_timeout", 5*time.Minute)
	v.SetDefault("execution.backoff.initial_interval", 500*time.Millisecond)
	v.SetDefault("execution.backoff.max_interval", 30*time.Second)
	v.SetDefault("execution.backoff.multiplier", 2.0)
	v.SetDefault("execution.backoff.randomization_factor", 0.5)
	v.SetDefault("execution.breaker_threshold", uint32(5))
	v.SetDefault("execution.breaker_cooldown", 30*time.Second)

	v.SetDefault("gate.overall_threshold", 85.0)
	v.SetDefault("gate.dimensions", map[string]float64{})
	v.SetDefault("gate.aggregation", "mean")
	v.SetDefault("gate.safety_critical", []string{})

	v.SetDefault("store.path", "")
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Complexity.Threshold < 0 || c.Complexity.Threshold > 10 {
		return fmt.Errorf("complexity.threshold must be in [0,10], got %v", c.Complexity.Threshold)
	}
	if c.Execution.RetryLimit < 1 {
		return fmt.Errorf("execution.retry_limit must be at least 1, got %d", c.Execution.RetryLimit)
	}
	if c.Execution.SubtaskTimeout <= 0 {
		return fmt.Errorf("execution.subtask_timeout must be positive, got %v", c.Execution.SubtaskTimeout)
	}
	if c.Gate.OverallThreshold < 0 || c.Gate.OverallThreshold > 100 {
		return fmt.Errorf("gate.overall_threshold must be in [0,100], got %v", c.Gate.OverallThreshold)
	}
	if c.Gate.Aggregation != "mean" && c.Gate.Aggregation != "min" {
		return fmt.Errorf("gate.aggregation must be mean or min, got %q", c.Gate.Aggregation)
	}
	if c.Priority.TickInterval <= 0 {
		return fmt.Errorf("priority.tick_interval must be positive, got %v", c.Priority.TickInterval)
	}
	return nil
}
