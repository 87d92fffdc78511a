package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show configuration",
	Long: `Display the effective conductor configuration.

Without arguments, displays all configuration values.
With one argument (key), displays the value for that key.

Configuration is read from ~/.config/conductor/config.yaml,
overridden by .conductor.yaml in the project tree and by
CONDUCTOR_* environment variables.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		values := configValues(cfg)
		if len(args) == 0 {
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("%s: %s\n", k, values[k])
			}
			return
		}

		v, ok := values[args[0]]
		if !ok {
			fmt.Fprintf(os.Stderr, "Error: unknown config key %q\n", args[0])
			os.Exit(1)
		}
		fmt.Println(v)
	},
}

// configValues flattens the configuration into display keys.
func configValues(cfg *config.Config) map[string]string {
	dims := make([]string, 0, len(cfg.Gate.Dimensions))
	for name, threshold := range cfg.Gate.Dimensions {
		dims = append(dims, fmt.Sprintf("%s=%g", name, threshold))
	}
	sort.Strings(dims)

	return map[string]string{
		"complexity.threshold": fmt.Sprintf("%g", cfg.Complexity.Threshold),
		"complexity.sub_goal_weight": fmt.Sprintf("%g", cfg.Complexity.SubGoalWeight),
		"complexity.diversity_weight": fmt.Sprintf("%g", cfg.Complexity.DiversityWeight),
		"complexity.scope_weight": fmt.Sprintf("%g", cfg.Complexity.ScopeWeight),
		"priority.weights.impact": fmt.Sprintf("%g", cfg.Priority.Weights.Impact),
		"priority.weights.urgency": fmt.Sprintf("%g", cfg.Priority.Weights.Urgency),
		"priority.weights.resource_fit": fmt.Sprintf("%g", cfg.Priority.Weights.ResourceFit),
		"priority.weights.alignment": fmt.Sprintf("%g", cfg.Priority.Weights.Alignment),
		"priority.weights.risk": fmt.Sprintf("%g", cfg.Priority.Weights.Risk),
		"priority.tick_interval": cfg.Priority.TickInterval.String(),
		"priority.default_urgency": fmt.Sprintf("%g", cfg.Priority.DefaultUrgency),
		"priority.downstream_boost": fmt.Sprintf("%g", cfg.Priority.DownstreamBoost),
		"priority.urgency_horizon": cfg.Priority.UrgencyHorizon.String(),
		"execution.retry_limit": fmt.Sprintf("%d", cfg.Execution.RetryLimit),
		"execution.subtask_timeout": cfg.Execution.SubtaskTimeout.String(),
		"execution.backoff.initial_interval": cfg.Execution.Backoff.InitialInterval.String(),
		"execution.backoff.max_interval": cfg.Execution.Backoff.MaxInterval.String(),
		"execution.backoff.multiplier": fmt.Sprintf("%g", cfg.Execution.Backoff.Multiplier),
		"execution.backoff.randomization_factor": fmt.Sprintf("%g", cfg.Execution.Backoff.RandomizationFactor),
		"execution.breaker_threshold": fmt.Sprintf("%d", cfg.Execution.BreakerThreshold),
		"execution.breaker_cooldown": cfg.Execution.BreakerCooldown.String(),
		"gate.overall_threshold": fmt.Sprintf("%g", cfg.Gate.OverallThreshold),
		"gate.dimensions": "{" + strings.Join(dims, ", ") + "}",
		"gate.aggregation": cfg.Gate.Aggregation,
		"gate.safety_critical": "[" + strings.Join(cfg.Gate.SafetyCritical, ", ") + "]",
		"store.path": cfg.Store.Path,
	}
}
