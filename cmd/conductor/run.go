package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/events"
	"github.com/conductor-dev/conductor/internal/orchestrator"
	"github.com/conductor-dev/conductor/internal/store"
	"github.com/conductor-dev/conductor/internal/worker"
	"github.com/conductor-dev/conductor/pkg/models"
)

var (
	runWorkers     []string
	runConfigPath  string
	runWatchConfig bool
	runDebugLog    string
	runAutoApprove bool
	runNoPersist   bool
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run <requirement.yaml> [requirement.yaml...]",
	Short: "Run requirement files through the engine",
	Long: `Submit one or more requirement files and drive them to completion.

Each file describes a requirement: a name, goals with capabilities and
dependencies, optional priority hints, and optional workers to register.
Files are submitted concurrently and the command exits once every task
reaches a terminal state.

Workers come from the requirement files or from --worker flags of the
form id:capacity:cap1+cap2. When neither supplies any, a default pool of
simulated general-purpose workers is registered.

With --auto-approve, pending sign-offs are granted as soon as a task's
subtasks complete; otherwise tasks holding for approval are reported and
left pending in the store.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runWorkers, "worker", nil, "Register a worker (id:capacity:cap1+cap2), repeatable")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Load configuration from a specific file")
	runCmd.Flags().BoolVar(&runWatchConfig, "watch-config", false, "Reload weights and thresholds when the --config file changes")
	runCmd.Flags().StringVar(&runDebugLog, "debug-log", "", "Write engine debug output to a file")
	runCmd.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Grant required approvals automatically")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "Skip writing task state to the database")
	runCmd.Flags().BoolVar(&runQuiet, "quiet", false, "Suppress the live event stream")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	files := make([]*requirementFile, 0, len(args))
	for _, path := range args {
		rf, err := loadRequirementFile(path)
		if err != nil {
			return err
		}
		files = append(files, rf)
	}

	opts := []orchestrator.Option{
		orchestrator.WithRunner(worker.NewLocalRunner()),
	}

	if !runNoPersist {
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, orchestrator.WithStore(db))
	}

	if runDebugLog != "" {
		logger, err := orchestrator.NewDebugLogger(runDebugLog)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithLogger(logger))
	}

	bus := events.NewBus()
	defer bus.Close()
	opts = append(opts, orchestrator.WithBus(bus))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := orchestrator.New(cfg, opts...)
	engine.Start(ctx)
	defer engine.Stop()

	if runWatchConfig {
		if runConfigPath == "" {
			return fmt.Errorf("--watch-config requires --config")
		}
		err := config.Watch(runConfigPath,
			func(next *config.Config) {
				if err := engine.UpdateConfig(next); err != nil {
					fmt.Fprintf(os.Stderr, "config reload rejected: %v\n", err)
				}
			},
			func(err error) {
				fmt.Fprintf(os.Stderr, "config reload: %v\n", err)
			})
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
	}

	if !runQuiet {
		go streamEvents(bus.SubscribeAll(256))
	}

	if err := registerWorkers(engine, files); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	ids := make([]string, len(files))
	for i, rf := range files {
		g.Go(func() error {
			id, err := engine.Submit(&rf.Requirement, rf.Hints)
			if err != nil {
				return fmt.Errorf("%s: %w", rf.Path, err)
			}
			ids[i] = id
			return awaitTask(gctx, engine, id)
		})
	}

	runErr := g.Wait()

	for _, id := range ids {
		if id == "" {
			continue
		}
		view, err := engine.GetStatus(id)
		if err != nil {
			continue
		}
		fmt.Println()
		printTaskView(view)
	}

	return runErr
}

func loadRunConfig() (*config.Config, error) {
	if runConfigPath != "" {
		return config.LoadFromPath(runConfigPath)
	}
	return config.Load()
}

func openStore(cfg *config.Config) (*store.DB, error) {
	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// awaitTask polls until the task reaches a terminal state. Tasks held
// by pending approvals are granted or reported depending on
// --auto-approve.
func awaitTask(ctx context.Context, engine *orchestrator.Engine, id string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		view, err := engine.GetStatus(id)
		if err != nil {
			return err
		}
		if view.Task.Status.Terminal() || view.Task.Status == models.TaskStatusBlocked {
			return nil
		}

		if pending := pendingApprovals(view); len(pending) > 0 && allSubtasksDone(view) {
			if !runAutoApprove {
				fmt.Printf("task %s is holding for approval: %v\n", id, pending)
				return nil
			}
			for _, name := range pending {
				if err := engine.SetApproval(id, name, models.ApprovalApproved); err != nil {
					return err
				}
			}
		}
	}
}
