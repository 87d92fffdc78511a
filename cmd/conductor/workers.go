package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductor-dev/conductor/internal/config"
	"github.com/conductor-dev/conductor/internal/store"
)

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List registered workers",
	Long: `Display the worker fleet recorded in the conductor database.

Workers persist across runs and are only removed on explicit
deregistration.`,
	RunE: runWorkersCmd,
}

func runWorkersCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	path := cfg.Store.Path
	if path == "" {
		path = store.DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No workers registered.")
		return nil
	}

	db, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	workers, err := db.ListWorkers()
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	if len(workers) == 0 {
		fmt.Println("No workers registered.")
		return nil
	}

	fmt.Println("Registered workers:")
	for _, w := range workers {
		age := formatDuration(time.Since(w.RegisteredAt))
		fmt.Printf("  %-12s load %d/%d  [%s]  registered %s ago\n",
			w.ID, w.Load, w.Capacity, strings.Join(w.Capabilities, ", "), age)
	}
	return nil
}
