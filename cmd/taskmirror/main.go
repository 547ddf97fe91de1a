// Command taskmirror keeps a remote task list and a local reminders list in
// sync. It serves the HTTP API and scheduler (serve), triggers one-shot
// reconciliation passes (sync), and inspects state (status, runs).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"taskmirror/internal/config"
	"taskmirror/internal/item"
	"taskmirror/internal/store"
	"taskmirror/internal/syncrun"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskmirror",
	Short: "Bidirectional sync between remote tasks and local reminders",
	Long: `taskmirror keeps a remote task list and a local reminders list
converged. A persistent mapping table correlates items across the two
stores, and a last-known-completed baseline detects which side changed
between passes.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(),
		"path to config file")
}

// loadConfig reads the config file given on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// defaultsFromConfig translates config-file defaults into coordinator
// fallbacks.
func defaultsFromConfig(cfg *config.Config) syncrun.Defaults {
	return syncrun.Defaults{
		Direction:    item.Direction(cfg.Sync.Direction),
		RemoteListID: cfg.Sync.RemoteListID,
		LocalListID:  cfg.Sync.LocalListID,
	}
}

// openStore opens the database and ensures the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}
