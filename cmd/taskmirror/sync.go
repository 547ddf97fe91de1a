package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"taskmirror/internal/item"
	"taskmirror/internal/local"
	"taskmirror/internal/remote"
	"taskmirror/internal/store"
	"taskmirror/internal/syncrun"
)

var syncDirection string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass now",
	Long: `Trigger a single sync between the remote task list and the local
reminders list, then print the run record.

The direction defaults to the persisted setting (bidirectional on a
fresh install). Exit status is non-zero when the run fails.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		direction := item.Direction(syncDirection)
		if direction != "" && !direction.Valid() {
			return fmt.Errorf("unknown direction %q", syncDirection)
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		coord := syncrun.NewCoordinator(st,
			remote.New(cfg.Remote.BaseURL, cfg.Remote.Token),
			local.New(cfg.Local.BaseURL, cfg.Local.Token),
			syncrun.Config{
				Defaults: defaultsFromConfig(cfg),
				Logger:   log.New(os.Stderr, "[sync] ", log.LstdFlags),
			})

		run, err := coord.TriggerSync(cmd.Context(), direction)
		if errors.Is(err, syncrun.ErrRunInProgress) {
			return fmt.Errorf("a sync is already in progress")
		}
		if err != nil {
			return err
		}

		printRun(run)
		if run.Status == store.RunFailed {
			os.Exit(1)
		}
		return nil
	},
}

func printRun(run *store.SyncRun) {
	fmt.Printf("Run %d: %s (%s)\n", run.ID, run.Status, run.Direction)
	fmt.Printf("   Tasks synced:     %d\n", run.TasksSynced)
	fmt.Printf("   Reminders synced: %d\n", run.RemindersSynced)
	if run.ErrorMessage != "" {
		fmt.Printf("   Error: %s\n", run.ErrorMessage)
	}
	if run.CompletedAt != nil {
		fmt.Printf("   Duration: %v\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
}

func init() {
	syncCmd.Flags().StringVarP(&syncDirection, "direction", "d", "",
		"sync direction: remote_to_local, local_to_remote, or bidirectional")
	rootCmd.AddCommand(syncCmd)
}
