package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskmirror/internal/item"
	"taskmirror/internal/local"
	"taskmirror/internal/remote"
	"taskmirror/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync configuration and the last run",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println(err)
			return
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Println(err)
			return
		}
		defer st.Close()

		ctx := cmd.Context()

		direction, _ := st.GetSetting(ctx, store.SettingDirection, string(item.Bidirectional))
		interval, _ := st.GetSettingInt(ctx, store.SettingSyncInterval, cfg.Sync.IntervalMinutes)
		remoteList, _ := st.GetSetting(ctx, store.SettingRemoteList, cfg.Sync.RemoteListID)
		localList, _ := st.GetSetting(ctx, store.SettingLocalList, cfg.Sync.LocalListID)

		fmt.Println("Configuration:")
		fmt.Printf("   Direction:   %s\n", direction)
		fmt.Printf("   Interval:    %d minutes\n", interval)
		fmt.Printf("   Remote list: %s\n", orUnset(remoteList))
		fmt.Printf("   Local list:  %s\n", orUnset(localList))

		remoteClient := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token)
		localClient := local.New(cfg.Local.BaseURL, cfg.Local.Token)
		fmt.Println("Connectivity:")
		fmt.Printf("   Remote tasks:     %s\n", connected(remoteClient.IsConnected(ctx)))
		fmt.Printf("   Local reminders:  %s\n", connected(localClient.IsConnected(ctx)))

		count, err := st.CountMappings(ctx)
		if err == nil {
			fmt.Printf("Mappings: %d\n", count)
		}

		run, err := st.LatestRun(ctx)
		if err != nil {
			fmt.Printf("Failed to read run log: %v\n", err)
			return
		}
		if run == nil {
			fmt.Println("No sync runs yet")
			return
		}

		fmt.Println("Last run:")
		printRun(run)
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Println(err)
			return
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Println(err)
			return
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			fmt.Printf("Failed to list runs: %v\n", err)
			return
		}
		if len(runs) == 0 {
			fmt.Println("No sync runs yet")
			return
		}

		for _, run := range runs {
			line := fmt.Sprintf("%-4d %-8s %-16s tasks=%d reminders=%d",
				run.ID, run.Status, run.Direction, run.TasksSynced, run.RemindersSynced)
			if run.ErrorMessage != "" {
				line += "  " + run.ErrorMessage
			}
			fmt.Println(line)
		}
	},
}

func orUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

func connected(ok bool) string {
	if ok {
		return "connected"
	}
	return "not connected"
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runsCmd)
}
