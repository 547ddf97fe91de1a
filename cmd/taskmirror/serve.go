package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"taskmirror/internal/config"
	"taskmirror/internal/local"
	"taskmirror/internal/remote"
	"taskmirror/internal/scheduler"
	"taskmirror/internal/server"
	"taskmirror/internal/store"
	"taskmirror/internal/syncrun"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and sync scheduler",
	Long: `Start the taskmirror service: the HTTP API, the WebSocket event
feed, and the periodic sync scheduler.

The scheduler starts automatically when a sync interval has been
configured on a previous run; otherwise it stays stopped until started
through the API. Edits to the config file are picked up while running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cfg.LogFile != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		remoteClient := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token)
		localClient := local.New(cfg.Local.BaseURL, cfg.Local.Token)

		coord := syncrun.NewCoordinator(st, remoteClient, localClient, syncrun.Config{
			Defaults: defaultsFromConfig(cfg),
			Logger:   log.New(log.Writer(), "[sync] ", log.LstdFlags),
		})

		schedLogger := log.New(log.Writer(), "[sched] ", log.LstdFlags)
		sched := scheduler.New(func(ctx context.Context) {
			if _, err := coord.TriggerSync(ctx, ""); err != nil {
				schedLogger.Printf("Scheduled sync not started: %v", err)
			}
		}, schedLogger)
		defer sched.Stop()

		srv := server.New(server.Config{
			Addr:            cfg.ListenAddr,
			DefaultInterval: cfg.Sync.IntervalMinutes,
			Logger:          log.New(log.Writer(), "[server] ", log.LstdFlags),
		}, st, coord, sched, remoteClient, localClient)

		coord.SetNotify(srv.NotifyRun)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}

		// Resume the schedule from a previous session. A fresh install
		// stays stopped until the scheduler is started via the API.
		interval, err := st.GetSetting(cmd.Context(), store.SettingSyncInterval, "")
		if err != nil {
			return err
		}
		if interval != "" {
			minutes, err := st.GetSettingInt(cmd.Context(), store.SettingSyncInterval, cfg.Sync.IntervalMinutes)
			if err != nil {
				return err
			}
			sched.Start(time.Duration(minutes) * time.Minute)
		}

		watcher, err := config.NewWatcher(configPath, func(fresh *config.Config) {
			// Connection details and the listen address need a
			// restart; the sync defaults apply live, and persisted
			// settings still win over them.
			coord.SetDefaults(defaultsFromConfig(fresh))
			srv.SetDefaultInterval(fresh.Sync.IntervalMinutes)
			log.Printf("Config reloaded; connection settings apply on next restart")
		}, log.New(log.Writer(), "[config] ", log.LstdFlags))
		if err != nil {
			log.Printf("Config watcher unavailable: %v", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}

		fmt.Printf("taskmirror listening on http://%s\n", srv.Addr())
		fmt.Printf("WebSocket events: ws://%s/ws\n", srv.Addr())

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := srv.Stop(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
