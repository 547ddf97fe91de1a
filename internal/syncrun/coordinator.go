package syncrun

import (
	"context"
	"log"
	"os"
	"sync"

	"taskmirror/internal/bridge"
	"taskmirror/internal/item"
	"taskmirror/internal/store"
)

// Defaults supplies fallback values when the settings table has no entry.
// They come from the config file.
type Defaults struct {
	Direction    item.Direction
	RemoteListID string
	LocalListID  string
}

// Coordinator wraps one reconciler invocation with a run record, failure
// containment, and a run-lock. It is the single entry point for manual
// triggers and scheduler fires.
type Coordinator struct {
	store      *store.Store
	reconciler *Reconciler
	logger     *log.Logger

	// mu guards defaults and notify, which the serve command may swap
	// while a run is executing (config reload, late server wiring).
	mu       sync.Mutex
	defaults Defaults

	// notify, when set, receives every finalized run for broadcast.
	notify func(*store.SyncRun)

	// runMu serializes reconciliation passes. Concurrent triggers are
	// rejected, not queued.
	runMu sync.Mutex
}

// Config holds coordinator construction options.
type Config struct {
	Defaults Defaults
	Logger   *log.Logger

	// Notify is called with every finalized run, on the triggering
	// goroutine. Optional.
	Notify func(*store.SyncRun)
}

// NewCoordinator creates a coordinator over the given stores.
func NewCoordinator(st *store.Store, remote bridge.RemoteTaskStore, local bridge.LocalReminderStore, cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Coordinator{
		store:      st,
		reconciler: NewReconciler(st, remote, local, logger),
		defaults:   normalizeDefaults(cfg.Defaults),
		logger:     logger,
		notify:     cfg.Notify,
	}
}

func normalizeDefaults(d Defaults) Defaults {
	if d.Direction == "" {
		d.Direction = item.Bidirectional
	}
	if d.RemoteListID == "" {
		d.RemoteListID = "@default"
	}
	return d
}

// SetNotify installs the finalized-run hook after construction. Useful when
// the listener (e.g. the API server) is built after the coordinator.
// Safe to call while a run is in flight.
func (c *Coordinator) SetNotify(fn func(*store.SyncRun)) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// SetDefaults replaces the config-file fallbacks, e.g. after a config
// reload. Persisted settings still win over them. Takes effect on the next
// triggered run.
func (c *Coordinator) SetDefaults(d Defaults) {
	c.mu.Lock()
	c.defaults = normalizeDefaults(d)
	c.mu.Unlock()
}

// TriggerSync executes one reconciliation pass and returns its run record.
//
// An empty direction falls back to the persisted setting, then to the
// configured default. The run record is always finalized exactly once:
// reconciliation errors are recorded as a failed run, not returned. A
// non-nil error means no pass was started (run-lock held, settings or run
// log unavailable).
func (c *Coordinator) TriggerSync(ctx context.Context, direction item.Direction) (*store.SyncRun, error) {
	if !c.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.runMu.Unlock()

	params, err := c.resolveParams(ctx, direction)
	if err != nil {
		return nil, err
	}

	run, err := c.store.CreateRun(ctx, params.Direction)
	if err != nil {
		return nil, err
	}

	c.logger.Printf("Run %d started (direction=%s)", run.ID, params.Direction)

	counts, runErr := c.reconciler.Run(ctx, params)
	run.TasksSynced = counts.Tasks
	run.RemindersSynced = counts.Reminders

	if runErr != nil {
		run.Status = store.RunFailed
		run.ErrorMessage = runErr.Error()
		c.logger.Printf("Run %d failed: %v", run.ID, runErr)
	} else {
		run.Status = store.RunSuccess
		c.logger.Printf("Run %d complete: tasks=%d, reminders=%d, skipped=%d",
			run.ID, counts.Tasks, counts.Reminders, counts.Skipped)
	}

	if err := c.store.FinalizeRun(ctx, run); err != nil {
		return run, err
	}

	c.mu.Lock()
	notify := c.notify
	c.mu.Unlock()
	if notify != nil {
		notify(run)
	}

	return run, nil
}

// resolveParams reads the effective direction and list identifiers from the
// settings table, falling back to config defaults.
func (c *Coordinator) resolveParams(ctx context.Context, direction item.Direction) (Params, error) {
	var p Params

	c.mu.Lock()
	defaults := c.defaults
	c.mu.Unlock()

	if direction == "" {
		raw, err := c.store.GetSetting(ctx, store.SettingDirection, string(defaults.Direction))
		if err != nil {
			return p, err
		}
		direction = item.Direction(raw)
	}
	p.Direction = direction

	remoteList, err := c.store.GetSetting(ctx, store.SettingRemoteList, defaults.RemoteListID)
	if err != nil {
		return p, err
	}
	p.RemoteListID = remoteList

	localList, err := c.store.GetSetting(ctx, store.SettingLocalList, defaults.LocalListID)
	if err != nil {
		return p, err
	}
	p.LocalListID = localList

	return p, nil
}
