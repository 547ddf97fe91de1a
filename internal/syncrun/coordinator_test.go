package syncrun

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskmirror/internal/item"
	"taskmirror/internal/store"
)

func newCoordinator(t *testing.T, r *rig) *Coordinator {
	t.Helper()
	return NewCoordinator(r.store, r.remote, r.local, Config{
		Defaults: Defaults{
			Direction:    item.Bidirectional,
			RemoteListID: "@default",
			LocalListID:  "list-1",
		},
	})
}

func TestTriggerSync_RecordsSuccessfulRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	r.remote.add("task-1", "Buy milk", false)

	run, err := c.TriggerSync(ctx, "")
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if run.Status != store.RunSuccess {
		t.Errorf("status = %q, want success", run.Status)
	}
	if run.TasksSynced != 1 {
		t.Errorf("tasks synced = %d, want 1", run.TasksSynced)
	}
	if run.CompletedAt == nil {
		t.Error("run not finalized")
	}

	got, err := r.store.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun() failed: %v", err)
	}
	if got == nil || got.ID != run.ID || got.Status != store.RunSuccess {
		t.Errorf("persisted run = %+v", got)
	}
}

func TestTriggerSync_FailureBecomesFailedRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	r.remote.connected = false

	run, err := c.TriggerSync(ctx, "")
	if err != nil {
		t.Fatalf("reconciliation failure leaked as a trigger error: %v", err)
	}
	if run.Status != store.RunFailed {
		t.Errorf("status = %q, want failed", run.Status)
	}
	if run.ErrorMessage == "" {
		t.Error("failed run has no error message")
	}
	if run.CompletedAt == nil {
		t.Error("failed run not finalized")
	}
}

func TestTriggerSync_DirectionFromSettings(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	if err := r.store.SetSetting(ctx, store.SettingDirection, string(item.RemoteToLocal)); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	r.local.add("rem-1", "Local only", false)

	run, err := c.TriggerSync(ctx, "")
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if run.Direction != item.RemoteToLocal {
		t.Errorf("direction = %q, want setting value", run.Direction)
	}
	// remote_to_local must not touch the remote side.
	if r.remote.creates != 0 {
		t.Error("local item was pushed despite remote_to_local direction")
	}
}

func TestTriggerSync_ExplicitDirectionOverridesSettings(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	if err := r.store.SetSetting(ctx, store.SettingDirection, string(item.RemoteToLocal)); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}

	run, err := c.TriggerSync(ctx, item.LocalToRemote)
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if run.Direction != item.LocalToRemote {
		t.Errorf("direction = %q, want explicit local_to_remote", run.Direction)
	}
}

func TestTriggerSync_RejectsConcurrentRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)

	started := make(chan struct{})
	release := make(chan struct{})
	r.remote.onList = func() {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := c.TriggerSync(context.Background(), "")
		done <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first run never started")
	}

	if _, err := c.TriggerSync(context.Background(), ""); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent trigger: got %v, want ErrRunInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// The lock is released once the run completes.
	r.remote.onList = nil
	if _, err := c.TriggerSync(context.Background(), ""); err != nil {
		t.Errorf("trigger after completion failed: %v", err)
	}
}

func TestSetDefaults_AppliedToNextRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	r.local.add("rem-1", "Local only", false)

	c.SetDefaults(Defaults{
		Direction:   item.LocalToRemote,
		LocalListID: "list-1",
	})

	run, err := c.TriggerSync(ctx, "")
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if run.Direction != item.LocalToRemote {
		t.Errorf("direction = %q, want the reloaded default", run.Direction)
	}
	if r.remote.creates != 1 {
		t.Errorf("remote creates = %d, want 1 under local_to_remote", r.remote.creates)
	}

	// Persisted settings still win over the new defaults.
	if err := r.store.SetSetting(ctx, store.SettingDirection, string(item.RemoteToLocal)); err != nil {
		t.Fatalf("SetSetting() failed: %v", err)
	}
	run, err = c.TriggerSync(ctx, "")
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if run.Direction != item.RemoteToLocal {
		t.Errorf("direction = %q, want the persisted setting", run.Direction)
	}
}

func TestSetNotify_DuringRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)

	started := make(chan struct{})
	release := make(chan struct{})
	r.remote.onList = func() {
		close(started)
		<-release
	}

	done := make(chan *store.SyncRun, 1)
	go func() {
		run, err := c.TriggerSync(context.Background(), "")
		if err != nil {
			t.Errorf("TriggerSync() failed: %v", err)
		}
		done <- run
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never started")
	}

	// Installing the hook mid-run must be safe, and the in-flight run is
	// delivered to it on completion.
	var notified *store.SyncRun
	c.SetNotify(func(run *store.SyncRun) { notified = run })

	close(release)
	run := <-done
	if run == nil {
		t.Fatal("run not returned")
	}
	if notified == nil || notified.ID != run.ID {
		t.Errorf("notified = %+v, want run %d", notified, run.ID)
	}
}

func TestTriggerSync_NotifiesFinalizedRun(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)

	var notified *store.SyncRun
	c.SetNotify(func(run *store.SyncRun) { notified = run })

	run, err := c.TriggerSync(context.Background(), "")
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if notified == nil {
		t.Fatal("notify hook not called")
	}
	if notified.ID != run.ID || notified.CompletedAt == nil {
		t.Errorf("notified run = %+v, want finalized run %d", notified, run.ID)
	}
}

func TestTriggerSync_EveryTriggerLeavesOneRecord(t *testing.T) {
	r := newRig(t)
	c := newCoordinator(t, r)
	ctx := context.Background()

	// One success, one failure.
	if _, err := c.TriggerSync(ctx, ""); err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	r.remote.connected = false
	if _, err := c.TriggerSync(ctx, ""); err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}

	runs, err := r.store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 run records, got %d", len(runs))
	}
	for _, run := range runs {
		if run.Status != store.RunSuccess && run.Status != store.RunFailed {
			t.Errorf("run %d left non-terminal: %q", run.ID, run.Status)
		}
		if run.CompletedAt == nil {
			t.Errorf("run %d has no completion time", run.ID)
		}
	}
}
