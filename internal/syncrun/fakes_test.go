package syncrun

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"taskmirror/internal/item"
	"taskmirror/internal/store"
)

// fakeSide is an in-memory task/reminder store shared by the remote and
// local fakes. It records call counts so tests can assert on side-effects.
type fakeSide struct {
	mu        sync.Mutex
	connected bool
	items     map[string]item.Snapshot
	seq       int
	idPrefix  string

	failCreateTitle map[string]bool
	failUpdateID    map[string]bool

	creates          int
	updates          int
	completedUpdates int

	onList func()
}

func newFakeSide(prefix string) *fakeSide {
	return &fakeSide{
		connected:       true,
		items:           make(map[string]item.Snapshot),
		idPrefix:        prefix,
		failCreateTitle: make(map[string]bool),
		failUpdateID:    make(map[string]bool),
	}
}

// add seeds an item with a fixed ID and returns it.
func (f *fakeSide) add(id, title string, completed bool) item.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := item.Snapshot{ID: id, Title: title, Completed: completed}
	f.items[id] = it
	return it
}

func (f *fakeSide) get(id string) (item.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	return it, ok
}

func (f *fakeSide) list() []item.Snapshot {
	if f.onList != nil {
		f.onList()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]item.Snapshot, 0, len(f.items))
	for _, it := range f.items {
		out = append(out, it)
	}
	return out
}

func (f *fakeSide) create(it item.Snapshot) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateTitle[it.Title] {
		return "", fmt.Errorf("injected create failure for %q", it.Title)
	}
	f.seq++
	id := fmt.Sprintf("%s-new-%d", f.idPrefix, f.seq)
	it.ID = id
	f.items[id] = it
	f.creates++
	return id, nil
}

func (f *fakeSide) update(id string, p item.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateID[id] {
		return fmt.Errorf("injected update failure for %s", id)
	}
	it, ok := f.items[id]
	if !ok {
		return fmt.Errorf("no such item %s", id)
	}
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Notes != nil {
		it.Notes = *p.Notes
	}
	if p.Due != nil {
		it.Due = p.Due
	}
	if p.Completed != nil {
		it.Completed = *p.Completed
		f.completedUpdates++
	}
	f.items[id] = it
	f.updates++
	return nil
}

// fakeRemote adapts fakeSide to the RemoteTaskStore interface.
type fakeRemote struct{ *fakeSide }

func (f *fakeRemote) IsConnected(ctx context.Context) bool { return f.connected }

func (f *fakeRemote) ListItems(ctx context.Context, listID string) ([]item.Snapshot, error) {
	return f.list(), nil
}

func (f *fakeRemote) CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error) {
	return f.create(it)
}

func (f *fakeRemote) UpdateItem(ctx context.Context, listID, taskID string, p item.Patch) error {
	return f.update(taskID, p)
}

// fakeLocal adapts fakeSide to the LocalReminderStore interface.
type fakeLocal struct{ *fakeSide }

func (f *fakeLocal) IsConnected(ctx context.Context) bool { return f.connected }

func (f *fakeLocal) ListItems(ctx context.Context, listID string) ([]item.Snapshot, error) {
	return f.list(), nil
}

func (f *fakeLocal) CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error) {
	return f.create(it)
}

func (f *fakeLocal) UpdateItem(ctx context.Context, reminderID string, p item.Patch) error {
	return f.update(reminderID, p)
}

// rig bundles a real store with fake adapters.
type rig struct {
	store  *store.Store
	remote *fakeRemote
	local  *fakeLocal
	rec    *Reconciler
}

func newRig(t *testing.T) *rig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	remote := &fakeRemote{newFakeSide("task")}
	local := &fakeLocal{newFakeSide("rem")}

	logger := log.New(os.Stderr, "[test] ", 0)
	return &rig{
		store:  st,
		remote: remote,
		local:  local,
		rec:    NewReconciler(st, remote, local, logger),
	}
}

func testParams(direction item.Direction) Params {
	return Params{
		Direction:    direction,
		RemoteListID: "@default",
		LocalListID:  "list-1",
	}
}
