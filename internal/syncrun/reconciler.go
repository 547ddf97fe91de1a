package syncrun

import (
	"context"
	"log"
	"os"

	"taskmirror/internal/bridge"
	"taskmirror/internal/item"
	"taskmirror/internal/store"
)

// Params carries the resolved inputs of one reconciliation pass.
type Params struct {
	Direction    item.Direction
	RemoteListID string
	LocalListID  string
}

// Counts aggregates per-item outcomes for a pass. Skipped items failed a
// create or update and will be retried on the next pass.
type Counts struct {
	Tasks     int
	Reminders int
	Skipped   int
}

// Reconciler computes and applies the convergence plan for one pass.
// It holds no mutable state between runs; all durable state lives in the
// mapping table.
type Reconciler struct {
	store  *store.Store
	remote bridge.RemoteTaskStore
	local  bridge.LocalReminderStore
	logger *log.Logger
}

// NewReconciler creates a reconciler over the given stores.
// If logger is nil, a default logger writing to stderr is used.
func NewReconciler(st *store.Store, remote bridge.RemoteTaskStore, local bridge.LocalReminderStore, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Reconciler{
		store:  st,
		remote: remote,
		local:  local,
		logger: logger,
	}
}

// Run executes one reconciliation pass.
//
// Preconditions (connectivity on both sides, a configured local list) are
// checked before any item is touched; violations return a StateError and
// fail the whole run. After that, failures are contained per item: the
// offending item is logged, counted as skipped, and its mapping is left
// unchanged so the next pass retries it.
func (r *Reconciler) Run(ctx context.Context, p Params) (Counts, error) {
	var counts Counts

	if !p.Direction.Valid() {
		return counts, stateErrorf("unknown sync direction %q", p.Direction)
	}
	if !r.remote.IsConnected(ctx) {
		return counts, stateErrorf("remote task service is not connected; authenticate first")
	}
	if !r.local.IsConnected(ctx) {
		return counts, stateErrorf("local reminders store is not connected; check the bridge")
	}
	if p.LocalListID == "" {
		return counts, stateErrorf("local reminder list not configured; select a list first")
	}

	var remoteItems, localItems map[string]item.Snapshot

	if p.Direction == item.RemoteToLocal || p.Direction == item.Bidirectional {
		items, err := r.remote.ListItems(ctx, p.RemoteListID)
		if err != nil {
			return counts, stateErrorf("failed to list remote tasks: %v", err)
		}
		remoteItems = item.IndexByID(items)
	}

	if p.Direction == item.LocalToRemote || p.Direction == item.Bidirectional {
		items, err := r.local.ListItems(ctx, p.LocalListID)
		if err != nil {
			return counts, stateErrorf("failed to list local reminders: %v", err)
		}
		localItems = item.IndexByID(items)
	}

	switch p.Direction {
	case item.RemoteToLocal:
		for _, it := range remoteItems {
			if err := r.pushRemoteItem(ctx, it, p); err != nil {
				r.logger.Printf("WARNING: %v (skipped)", err)
				counts.Skipped++
				continue
			}
			counts.Tasks++
		}

	case item.LocalToRemote:
		for _, it := range localItems {
			if err := r.pushLocalItem(ctx, it, p); err != nil {
				r.logger.Printf("WARNING: %v (skipped)", err)
				counts.Skipped++
				continue
			}
			counts.Reminders++
		}

	case item.Bidirectional:
		if err := r.reconcileBoth(ctx, p, remoteItems, localItems, &counts); err != nil {
			return counts, err
		}
	}

	return counts, nil
}

// reconcileBoth runs the two bidirectional phases: existing pairs first,
// then creation of counterparts for unmapped items.
func (r *Reconciler) reconcileBoth(ctx context.Context, p Params, remoteItems, localItems map[string]item.Snapshot, counts *Counts) error {
	mappings, err := r.store.ListMappings(ctx)
	if err != nil {
		return stateErrorf("failed to load mappings: %v", err)
	}

	// Phase A: reconcile completion and content for mapped pairs present
	// on both sides.
	for _, m := range mappings {
		remoteIt, haveRemote := remoteItems[m.RemoteID]
		localIt, haveLocal := localItems[m.LocalID]
		if !haveRemote || !haveLocal {
			continue
		}

		if err := r.reconcilePair(ctx, m, remoteIt, localIt); err != nil {
			r.logger.Printf("WARNING: %v (skipped)", err)
			counts.Skipped++
			continue
		}
		counts.Tasks++
	}

	// Phase B: create counterparts for items neither side has seen before.
	mappedRemote := make(map[string]bool, len(mappings))
	mappedLocal := make(map[string]bool, len(mappings))
	for _, m := range mappings {
		if m.RemoteID != "" {
			mappedRemote[m.RemoteID] = true
		}
		if m.LocalID != "" {
			mappedLocal[m.LocalID] = true
		}
	}

	for id, it := range remoteItems {
		if mappedRemote[id] {
			continue
		}
		if err := r.pushRemoteItem(ctx, it, p); err != nil {
			r.logger.Printf("WARNING: %v (skipped)", err)
			counts.Skipped++
			continue
		}
		counts.Tasks++
	}

	for id, it := range localItems {
		if mappedLocal[id] {
			continue
		}
		if err := r.pushLocalItem(ctx, it, p); err != nil {
			r.logger.Printf("WARNING: %v (skipped)", err)
			counts.Skipped++
			continue
		}
		counts.Reminders++
	}

	return nil
}

// reconcilePair converges one mapped pair present on both sides.
//
// Completion is two-way: the side whose state differs from the baseline is
// the side that changed and wins; if both changed and disagree, completion
// resolves by OR. Content is one-way: title and notes are pushed from the
// remote task onto the local reminder on every pass. The baseline is only
// advanced once every push for the pair has succeeded.
func (r *Reconciler) reconcilePair(ctx context.Context, m *store.Mapping, remoteIt, localIt item.Snapshot) error {
	remoteChanged := remoteIt.Completed != m.LastKnownCompleted
	localChanged := localIt.Completed != m.LastKnownCompleted
	final := m.LastKnownCompleted

	switch {
	case remoteChanged && !localChanged:
		final = remoteIt.Completed
		patch := item.Patch{Completed: item.Bool(final)}
		if err := r.local.UpdateItem(ctx, m.LocalID, patch); err != nil {
			return itemErr("local", m.LocalID, err)
		}

	case localChanged && !remoteChanged:
		final = localIt.Completed
		patch := item.Patch{Completed: item.Bool(final)}
		if err := r.remote.UpdateItem(ctx, m.RemoteListID, m.RemoteID, patch); err != nil {
			return itemErr("remote", m.RemoteID, err)
		}

	case remoteChanged && localChanged:
		// Both moved since the last pass. A completion on either side
		// wins over an un-completion.
		final = remoteIt.Completed || localIt.Completed
		if remoteIt.Completed != final {
			patch := item.Patch{Completed: item.Bool(final)}
			if err := r.remote.UpdateItem(ctx, m.RemoteListID, m.RemoteID, patch); err != nil {
				return itemErr("remote", m.RemoteID, err)
			}
		}
		if localIt.Completed != final {
			patch := item.Patch{Completed: item.Bool(final)}
			if err := r.local.UpdateItem(ctx, m.LocalID, patch); err != nil {
				return itemErr("local", m.LocalID, err)
			}
		}
	}

	// Content always flows remote to local, even when nothing moved.
	content := item.Patch{
		Title: item.String(remoteIt.Title),
		Notes: item.String(remoteIt.Notes),
	}
	if err := r.local.UpdateItem(ctx, m.LocalID, content); err != nil {
		return itemErr("local", m.LocalID, err)
	}

	m.Title = remoteIt.Title
	m.LastKnownCompleted = final
	if err := r.store.UpsertMapping(ctx, m); err != nil {
		return itemErr("mapping", m.RemoteID, err)
	}

	return nil
}

// pushRemoteItem mirrors one remote task onto the local side: update the
// mapped reminder if one exists, otherwise create it and record the new
// mapping. The baseline is seeded from the task's completion so a task that
// arrives already completed never reads as a change on the next pass.
func (r *Reconciler) pushRemoteItem(ctx context.Context, it item.Snapshot, p Params) error {
	m, err := r.store.FindByRemoteID(ctx, it.ID)
	if err != nil {
		return itemErr("mapping", it.ID, err)
	}

	if m != nil && m.LocalID != "" {
		patch := item.Patch{
			Title:     item.String(it.Title),
			Notes:     item.String(it.Notes),
			Due:       it.Due,
			Completed: item.Bool(it.Completed),
		}
		if err := r.local.UpdateItem(ctx, m.LocalID, patch); err != nil {
			return itemErr("local", m.LocalID, err)
		}
	} else {
		localID, err := r.local.CreateItem(ctx, p.LocalListID, it)
		if err != nil {
			return itemErr("local", it.ID, err)
		}
		if m == nil {
			m = &store.Mapping{
				RemoteID:     it.ID,
				RemoteListID: p.RemoteListID,
			}
		}
		m.LocalID = localID
		m.LocalListID = p.LocalListID
	}

	m.Title = it.Title
	m.LastKnownCompleted = it.Completed
	if err := r.store.UpsertMapping(ctx, m); err != nil {
		return itemErr("mapping", it.ID, err)
	}

	return nil
}

// pushLocalItem is the symmetric path: mirror one local reminder onto the
// remote side.
func (r *Reconciler) pushLocalItem(ctx context.Context, it item.Snapshot, p Params) error {
	m, err := r.store.FindByLocalID(ctx, it.ID)
	if err != nil {
		return itemErr("mapping", it.ID, err)
	}

	if m != nil && m.RemoteID != "" {
		patch := item.Patch{
			Title:     item.String(it.Title),
			Notes:     item.String(it.Notes),
			Due:       it.Due,
			Completed: item.Bool(it.Completed),
		}
		if err := r.remote.UpdateItem(ctx, m.RemoteListID, m.RemoteID, patch); err != nil {
			return itemErr("remote", m.RemoteID, err)
		}
	} else {
		remoteID, err := r.remote.CreateItem(ctx, p.RemoteListID, it)
		if err != nil {
			return itemErr("remote", it.ID, err)
		}
		if m == nil {
			m = &store.Mapping{
				LocalID:     it.ID,
				LocalListID: p.LocalListID,
			}
		}
		m.RemoteID = remoteID
		m.RemoteListID = p.RemoteListID
	}

	m.Title = it.Title
	m.LastKnownCompleted = it.Completed
	if err := r.store.UpsertMapping(ctx, m); err != nil {
		return itemErr("mapping", it.ID, err)
	}

	return nil
}
