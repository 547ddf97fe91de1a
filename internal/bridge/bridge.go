// Package bridge defines the capability interfaces the reconciliation engine
// needs from the two task stores. The engine only ever talks to these
// interfaces; the concrete HTTP clients live in internal/remote and
// internal/local.
package bridge

import (
	"context"

	"taskmirror/internal/item"
)

// RemoteTaskStore provides access to the remote task service.
// Implemented by [remote.Client].
type RemoteTaskStore interface {
	// IsConnected reports whether the remote service is reachable and
	// authenticated. Consulted as a precondition gate before every run.
	IsConnected(ctx context.Context) bool

	// ListItems returns every task in the list, paging transparently
	// until the listing is exhausted.
	ListItems(ctx context.Context, listID string) ([]item.Snapshot, error)

	// CreateItem creates a task and returns its remote ID.
	CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error)

	// UpdateItem applies the non-nil fields of patch to an existing task.
	UpdateItem(ctx context.Context, listID, taskID string, patch item.Patch) error
}

// LocalReminderStore provides access to the local reminders store.
// Implemented by [local.Client].
type LocalReminderStore interface {
	// IsConnected reports whether the reminders store is reachable.
	IsConnected(ctx context.Context) bool

	// ListItems returns every reminder in the list.
	ListItems(ctx context.Context, listID string) ([]item.Snapshot, error)

	// CreateItem creates a reminder and returns its local ID.
	CreateItem(ctx context.Context, listID string, it item.Snapshot) (string, error)

	// UpdateItem applies the non-nil fields of patch to an existing
	// reminder. Reminders are addressable by ID alone, so no list is
	// required.
	UpdateItem(ctx context.Context, reminderID string, patch item.Patch) error
}
