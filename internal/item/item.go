// Package item provides the normalized view of tasks and reminders that the
// reconciliation engine operates on. Snapshots are produced fresh from the
// store adapters on every pass and are never persisted.
package item

import "time"

// Direction selects which way a reconciliation pass pushes changes.
type Direction string

const (
	// RemoteToLocal pushes remote tasks onto local reminders.
	RemoteToLocal Direction = "remote_to_local"

	// LocalToRemote pushes local reminders onto remote tasks.
	LocalToRemote Direction = "local_to_remote"

	// Bidirectional reconciles completion both ways using the persisted
	// baseline, and pushes descriptive fields remote to local.
	Bidirectional Direction = "bidirectional"
)

// Valid reports whether d is one of the three known directions.
func (d Direction) Valid() bool {
	switch d {
	case RemoteToLocal, LocalToRemote, Bidirectional:
		return true
	}
	return false
}

// Snapshot is the normalized form of one remote task or local reminder.
type Snapshot struct {
	ID        string
	Title     string
	Notes     string
	Due       *time.Time
	Completed bool
}

// Patch describes a partial update to a task or reminder.
// Only non-nil fields are applied by the store adapters.
type Patch struct {
	Title     *string
	Notes     *string
	Due       *time.Time
	Completed *bool
}

// IsEmpty reports whether the patch carries no changes.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Notes == nil && p.Due == nil && p.Completed == nil
}

// String returns a pointer to s, for building patches.
func String(s string) *string { return &s }

// Bool returns a pointer to b, for building patches.
func Bool(b bool) *bool { return &b }

// IndexByID builds a lookup map from item ID to snapshot, dropping items
// with an empty title. Untitled items are invisible to reconciliation.
func IndexByID(items []Snapshot) map[string]Snapshot {
	m := make(map[string]Snapshot, len(items))
	for _, it := range items {
		if it.Title == "" {
			continue
		}
		m[it.ID] = it
	}
	return m
}
