// Package syncrun implements the bidirectional reconciliation engine that
// keeps a remote task list and a local reminders list converged.
//
// Overview
//
// The engine compares fresh snapshots of both sides against the persisted
// mapping table and applies the minimal set of creates and updates needed
// to converge them:
//
//	Remote task service ──┐
//	                      ├──> Reconciler ──> mapping table (SQLite)
//	Local reminders    ───┘         │
//	                                └──> creates/updates on either side
//
// Change detection relies on the last-known-completed baseline stored on
// each mapping: a side whose completion differs from the baseline is the
// side that changed since the previous pass. When both sides changed and
// disagree, completion resolves by OR (a completion on either side wins).
// Descriptive fields (title, notes) always flow remote to local.
//
// The Coordinator wraps one reconciliation pass with a sync run record,
// failure containment, and a run-lock, and is the single entry point for
// both manual triggers and scheduled fires.
//
// Error Handling
//
// Three failure classes are distinguished:
//
//   - StateError: preconditions unmet (store unreachable, list not
//     configured). The whole run fails before any item is touched.
//   - per-item errors: one create/update call failed. The item is logged
//     and skipped; its mapping is left unchanged so the next pass retries.
//   - store.ErrConflict: a mapping write would violate uniqueness. Aborts
//     that item only.
//
// Concurrency
//
// The reconciler itself makes no mutual-exclusion guarantee. The
// Coordinator serializes passes with a run-lock: a trigger arriving while
// a pass is in flight is rejected with ErrRunInProgress rather than queued.
package syncrun
