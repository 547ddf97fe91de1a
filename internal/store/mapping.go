package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrConflict is returned by UpsertMapping when a write would violate the
// one-mapping-per-remote-id or one-mapping-per-local-id invariant.
var ErrConflict = errors.New("mapping conflict: id already correlated")

// Mapping correlates one remote task with one local reminder.
//
// A mapping may have only one side populated while the counterpart is
// pending creation, but never neither. LastKnownCompleted is the completion
// state as of the last successful reconciliation touching this mapping; it
// is the change-detection baseline, not the current truth.
type Mapping struct {
	ID                 int64
	RemoteID           string
	RemoteListID       string
	LocalID            string
	LocalListID        string
	Title              string
	LastKnownCompleted bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Validate checks the mapping invariants before it is written.
func (m *Mapping) Validate() error {
	if m.RemoteID == "" && m.LocalID == "" {
		return fmt.Errorf("mapping must reference at least one side")
	}
	if m.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

const mappingColumns = `id, remote_id, remote_list_id, local_id, local_list_id,
	title, last_known_completed, created_at, updated_at`

// FindByRemoteID returns the mapping for a remote task ID, or nil if the
// task has never been correlated.
func (s *Store) FindByRemoteID(ctx context.Context, remoteID string) (*Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM mappings WHERE remote_id = ?`
	return s.findMapping(ctx, query, remoteID)
}

// FindByLocalID returns the mapping for a local reminder ID, or nil if the
// reminder has never been correlated.
func (s *Store) FindByLocalID(ctx context.Context, localID string) (*Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM mappings WHERE local_id = ?`
	return s.findMapping(ctx, query, localID)
}

func (s *Store) findMapping(ctx context.Context, query string, arg string) (*Mapping, error) {
	row := s.conn.QueryRowContext(ctx, query, arg)
	m, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping: %w", err)
	}
	return m, nil
}

// ListMappings returns every mapping, ordered by creation.
func (s *Store) ListMappings(ctx context.Context) ([]*Mapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM mappings ORDER BY id ASC`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mappings: %w", err)
	}

	return mappings, nil
}

// UpsertMapping inserts the mapping if its ID is zero, otherwise updates the
// existing row. The new row ID is written back on insert. Each upsert is its
// own committed statement, so a crash mid-run never loses acknowledged
// correlations.
//
// Returns ErrConflict if the write would correlate a remote or local ID
// that is already claimed by another mapping. No retries are attempted.
func (s *Store) UpsertMapping(ctx context.Context, m *Mapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid mapping: %w", err)
	}

	now := time.Now().UTC()
	m.UpdatedAt = now

	if m.ID == 0 {
		m.CreatedAt = now
		query := `
		INSERT INTO mappings (
			remote_id, remote_list_id, local_id, local_list_id,
			title, last_known_completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		res, err := s.conn.ExecContext(ctx, query,
			stringToNull(m.RemoteID),
			stringToNull(m.RemoteListID),
			stringToNull(m.LocalID),
			stringToNull(m.LocalListID),
			m.Title,
			boolToInt(m.LastKnownCompleted),
			m.CreatedAt.Format(time.RFC3339),
			m.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			return mapConstraintErr(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read mapping id: %w", err)
		}
		m.ID = id
		return nil
	}

	query := `
	UPDATE mappings SET
		remote_id = ?,
		remote_list_id = ?,
		local_id = ?,
		local_list_id = ?,
		title = ?,
		last_known_completed = ?,
		updated_at = ?
	WHERE id = ?
	`
	_, err := s.conn.ExecContext(ctx, query,
		stringToNull(m.RemoteID),
		stringToNull(m.RemoteListID),
		stringToNull(m.LocalID),
		stringToNull(m.LocalListID),
		m.Title,
		boolToInt(m.LastKnownCompleted),
		m.UpdatedAt.Format(time.RFC3339),
		m.ID,
	)
	if err != nil {
		return mapConstraintErr(err)
	}
	return nil
}

// CountMappings returns the total number of mappings.
func (s *Store) CountMappings(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM mappings").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

// mapConstraintErr translates SQLite uniqueness violations to ErrConflict
// so callers don't depend on driver error types.
func mapConstraintErr(err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("failed to upsert mapping: %w", err)
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMapping(row scanner) (*Mapping, error) {
	var m Mapping
	var remoteID, remoteListID, localID, localListID sql.NullString
	var completed int
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID,
		&remoteID,
		&remoteListID,
		&localID,
		&localListID,
		&m.Title,
		&completed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.RemoteID = remoteID.String
	m.RemoteListID = remoteListID.String
	m.LocalID = localID.String
	m.LocalListID = localListID.String
	m.LastKnownCompleted = completed != 0

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		m.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		m.UpdatedAt = t
	}

	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
