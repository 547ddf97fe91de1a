package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Setting keys understood by the service. Values live in the settings table
// so they survive restarts and can be changed through the API without
// touching the config file.
const (
	SettingSyncInterval = "sync_interval_minutes"
	SettingDirection    = "sync_direction"
	SettingRemoteList   = "remote_list_id"
	SettingLocalList    = "local_list_id"
)

// GetSetting returns the value for key, or fallback if the key is unset.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) (string, error) {
	var value sql.NullString
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !value.Valid || value.String == "" {
		return fallback, nil
	}
	return value.String, nil
}

// GetSettingInt returns the integer value for key, or fallback if the key
// is unset or not a number.
func (s *Store) GetSettingInt(ctx context.Context, key string, fallback int) (int, error) {
	raw, err := s.GetSetting(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// SetSetting stores the value for key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query, key, value,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}
