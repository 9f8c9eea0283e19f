package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/handtrace/internal/config"
)

const keyVisualization = "visualization"

// SettingsRepository stores key/value application settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the raw value of key.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Visualization returns the stored visualization settings. Fields missing
// from the stored value keep the values of fallback; with nothing stored
// fallback is returned as is.
func (r *SettingsRepository) Visualization(fallback config.Visualization) (config.Visualization, error) {
	raw, err := r.Get(keyVisualization)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return fallback, err
	}

	v := fallback
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fallback, fmt.Errorf("decode visualization settings: %w", err)
	}
	return v, nil
}

// SetVisualization validates and stores visualization settings.
func (r *SettingsRepository) SetVisualization(v config.Visualization) error {
	if err := v.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.Set(keyVisualization, string(data))
}
