package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/valpere/doctran/internal/terminology"
)

// Setting keys understood by TerminologySettings.
const (
	SettingTerminologyEnabled = "terminology_enabled"
	SettingTerminologyCase    = "terminology_case_sensitive"
	SettingCategoriesEnabled  = "terminology_categories_enabled"
	SettingMaxCategories      = "terminology_max_categories"
)

// TerminologySettings are the persisted defaults for terminology protection.
type TerminologySettings struct {
	Enabled           bool
	CaseSensitive     bool
	CategoriesEnabled bool
	MaxCategories     int
}

// GetSetting returns the raw value of key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}

// TerminologySettings reads the terminology settings. Missing or unparsable
// values fall back to enabled, case-insensitive, categories on and
// terminology.DefaultMaxCategories.
func (s *Store) TerminologySettings(ctx context.Context) (TerminologySettings, error) {
	out := TerminologySettings{
		Enabled:           true,
		CategoriesEnabled: true,
		MaxCategories:     terminology.DefaultMaxCategories,
	}

	flags := map[string]*bool{
		SettingTerminologyEnabled: &out.Enabled,
		SettingTerminologyCase:    &out.CaseSensitive,
		SettingCategoriesEnabled:  &out.CategoriesEnabled,
	}
	for key, dst := range flags {
		v, ok, err := s.GetSetting(ctx, key)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}

	v, ok, err := s.GetSetting(ctx, SettingMaxCategories)
	if err != nil {
		return out, err
	}
	if ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.MaxCategories = n
		}
	}
	return out, nil
}

// EngineOverride returns the stored override object for name.
func (s *Store) EngineOverride(ctx context.Context, name string) (json.RawMessage, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM engine_configs WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(raw), true, nil
}

// SetEngineOverride stores raw for name. Callers validate raw first.
func (s *Store) SetEngineOverride(ctx context.Context, name string, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("override for %s is not valid JSON", name)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO engine_configs (name, config, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		name, string(raw), time.Now())
	return err
}

func (s *Store) DeleteEngineOverride(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM engine_configs WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return checkAffected(res, "engine override", name)
}

// EngineOverrideNames lists engines that have an override, sorted.
func (s *Store) EngineOverrideNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM engine_configs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, rows.Err()
}
