// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package settings persists the user-editable settings in a small SQLite
// key/value table: the Scopus API key, the contact email and the keyword
// normalization exception list.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/curation-engine/pkg/types"
)

// Setting keys.
const (
	KeyScopusAPIKey  = "scopus-api-key"
	KeyContactEmail  = "contact-email"
	KeyExceptionList = "exception-list"
)

// Known lists the keys accepted by Set.
var Known = []string{KeyScopusAPIKey, KeyContactEmail, KeyExceptionList}

// defaultDBFile is relative to the XDG data home.
const defaultDBFile = "curation-engine/settings.db"

// ErrUnknownKey is returned by Set for keys outside Known.
var ErrUnknownKey = errors.New("unknown setting")

// Store is the SQLite-backed settings store.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the settings database path under the XDG data home,
// creating its directory.
func DefaultPath() (string, error) {
	p, err := xdg.DataFile(defaultDBFile)
	if err != nil {
		return "", fmt.Errorf("resolving settings path: %w", err)
	}
	return p, nil
}

// Open opens or creates the settings database at cfg.Path, or at
// DefaultPath when it is empty.
func Open(cfg types.SettingsConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening settings database: %w", err)
	}
	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	return err
}

// Get returns the stored value and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key. An empty value deletes the key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if !isKnown(key) {
		return fmt.Errorf("%w: %q (known: %v)", ErrUnknownKey, key, Known)
	}
	if key == KeyExceptionList {
		if _, err := ParseExceptions(value); err != nil {
			return err
		}
	}
	if value == "" {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
			return fmt.Errorf("deleting setting %s: %w", key, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// APIKey returns the stored Scopus API key, or "" when none is set.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	v, _, err := s.Get(ctx, KeyScopusAPIKey)
	return v, err
}

// SetAPIKey stores the Scopus API key.
func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, KeyScopusAPIKey, key)
}

// ExceptionList returns the stored exception list text, or
// DefaultExceptionList when none is stored.
func (s *Store) ExceptionList(ctx context.Context) (string, error) {
	v, ok, err := s.Get(ctx, KeyExceptionList)
	if err != nil {
		return "", err
	}
	if !ok {
		return DefaultExceptionList, nil
	}
	return v, nil
}

// SetExceptionList validates and stores the exception list text.
func (s *Store) SetExceptionList(ctx context.Context, text string) error {
	return s.Set(ctx, KeyExceptionList, text)
}

// Exceptions parses the current exception list.
func (s *Store) Exceptions(ctx context.Context) (Exceptions, error) {
	text, err := s.ExceptionList(ctx)
	if err != nil {
		return nil, err
	}
	return ParseExceptions(text)
}

func isKnown(key string) bool {
	for _, k := range Known {
		if k == key {
			return true
		}
	}
	return false
}
