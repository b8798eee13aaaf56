// Package local provides the SQLite-backed local-first store. It stands in
// for the browser storage the site wrote to before any network call.
package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/garciabuilder/site-service/internal/core/domain"
)

// Ensure Store implements domain.LocalStore
var _ domain.LocalStore = (*Store)(nil)

// Store implements domain.LocalStore using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (creating if needed) the SQLite database at path and runs migrations.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create local store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	// One writer at a time; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure local store: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put writes entry under (namespace, key), replacing any previous value.
// A zero SchemaVersion or UpdatedAt is filled in.
func (s *Store) Put(ctx context.Context, namespace, key string, entry domain.LocalEntry) error {
	if entry.SchemaVersion == 0 {
		entry.SchemaVersion = domain.SchemaVersion
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = s.now()
	}
	payload := entry.Data
	if len(payload) == 0 {
		payload = []byte("null")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO local_entries (namespace, key, schema_version, payload, synced, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			schema_version = excluded.schema_version,
			payload = excluded.payload,
			synced = excluded.synced,
			updated_at = excluded.updated_at
	`, namespace, key, entry.SchemaVersion, string(payload), boolToInt(entry.Synced), entry.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to put local entry %q: %w", key, err)
	}
	return nil
}

// Get reads one entry.
func (s *Store) Get(ctx context.Context, namespace, key string) (domain.LocalEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT schema_version, payload, synced, updated_at
		FROM local_entries
		WHERE namespace = ? AND key = ?
	`, namespace, key)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LocalEntry{}, fmt.Errorf("get %q: %w", key, domain.ErrEntryNotFound)
	}
	if err != nil {
		return domain.LocalEntry{}, fmt.Errorf("failed to get local entry %q: %w", key, err)
	}
	if entry.SchemaVersion > domain.SchemaVersion {
		return domain.LocalEntry{}, fmt.Errorf("entry %q has schema %d: %w", key, entry.SchemaVersion, domain.ErrSchemaVersion)
	}
	return entry, nil
}

// Delete removes keys from namespace. Missing keys are ignored.
func (s *Store) Delete(ctx context.Context, namespace string, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM local_entries WHERE namespace = ? AND key = ?",
			namespace, key,
		); err != nil {
			return fmt.Errorf("failed to delete local entry %q: %w", key, err)
		}
	}
	return nil
}

// List returns entries whose key starts with prefix. Entries from a newer
// schema are skipped.
func (s *Store) List(ctx context.Context, namespace, prefix string) (map[string]domain.LocalEntry, error) {
	// substr rather than LIKE: keys contain '_', which LIKE treats as a wildcard
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, schema_version, payload, synced, updated_at
		FROM local_entries
		WHERE namespace = ? AND substr(key, 1, ?) = ?
		ORDER BY key
	`, namespace, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list local entries: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]domain.LocalEntry)
	for rows.Next() {
		var (
			key     string
			version int
			payload string
			synced  int
			updated int64
		)
		if err := rows.Scan(&key, &version, &payload, &synced, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan local entry: %w", err)
		}
		if version > domain.SchemaVersion {
			continue
		}
		entries[key] = domain.LocalEntry{
			SchemaVersion: version,
			Data:          []byte(payload),
			Synced:        synced != 0,
			UpdatedAt:     time.UnixMilli(updated),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate local entries: %w", err)
	}
	return entries, nil
}

// PendingNamespaces returns the namespaces with at least one unsynced entry under prefix.
func (s *Store) PendingNamespaces(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT namespace
		FROM local_entries
		WHERE synced = 0 AND substr(key, 1, ?) = ?
		ORDER BY namespace
	`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		namespaces = append(namespaces, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate namespaces: %w", err)
	}
	return namespaces, nil
}

// CountPending counts unsynced entries under prefix in every namespace.
func (s *Store) CountPending(ctx context.Context, prefix string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM local_entries
		WHERE synced = 0 AND substr(key, 1, ?) = ?
	`, len(prefix), prefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending entries: %w", err)
	}
	return n, nil
}

func scanEntry(row *sql.Row) (domain.LocalEntry, error) {
	var (
		entry   domain.LocalEntry
		payload string
		synced  int
		updated int64
	)
	if err := row.Scan(&entry.SchemaVersion, &payload, &synced, &updated); err != nil {
		return domain.LocalEntry{}, err
	}
	entry.Data = []byte(payload)
	entry.Synced = synced != 0
	entry.UpdatedAt = time.UnixMilli(updated)
	return entry, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
