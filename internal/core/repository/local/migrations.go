package local

import (
	"database/sql"
	"fmt"
)

// schema is applied on open. Timestamps are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS local_entries (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    schema_version INTEGER NOT NULL,
    payload TEXT NOT NULL,
    synced INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
);

CREATE INDEX IF NOT EXISTS idx_local_entries_pending ON local_entries(synced, namespace);
`

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply local schema: %w", err)
	}
	return nil
}
