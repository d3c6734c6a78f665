package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: the sweep and the active feed both filter on status first.
	`CREATE INDEX IF NOT EXISTS idx_listings_status_expiry
	     ON listings(status, expiry_time)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_status_created
	     ON listings(status, created_at DESC, seq DESC)`,

	// Migration 2: history lookups by listing.
	`CREATE INDEX IF NOT EXISTS idx_listing_events_listing
	     ON listing_events(listing_id, id)`,
}

// Migrate ensures the schema and then runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
