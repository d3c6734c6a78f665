package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Listing timestamps are stored as unix
// nanoseconds so expiry predicates compare numerically.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'seller' CHECK (role IN ('admin', 'seller')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
    seq            INTEGER PRIMARY KEY,
    id             TEXT NOT NULL UNIQUE,
    food_type      TEXT NOT NULL CHECK (food_type IN ('prepared_meal', 'fresh_produce', 'packaged_food', 'bakery_item', 'dairy_product')),
    quantity       INTEGER NOT NULL CHECK (quantity >= 1),
    prepared_at    INTEGER NOT NULL,
    expiry_time    INTEGER NOT NULL,
    hygiene_status TEXT NOT NULL CHECK (hygiene_status IN ('excellent', 'good', 'acceptable')),
    status         TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'expired', 'claimed')),
    seller_id      INTEGER REFERENCES users(id),
    photo          BLOB,
    photo_mime     TEXT,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS listing_events (
    id          INTEGER PRIMARY KEY,
    listing_id  TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
    from_status TEXT,
    to_status   TEXT NOT NULL,
    reason      TEXT NOT NULL,
    at          INTEGER NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
