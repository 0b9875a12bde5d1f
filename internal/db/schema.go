package db

import (
	"database/sql"
	"fmt"
)

// schema is the admin database schema: operator accounts and settings.
const schema = `
CREATE TABLE IF NOT EXISTS operators (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'attendant' CHECK (role IN ('admin', 'attendant')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_operators_username_active
    ON operators(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// inventorySchema backs the product store. Rows are rewritten wholesale on
// every save; position keeps insertion order.
const inventorySchema = `
CREATE TABLE IF NOT EXISTS items (
    position  INTEGER PRIMARY KEY,
    id        TEXT NOT NULL UNIQUE,
    name      TEXT NOT NULL,
    price     TEXT NOT NULL,
    stock     INTEGER NOT NULL CHECK (stock >= 0),
    image_ref TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates the admin tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// EnsureInventorySchema creates the product table if it doesn't already exist.
func EnsureInventorySchema(db *sql.DB) error {
	_, err := db.Exec(inventorySchema)
	if err != nil {
		return fmt.Errorf("creating inventory schema: %w", err)
	}
	return nil
}
