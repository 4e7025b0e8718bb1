package db

import (
	"context"
	"fmt"
)

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS vector`

// schemaSQL is applied with the embedding width substituted for %d.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS messages (
    id              BIGINT PRIMARY KEY,
    conversation_id TEXT        NOT NULL,
    role            TEXT        NOT NULL,
    channel         TEXT        NOT NULL,
    participant_id  TEXT        NOT NULL DEFAULT '',
    message_type    TEXT        NOT NULL,
    text            TEXT        NOT NULL,
    metadata        JSONB       NOT NULL DEFAULT '{}'::jsonb,
    embedding       vector(%d),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS messages_type_idx ON messages (message_type, created_at DESC, id DESC);
CREATE INDEX IF NOT EXISTS messages_created_idx ON messages (created_at DESC);

CREATE TABLE IF NOT EXISTS command_deliveries (
    command_id   BIGINT PRIMARY KEY,
    delivered_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the tables and indexes if they do not exist. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, createExtensionSQL); err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}
	if _, err := db.pool.Exec(ctx, fmt.Sprintf(schemaSQL, db.vectorDims)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
