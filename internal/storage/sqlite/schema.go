package sqlite

// SchemaVersion is the current durable-storage schema version
// (spec.md §4.5 Version Gate uses a separate, coarser version; this
// one is purely internal migration bookkeeping, mirroring the
// teacher's db.SchemaVersion).
const SchemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS items (
    id           TEXT PRIMARY KEY,
    type         TEXT NOT NULL,
    content      TEXT,
    has_content  INTEGER NOT NULL DEFAULT 0,
    metadata     TEXT,
    has_metadata INTEGER NOT NULL DEFAULT 0,
    sync_id      TEXT NOT NULL DEFAULT '',
    sync_source  TEXT NOT NULL DEFAULT '',
    synced_at    INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL,
    deleted_at   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_type ON items(type);
CREATE INDEX IF NOT EXISTS idx_items_deleted ON items(deleted_at);
CREATE INDEX IF NOT EXISTS idx_items_updated ON items(updated_at);
CREATE INDEX IF NOT EXISTS idx_items_sync_id ON items(sync_id);

CREATE TABLE IF NOT EXISTS tags (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    name_lower      TEXT NOT NULL,
    frequency       INTEGER NOT NULL DEFAULT 1,
    last_used_at    INTEGER NOT NULL,
    frecency_score  REAL NOT NULL DEFAULT 0,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_name_lower ON tags(name_lower);
CREATE INDEX IF NOT EXISTS idx_tags_frecency ON tags(frecency_score DESC);

CREATE TABLE IF NOT EXISTS item_tags (
    item_id    TEXT NOT NULL,
    tag_id     TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (item_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_info (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Migration defines a database migration applied in order after the
// base schema (mirrors the teacher's db.Migration/db.Migrations).
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all migrations beyond the version-1 base
// schema. Empty for now; the slice exists so future schema changes
// follow the same versioned-migration discipline as the base schema.
var Migrations = []Migration{}
