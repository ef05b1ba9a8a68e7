package store

// SchemaVersion identifies the on-disk layout. Bumped whenever the DDL
// below changes in an incompatible way.
const SchemaVersion = "1.0.0"

// DDL statements for database initialization. All are idempotent so
// Open can run them unconditionally against an existing database file.
const (
	createMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

	// label is a JSON-encoded array even when a single label is
	// present, so the translator uses one shape at write time and at
	// read time (spec.md §9, "Label storage").
	createNodesTable = `
CREATE TABLE IF NOT EXISTS nodes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    label      TEXT NOT NULL DEFAULT '[]',
    properties TEXT NOT NULL DEFAULT '{}'
);`

	createEdgesTable = `
CREATE TABLE IF NOT EXISTS edges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    type        TEXT NOT NULL,
    source_id   INTEGER NOT NULL REFERENCES nodes(id),
    target_id   INTEGER NOT NULL REFERENCES nodes(id),
    properties  TEXT NOT NULL DEFAULT '{}'
);`

	// Expression index on the primary label (label[0]) — the common
	// case of a single-label MATCH benefits from this without needing
	// a materialized column.
	createNodesPrimaryLabelIndex = `
CREATE INDEX IF NOT EXISTS idx_nodes_primary_label ON nodes(json_extract(label, '$[0]'));`

	createEdgesTypeIndex = `
CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);`

	createEdgesSourceIndex = `
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);`

	createEdgesTargetIndex = `
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);`

	enableWALMode     = `PRAGMA journal_mode=WAL;`
	enableForeignKeys = `PRAGMA foreign_keys=ON;`
)

// metaKeySchemaVersion is the meta table key recording the schema
// version a database was created with.
const metaKeySchemaVersion = "schema_version"
