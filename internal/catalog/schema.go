// Package catalog provides the SQLite-backed store for object definitions,
// their attributes, methods, parameters, relationships and instances.
package catalog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ansuz/internal/apperr"
)

// Child tables reference their owners without ON DELETE CASCADE: the writer
// removes dependent rows itself, and enforced foreign keys reject any delete
// that gets the order wrong.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	email      TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'viewer',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS objects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	version     TEXT NOT NULL,
	creator_id  TEXT NOT NULL REFERENCES users(id),
	revision    INTEGER NOT NULL DEFAULT 1,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_objects_name_version ON objects(name COLLATE NOCASE, version COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_objects_creator ON objects(creator_id);

CREATE TABLE IF NOT EXISTS attributes (
	id            TEXT PRIMARY KEY,
	object_id     TEXT NOT NULL REFERENCES objects(id),
	name          TEXT NOT NULL,
	type          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	default_value TEXT,
	required      BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_attributes_object ON attributes(object_id);

CREATE TABLE IF NOT EXISTS methods (
	id          TEXT PRIMARY KEY,
	object_id   TEXT NOT NULL REFERENCES objects(id),
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	visibility  TEXT NOT NULL CHECK (visibility IN ('PUBLIC', 'PRIVATE', 'PROTECTED')),
	return_type TEXT
);

CREATE INDEX IF NOT EXISTS idx_methods_object ON methods(object_id);

CREATE TABLE IF NOT EXISTS parameters (
	id            TEXT PRIMARY KEY,
	method_id     TEXT NOT NULL REFERENCES methods(id),
	name          TEXT NOT NULL,
	type          TEXT NOT NULL,
	default_value TEXT,
	is_optional   BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_parameters_method ON parameters(method_id);

CREATE TABLE IF NOT EXISTS relationships (
	id             TEXT PRIMARY KEY,
	from_object_id TEXT NOT NULL REFERENCES objects(id),
	to_object_id   TEXT NOT NULL REFERENCES objects(id),
	type           TEXT NOT NULL CHECK (type IN ('COMPOSITION', 'INHERITANCE', 'ASSOCIATION')),
	description    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_object_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_object_id);

CREATE TABLE IF NOT EXISTS instances (
	id         TEXT PRIMARY KEY,
	object_id  TEXT NOT NULL REFERENCES objects(id),
	name       TEXT NOT NULL,
	creator_id TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_instances_object ON instances(object_id);

CREATE TABLE IF NOT EXISTS instance_attributes (
	id          TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL REFERENCES instances(id),
	name        TEXT NOT NULL,
	value       TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_instance_attributes_instance ON instance_attributes(instance_id);

CREATE TABLE IF NOT EXISTS history (
	id         TEXT PRIMARY KEY,
	object_id  TEXT NOT NULL REFERENCES objects(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	changes    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_object ON history(object_id);

CREATE TABLE IF NOT EXISTS seed_files (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL
);
`

// DB wraps a sql.DB with catalog operations.
type DB struct {
	conn *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx so reads can run inside
// or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open opens (or creates) the SQLite database and applies the schema.
// Transactions take the write lock on BEGIN so concurrent writers queue on
// the busy timeout instead of failing on lock upgrade.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("catalog: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("catalog: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// withTx runs fn inside one transaction. Any error from fn or from commit
// leaves the database untouched and comes back as an *apperr.TxError.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return &apperr.TxError{Op: op, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return &apperr.TxError{Op: op, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &apperr.TxError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func boolValue(b *bool) bool {
	return b != nil && *b
}
