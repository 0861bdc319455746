// Package sqlite implements the persistent storage engine for Bindery
// on top of SQLite. Each schema maps to one object table holding its
// scalar and link columns and, when the schema has link-to-many
// properties, one list table holding ordered (row, col, pos, target)
// entries. The database schema is generated from the frozen registry at
// open time.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bindery/pkg/types"
)

// Engine is a types.Engine backed by a single SQLite database file.
// Not safe for concurrent use; the bind layer confines every engine to
// a single goroutine, and the engine holds one connection.
type Engine struct {
	db     *sql.DB
	tx     *sql.Tx
	tables map[string]*table
	closed bool
}

var _ types.Engine = (*Engine)(nil)

// Open opens (or creates) the database at path and ensures one object
// table per schema in the registry, freezing the registry if it is not
// already. Tables from earlier runs are kept; the generated DDL is
// idempotent.
func Open(path string, reg *types.Registry) (*Engine, error) {
	if err := reg.Freeze(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite transactions are per-connection, and the
	// engine multiplexes every table over the active one.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}

	e := &Engine{db: db, tables: make(map[string]*table)}
	for _, name := range reg.Names() {
		schema, err := reg.Get(name)
		if err != nil {
			db.Close()
			return nil, err
		}
		t := newTable(e, schema)
		for _, stmt := range t.ddl() {
			if _, err := db.Exec(stmt); err != nil {
				db.Close()
				return nil, fmt.Errorf("create %s: %w", name, err)
			}
		}
		e.tables[name] = t
	}
	return e, nil
}

// Table returns the table backing the named schema.
func (e *Engine) Table(name string) (types.Table, error) {
	t, ok := e.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrTableNotFound, name)
	}
	return t, nil
}

// BeginWrite opens the SQLite transaction all mutations run in.
func (e *Engine) BeginWrite() error {
	if e.closed {
		return types.ErrStoreClosed
	}
	if e.tx != nil {
		return fmt.Errorf("write transaction already open")
	}
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	e.tx = tx
	return nil
}

// Commit makes all changes since BeginWrite durable.
func (e *Engine) Commit() error {
	if e.tx == nil {
		return types.ErrNotInWriteTransaction
	}
	err := e.tx.Commit()
	e.tx = nil
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards all changes since BeginWrite.
func (e *Engine) Rollback() error {
	if e.tx == nil {
		return types.ErrNotInWriteTransaction
	}
	err := e.tx.Rollback()
	e.tx = nil
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// InWriteTransaction reports whether BeginWrite is open.
func (e *Engine) InWriteTransaction() bool { return e.tx != nil }

// Close rolls back any open transaction and closes the database.
// Idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	if e.tx != nil {
		_ = e.tx.Rollback()
		e.tx = nil
	}
	e.closed = true
	e.tables = nil
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// querier abstracts *sql.DB and *sql.Tx so reads see uncommitted writes
// while a transaction is open.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (e *Engine) q() querier {
	if e.tx != nil {
		return e.tx
	}
	return e.db
}

// quote wraps an identifier in double quotes for use in generated SQL.
// Registry names are already restricted to identifier characters; this
// keeps them from colliding with SQL keywords.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
