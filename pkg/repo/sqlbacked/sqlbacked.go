// Package sqlbacked implements the Entity Repositories (C2) on top of
// database/sql, giving the module a relationally-hostable backend
// alongside the in-memory, file-backed and document ones: SQLite via
// github.com/mattn/go-sqlite3 for single-node deployments and Postgres via
// github.com/jackc/pgx/v5's stdlib driver for multi-node ones, chosen by the
// Dialect passed to Open (config.DataBackend has no SQL value). Each entity
// kind gets its own
// table with an indexed user_id column and a JSON blob column holding the
// entity itself — a pragmatic relational/document hybrid, grounded on the
// pack's parameterized-SQL idiom rather than pulling in a query builder this
// module otherwise has no use for.
package sqlbacked

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwell-ai/chatcore/pkg/chaterrors"
)

// Dialect distinguishes the two supported SQL engines, mainly for
// parameter-placeholder syntax ("?" vs "$1") and a couple of DDL
// differences (JSON vs JSONB, AUTOINCREMENT vs nothing needed here).
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DB wraps a *sql.DB with its dialect so every Collection built on top of
// it renders the right placeholder syntax.
type DB struct {
	Conn    *sql.DB
	Dialect Dialect
}

// Open opens a database/sql connection for the given dialect and data
// source name, registering the matching driver ("sqlite3" or "pgx").
func Open(ctx context.Context, dialect Dialect, dataSourceName string) (*DB, error) {
	driver := "sqlite3"
	if dialect == Postgres {
		driver = "pgx"
	}
	conn, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, &chaterrors.StorageError{Kind: "sqlbacked.open", Err: err}
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, &chaterrors.StorageError{Kind: "sqlbacked.ping", Err: err}
	}
	if dialect == SQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, &chaterrors.StorageError{Kind: "sqlbacked.wal", Err: err}
		}
		conn.SetMaxOpenConns(1)
	}
	return &DB{Conn: conn, Dialect: dialect}, nil
}

func (db *DB) Close() error {
	return db.Conn.Close()
}

// placeholder renders the nth (1-indexed) bind parameter for this dialect.
func (db *DB) placeholder(n int) string {
	if db.Dialect == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// jsonColumnType names the column type used for the entity blob.
func (db *DB) jsonColumnType() string {
	if db.Dialect == Postgres {
		return "JSONB"
	}
	return "TEXT"
}
