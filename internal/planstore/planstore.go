// Package planstore persists plan records in SQLite or PostgreSQL and owns
// the transactional full-replace of a plan.
package planstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS plan_records (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id   INTEGER NOT NULL,
	domain     TEXT NOT NULL CHECK (domain IN ('nutrition', 'exercise')),
	day        TEXT NOT NULL CHECK (day IN ('Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday')),
	category   TEXT NOT NULL,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL CHECK (name <> ''),
	calories   REAL,
	protein    REAL,
	carbs      REAL,
	fat        REAL,
	duration   REAL,
	sets       INTEGER,
	reps       INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_plan_records_owner ON plan_records(owner_id, domain);
`

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS plan_records (
	id         BIGSERIAL PRIMARY KEY,
	owner_id   BIGINT NOT NULL,
	domain     TEXT NOT NULL CHECK (domain IN ('nutrition', 'exercise')),
	day        TEXT NOT NULL CHECK (day IN ('Monday', 'Tuesday', 'Wednesday', 'Thursday', 'Friday', 'Saturday', 'Sunday')),
	category   TEXT NOT NULL,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL CHECK (name <> ''),
	calories   DOUBLE PRECISION,
	protein    DOUBLE PRECISION,
	carbs      DOUBLE PRECISION,
	fat        DOUBLE PRECISION,
	duration   DOUBLE PRECISION,
	sets       INTEGER,
	reps       INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_plan_records_owner ON plan_records(owner_id, domain);
`

// DB wraps a sql.DB with plan record operations.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open opens (or creates) the database and applies the schema.
// For sqlite3, dsn is a file path.
func Open(driver, dsn string) (*DB, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
		schema = sqliteSchemaSQL
	case DriverPostgres:
		schema = postgresSchemaSQL
	default:
		return nil, fmt.Errorf("planstore: unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("planstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("planstore: ping: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("planstore: apply schema: %w", err)
	}
	return &DB{conn: conn, driver: driver}, nil
}

const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// sqliteDSN appends the connection pragmas to a path or file: URI, keeping
// any query string the caller already set.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqliteParams
	}
	return dsn + "?" + sqliteParams
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
