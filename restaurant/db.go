// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // register duckdb driver
	_ "modernc.org/sqlite"             // register sqlite driver
)

const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"
)

// DriverFor guesses the driver from the database file extension.
func DriverFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".sqlite"), strings.HasSuffix(path, ".sqlite3"), strings.HasSuffix(path, ".db"):
		return DriverSQLite
	default:
		return DriverDuckDB
	}
}

// OpenDB opens the database at path; an empty path opens an in-memory one.
func OpenDB(driver, path string) (*sql.DB, error) {
	dsn := path

	switch driver {
	case DriverDuckDB:
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}

		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database %q: %w", driver, path, err)
	}

	if driver == DriverSQLite {
		// every :memory: connection is a distinct database, and sqlite
		// allows a single writer anyway
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("opening %s database %q: %w", driver, path, err)
	}

	return db, nil
}

// Open opens the database and returns a repository with its schema created.
func Open(ctx context.Context, driver, path string, opts ...RepositoryOption) (*sql.DB, Repository, error) {
	db, err := OpenDB(driver, path)
	if err != nil {
		return nil, nil, err
	}

	repo := NewRepository(db, opts...)
	if err := repo.CreateSchema(ctx); err != nil {
		db.Close()

		return nil, nil, err
	}

	return db, repo, nil
}
