/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect adapts the shared '?' query text to the configured driver
type dialect struct {
	driver string
}

func newDialect(driver string) (dialect, error) {
	switch driver {
	case driverSQLite, driverPostgres:
		return dialect{driver: driver}, nil
	}
	return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
}

// rebind rewrites '?' placeholders to $n for PostgreSQL
func (d dialect) rebind(query string) string {
	if d.driver != driverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
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

// forUpdate returns the row-lock clause for purse and order reads inside a scope.
// SQLite scopes already hold the database write lock (BEGIN IMMEDIATE).
func (d dialect) forUpdate() string {
	if d.driver == driverPostgres {
		return " FOR UPDATE"
	}
	return ""
}

// dsn builds the connection string for the driver
func (d dialect) dsn(path, url string) (string, error) {
	switch d.driver {
	case driverPostgres:
		if url == "" {
			return "", fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		return url, nil
	default:
		if path == "" {
			return "", fmt.Errorf("database path cannot be empty")
		}
		return path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=1&_txlock=immediate", nil
	}
}

// isUniqueViolation reports whether err is a unique constraint failure on either backend
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}
	return false
}

// nullString maps "" to SQL NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
