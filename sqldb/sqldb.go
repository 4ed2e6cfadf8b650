// Package sqldb implements the core store interfaces on database/sql.
// It works with sqlite3 and mysql.
package sqldb

import (
	"database/sql"
	"errors"
)

func mustPrepare(db *sql.DB, query string) *sql.Stmt {
	stmt, err := db.Prepare(query)
	if err != nil {
		panic(err)
	}
	return stmt
}

// normLimit maps "no limit" (negative values) to a number both sqlite and
// mysql accept in a LIMIT clause.
func normLimit(limit int) int {
	if limit < 0 {
		return 1<<31 - 1
	}
	return limit
}

// boolInt turns includeArchived into the upper bound for "archived <= ?".
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
