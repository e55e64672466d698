package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect names the SQL flavour behind a DB.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// ForUpdate returns the row-locking suffix for SELECT statements.  SQLite
// has no row locks; its single writer connection serialises transactions.
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// InsertIgnore returns the statement prefix that inserts a row unless a
// unique key already holds it.
func (d Dialect) InsertIgnore() string {
	if d == MySQL {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
func (d Dialect) IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") || strings.Contains(err.Error(), "1062")
}

// gooseDialect maps the dialect onto goose's dialect names.
func (d Dialect) gooseDialect() string {
	if d == SQLite {
		return "sqlite3"
	}
	return "mysql"
}
