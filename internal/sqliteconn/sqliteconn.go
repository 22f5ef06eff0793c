// Package sqliteconn centralizes connection-string construction and
// driver registration for the pure-Go ncruces/go-sqlite3 driver, so
// every package that opens a *sql.DB agrees on pragmas and DSN shape.
package sqliteconn

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver" // registers "sqlite3"
	_ "github.com/ncruces/go-sqlite3/embed"  // embeds the WASM SQLite build
)

// DriverName is the database/sql driver name registered by the blank
// imports above.
const DriverName = "sqlite3"

// Open opens path with foreign keys enabled and a 5s busy timeout,
// matching the teacher's connection-string convention
// (file:<path>?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)).
func Open(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	return sql.Open(DriverName, dsn)
}

// OpenScratch opens a fresh, temp-file-backed anonymous database
// suitable for the Differ's two replay targets (spec.md §4.6). The
// caller owns path's lifecycle (creation, e.g. via os.CreateTemp, removal on
// close) — OpenScratch only opens the connection.
func OpenScratch(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(OFF)&_pragma=writable_schema(ON)&_txlock=immediate", path)
	return sql.Open(DriverName, dsn)
}

// Readback opens a second connection to path for verifying that a
// pragma set on the primary connection actually persisted (spec.md
// §4.9's Pragma Applier contract: "open a second connection and read
// it back").
func Readback(path string) (*sql.DB, error) {
	return sql.Open(DriverName, fmt.Sprintf("file:%s?mode=ro", path))
}
