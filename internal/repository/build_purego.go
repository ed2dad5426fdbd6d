//go:build !sqlite_cgo

package repository

// Default build: pure Go SQLite, no C toolchain needed.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

// SQLiteDriverName is the database/sql driver backing SQLiteStore.
const SQLiteDriverName = "sqlite"
