//go:build sqlite_cgo

package repository

// cgo build using mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteDriverName is the database/sql driver backing SQLiteStore.
const SQLiteDriverName = "sqlite3"
