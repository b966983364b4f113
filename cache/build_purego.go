//go:build !cgo_sqlite

package cache

// Default build: pure Go SQLite, no C toolchain needed.
//
//	CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver backing the cache store.
const DriverName = "sqlite"
