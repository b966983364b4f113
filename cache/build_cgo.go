//go:build cgo_sqlite

package cache

// Built with the cgo_sqlite tag the store uses the C SQLite bindings.
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver backing the cache store.
const DriverName = "sqlite3"
