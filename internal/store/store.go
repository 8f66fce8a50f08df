// Package store is a SQLite-backed emulator of the remote document store.
// Documents live in a single table keyed by collection path and id, with
// their fields kept as JSON; queries are evaluated in memory with
// docstore.Apply.
package store

import "github.com/nhle/erp-sync/internal/docstore"

var _ docstore.Store = (*SQLiteStore)(nil)
