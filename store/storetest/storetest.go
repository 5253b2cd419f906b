// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"canteen-orders-api/store"

	"gorm.io/gorm/logger"
)

// Open creates a migrated database in t's temp dir with a single
// connection per pool, so write transactions never overlap.
func Open(t *testing.T) *store.Store {
	t.Helper()
	return OpenPool(t, 1)
}

// OpenPool is Open with conns connections per pool, the way the server
// runs. Use it to exercise overlapping transactions.
func OpenPool(t *testing.T, conns int) *store.Store {
	t.Helper()
	s, err := store.Open(store.Options{
		Path:         filepath.Join(t.TempDir(), "canteen_test.db"),
		MaxOpenConns: conns,
		LogLevel:     logger.Silent,
	})
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
