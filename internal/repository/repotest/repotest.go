// Package repotest opens throwaway SQLite databases carrying the ledger schema.
package repotest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/segyhp/fee-ledger/internal/repository"
)

// NewDB returns a migrated SQLite database in the test's temp dir.
// Transactions begin IMMEDIATE so concurrent writers queue instead of deadlocking.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=10000&_txlock=immediate", path)

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// NewStore wraps NewDB in a SQLStore
func NewStore(t testing.TB, opts ...repository.StoreOption) *repository.SQLStore {
	t.Helper()
	return repository.NewStore(NewDB(t), opts...)
}
