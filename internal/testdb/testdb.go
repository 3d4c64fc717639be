// Package testdb provides a shared test database helper for fast,
// realistic testing against an in-memory SQLite database.
package testdb

import (
	"context"
	"testing"

	"github.com/ozonscout/backend/internal/infrastructure/persistence"
)

// New creates an in-memory SQLite database with all tables migrated.
// The database is automatically closed when the test finishes.
func New(t *testing.T) persistence.Database {
	t.Helper()
	db := NewPlain(t)
	if err := persistence.AutoMigrate(db); err != nil {
		t.Fatalf("testdb.New: auto migrate: %v", err)
	}
	return db
}

// NewPlain creates an in-memory SQLite database without running migrations.
func NewPlain(t *testing.T) persistence.Database {
	t.Helper()
	ctx := context.Background()
	db, err := persistence.NewDatabase(ctx, "sqlite:///:memory:", nil)
	if err != nil {
		t.Fatalf("testdb.NewPlain: open database: %v", err)
	}
	// every connection to :memory: is a separate database
	if err := db.ConfigurePool(1, 1, 0); err != nil {
		_ = db.Close()
		t.Fatalf("testdb.NewPlain: configure pool: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
