package db

import (
	"path/filepath"
	"testing"
)

// newTestDB opens a throwaway database in a temp dir with migrations
// applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "strike_test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestFighter inserts a fighter with sane defaults.
func createTestFighter(t *testing.T, db *DB, name string) *Fighter {
	t.Helper()
	f := &Fighter{
		Name:        name,
		WeightClass: "middleweight",
		Height:      180,
		Reach:       185,
		Stance:      "orthodox",
	}
	if err := db.CreateFighter(f); err != nil {
		t.Fatalf("CreateFighter failed: %v", err)
	}
	return f
}
