package migrations_test

import (
	"database/sql"
	"testing"

	"savesaver/internal/history/migrations"

	_ "github.com/mattn/go-sqlite3"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCheckStatus_FailsOnFreshDatabase(t *testing.T) {
	db := openDB(t)
	if err := migrations.CheckStatus(db); err == nil {
		t.Fatal("expected an error for an unmigrated database")
	}
}

func TestMigrateUp(t *testing.T) {
	db := openDB(t)

	if err := migrations.MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() error = %v", err)
	}

	// The schema is now current.
	if err := migrations.CheckStatus(db); err != nil {
		t.Errorf("CheckStatus() after migration error = %v", err)
	}

	// Running again is a no-op, not an error.
	if err := migrations.MigrateUp(db); err != nil {
		t.Errorf("second MigrateUp() error = %v", err)
	}

	// The operations table exists and accepts rows.
	_, err := db.Exec(`INSERT INTO operations (operation, target, detail, started_at) VALUES ('Run', 'game', '', CURRENT_TIMESTAMP)`)
	if err != nil {
		t.Errorf("inserting into operations: %v", err)
	}
}
