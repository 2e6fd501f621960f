package db

import (
	"io/fs"
	"strings"
	"testing"
)

// setupMigrationTestDB opens a test database without running any migrations
func setupMigrationTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenDB(t.TempDir() + "/migrate_test.db")
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// testMigrationsFS returns the production migrations filesystem
func testMigrationsFS(t *testing.T) fs.FS {
	t.Helper()

	fsys, err := getMigrationsFS()
	if err != nil {
		t.Fatalf("getMigrationsFS failed: %v", err)
	}
	return fsys
}

// tableExists reports whether a table is present in the schema
func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name=?
	`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check table %s: %v", name, err)
	}
	return exists
}

// columnExists reports whether a column is present on a table
func columnExists(t *testing.T, db *DB, table, column string) bool {
	t.Helper()

	var exists bool
	err := db.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info(?)
		WHERE name=?
	`, table, column).Scan(&exists)
	if err != nil {
		t.Fatalf("failed to check column %s.%s: %v", table, column, err)
	}
	return exists
}

func TestMigrateUp(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after successful migration")
	}

	// All session tables exist at the latest version
	for _, table := range []string{"sessions", "cycles", "tracks", "observations", "swipes", "param_runs"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s should exist after migration", table)
		}
	}

	// Third migration adds the latency column
	if !columnExists(t, db, "swipes", "latency_ms") {
		t.Error("swipes.latency_ms should exist after migration")
	}
}

func TestMigrateUp_Idempotency(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("first MigrateUp failed: %v", err)
	}

	// A second run has nothing to do and must not error
	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3 after repeated up, got %d", version)
	}
}

func TestMigrateDown(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	// Down rolls back exactly one migration
	if err := db.MigrateDown(migrationsFS); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2 after down, got %d", version)
	}
	if dirty {
		t.Error("database should not be dirty after rollback")
	}

	if columnExists(t, db, "swipes", "latency_ms") {
		t.Error("swipes.latency_ms should be gone after rolling back migration 3")
	}
	if !tableExists(t, db, "param_runs") {
		t.Error("param_runs should survive rolling back migration 3")
	}
}

func TestMigrateVersion_FreshDatabase(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed on fresh database: %v", err)
	}
	if version != 0 {
		t.Errorf("expected version 0 on fresh database, got %d", version)
	}
	if dirty {
		t.Error("fresh database should not be dirty")
	}
}

func TestMigrateTo(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateTo(migrationsFS, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}

	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}

	if !tableExists(t, db, "sessions") {
		t.Error("sessions should exist at version 1")
	}
	if tableExists(t, db, "param_runs") {
		t.Error("param_runs should not exist at version 1")
	}

	// Migrating to a later version applies the rest
	if err := db.MigrateTo(migrationsFS, 3); err != nil {
		t.Fatalf("MigrateTo(3) failed: %v", err)
	}
	if !tableExists(t, db, "param_runs") {
		t.Error("param_runs should exist at version 3")
	}
}

func TestMigrateForce(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	// Force rewrites the version marker without touching the schema
	if err := db.MigrateForce(migrationsFS, 2); err != nil {
		t.Fatalf("MigrateForce failed: %v", err)
	}

	version, dirty, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected forced version 2, got %d", version)
	}
	if dirty {
		t.Error("force should clear the dirty flag")
	}
	if !columnExists(t, db, "swipes", "latency_ms") {
		t.Error("force must not modify the schema")
	}
}

func TestGetMigrationStatus(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	// Fresh database: no tracking table yet
	status, err := db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["schema_migrations_exists"] != false {
		t.Error("schema_migrations should not exist before migrating")
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	status, err = db.GetMigrationStatus(migrationsFS)
	if err != nil {
		t.Fatalf("GetMigrationStatus failed: %v", err)
	}
	if status["current_version"] != uint(3) {
		t.Errorf("expected current_version 3, got %v", status["current_version"])
	}
	if status["dirty"] != false {
		t.Errorf("expected dirty false, got %v", status["dirty"])
	}
	if status["schema_migrations_exists"] != true {
		t.Error("schema_migrations should exist after migrating")
	}
}

func TestCheckAndPromptMigrations(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	// Fresh database is behind
	outdated, err := db.CheckAndPromptMigrations(migrationsFS)
	if !outdated {
		t.Error("fresh database should be reported as outdated")
	}
	if err == nil || !strings.Contains(err.Error(), "out of date") {
		t.Errorf("expected out-of-date error, got %v", err)
	}

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	outdated, err = db.CheckAndPromptMigrations(migrationsFS)
	if outdated {
		t.Error("current database should not be reported as outdated")
	}
	if err != nil {
		t.Errorf("expected no error for current database, got %v", err)
	}
}

func TestMigrateUpDown_FullCycle(t *testing.T) {
	db := setupMigrationTestDB(t)
	migrationsFS := testMigrationsFS(t)

	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	// Roll everything back one step at a time
	for wantVersion := uint(2); ; wantVersion-- {
		if err := db.MigrateDown(migrationsFS); err != nil {
			t.Fatalf("MigrateDown failed: %v", err)
		}
		version, _, err := db.MigrateVersion(migrationsFS)
		if err != nil {
			t.Fatalf("MigrateVersion failed: %v", err)
		}
		if version != wantVersion {
			t.Errorf("expected version %d, got %d", wantVersion, version)
		}
		if wantVersion == 0 {
			break
		}
	}

	if tableExists(t, db, "sessions") {
		t.Error("sessions should be gone after full rollback")
	}

	// And back up again
	if err := db.MigrateUp(migrationsFS); err != nil {
		t.Fatalf("MigrateUp after rollback failed: %v", err)
	}
	version, _, err := db.MigrateVersion(migrationsFS)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 {
		t.Errorf("expected version 3 after re-migrating, got %d", version)
	}
}
