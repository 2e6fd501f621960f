package db

import (
	"testing"
)

// Helper functions for creating pointer values
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// newTestDB creates a fully migrated database in a per-test temp directory
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewDB(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// createTestSession creates a session with representative field values
func createTestSession(t *testing.T, db *DB, name string) *Session {
	t.Helper()

	session := &Session{
		Name:        name,
		Feed:        "udp://127.0.0.1:9901",
		Injector:    "mock",
		RegionW:     1280,
		RegionH:     720,
		StartedUnix: 1748779200.0,
	}
	if err := db.CreateSession(session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	return session
}
