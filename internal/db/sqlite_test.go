package db_test

import (
	"path/filepath"
	"testing"

	"jobmate/aggregator-service/internal/db"
)

// ── OpenSQLite ──────────────────────────────────────────────────────────────

func TestOpenSQLite_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "jobs.db")
	conn, err := db.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer conn.Close()

	var mode string
	if err := conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenSQLite_MemoryKeepsStateAcrossQueries(t *testing.T) {
	conn, err := db.OpenSQLite(db.MemoryDSN)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec("CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Exec("INSERT INTO t VALUES (7)"); err != nil {
		t.Fatal(err)
	}
	var v int
	if err := conn.QueryRow("SELECT v FROM t").Scan(&v); err != nil || v != 7 {
		t.Errorf("v=%d err=%v", v, err)
	}
}
