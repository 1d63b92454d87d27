package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file:"+t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyRunsMigrationsOnce(t *testing.T) {
	sqlDB := openTestDB(t)
	migrations := fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}

	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO things (id) VALUES (1)"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	// Second run is a no-op.
	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("reapply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", count)
	}
}

func TestApplyOrdersFiles(t *testing.T) {
	sqlDB := openTestDB(t)
	migrations := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("ALTER TABLE things ADD COLUMN name TEXT;")},
		"0001_init.sql":       {Data: []byte("CREATE TABLE things (id INTEGER PRIMARY KEY);")},
	}

	if err := Apply(sqlDB, migrations); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO things (id, name) VALUES (1, 'a')"); err != nil {
		t.Fatalf("insert with migrated column: %v", err)
	}
}
