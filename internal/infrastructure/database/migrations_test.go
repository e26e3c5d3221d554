package database

import (
	"context"
	"testing"
	"testing/fstest"
)

func useMigrations(t *testing.T, fsys fstest.MapFS) {
	t.Helper()
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, "."
	t.Cleanup(func() { MigrationsFS, MigrationsDir = prevFS, prevDir })
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_test_users.up.sql": {
			Data: []byte("CREATE TABLE test_users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);"),
		},
		"20260101_000000_test_users.down.sql": {
			Data: []byte("DROP TABLE test_users;"),
		},
		"20260102_000000_test_posts.up.sql": {
			Data: []byte("CREATE TABLE test_posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES test_users(id));"),
		},
		"20260102_000000_test_posts.down.sql": {
			Data: []byte("DROP TABLE test_posts;"),
		},
		"README.md": {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count == 1
}

// TestMigrate verifies pending migrations are applied once, in order.
func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"test_users", "test_posts"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	// Second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "20260102_000000" {
		t.Errorf("SchemaVersion() = %q, want 20260102_000000", version)
	}
}

// TestMigrateFailure verifies a broken migration rolls back and stops.
func TestMigrateFailure(t *testing.T) {
	fsys := testMigrations()
	fsys["20260103_000000_broken.up.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE oops (")}
	useMigrations(t, fsys)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on broken SQL")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want the broken migration", pending)
	}
}

// TestMigrateDown verifies the latest migration is rolled back.
func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "test_posts") {
		t.Error("test_posts should be dropped")
	}
	if !tableExists(t, db, "test_users") {
		t.Error("test_users should remain")
	}

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != "20260101_000000" {
		t.Errorf("SchemaVersion() = %q, want 20260101_000000", version)
	}
}

// TestMigrateNoMigrations verifies a nil filesystem is a no-op.
func TestMigrateNoMigrations(t *testing.T) {
	prev := MigrationsFS
	MigrationsFS = nil
	t.Cleanup(func() { MigrationsFS = prev })

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() on empty db error = %v", err)
	}
	if !tableExists(t, db, "schema_migrations") {
		t.Error("schema_migrations table not created")
	}
}

// TestMigrationStatus verifies applied and pending are reported.
func TestMigrationStatus(t *testing.T) {
	useMigrations(t, testMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 2 {
		t.Fatalf("before: applied=%d pending=%d, want 0/2", len(applied), len(pending))
	}
	if pending[0].Version != "20260101_000000" || pending[0].DownSQL == "" {
		t.Errorf("pending[0] = %+v", pending[0])
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	applied, pending, err = db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("after: applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}
}

func TestParseMigrationFile(t *testing.T) {
	tests := []struct {
		filename string
		want     migrationFile
		wantOK   bool
	}{
		{"20260118_120000_create_users.up.sql", migrationFile{"20260118_120000", "create_users", true}, true},
		{"20260118_120000_create_users.down.sql", migrationFile{"20260118_120000", "create_users", false}, true},
		{"20260118_120000_add_email_to_users.up.sql", migrationFile{"20260118_120000", "add_email_to_users", true}, true},
		{"20260118_120000.up.sql", migrationFile{"20260118_120000", "", true}, true},
		{"readme.txt", migrationFile{}, false},
		{"20260118_120000_create_users.sql", migrationFile{}, false},
		{"invalid.up.sql", migrationFile{}, false},
		{"_120000_x.up.sql", migrationFile{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := parseMigrationFile(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parseMigrationFile(%q) = %+v, want %+v", tt.filename, got, tt.want)
			}
		})
	}
}
