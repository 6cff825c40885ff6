package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "test.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{}, zap.NewNop())
	assert.Error(t, err)
}

func TestConfig_DSN(t *testing.T) {
	dsn := Config{Path: "/tmp/x.db"}.dsn()
	assert.Contains(t, dsn, "file:/tmp/x.db?")
	assert.Contains(t, dsn, "_busy_timeout=5000")
	assert.Contains(t, dsn, "_txlock=immediate")
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_add_index.sql":      {Data: []byte("CREATE INDEX idx_t ON t(name);")},
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT);")},
		"README.md":              {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial_schema", migrations[0].Name)
	assert.Len(t, migrations[0].Checksum, 64)
	assert.Equal(t, 2, migrations[1].Version)
}

func TestLoadMigrations_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"duplicate version", fstest.MapFS{
			"001_a.sql": {Data: []byte("SELECT 1;")},
			"001_b.sql": {Data: []byte("SELECT 1;")},
		}},
		{"no version prefix", fstest.MapFS{
			"schema.sql": {Data: []byte("SELECT 1;")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_AppliesOnce(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	fsys := fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT);")},
		"002_seed.sql":           {Data: []byte("INSERT INTO t (name) VALUES ('a');")},
	}

	ran, err := db.Migrate(ctx, fsys)
	require.NoError(t, err)
	assert.Equal(t, 2, ran)

	ran, err = db.Migrate(ctx, fsys)
	require.NoError(t, err)
	assert.Zero(t, ran)

	var rows int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM t").Scan(&rows))
	assert.Equal(t, 1, rows, "seed must not run twice")

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrate_DetectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	_, err := db.Migrate(ctx, fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY);")},
	})
	require.NoError(t, err)

	_, err = db.Migrate(ctx, fstest.MapFS{
		"001_initial_schema.sql": {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY, extra TEXT);")},
	})
	assert.ErrorContains(t, err, "changed after it was applied")
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTest(t)

	_, err := db.Migrate(ctx, fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE t (id INTEGER PRIMARY KEY); NOT SQL;")},
	})
	require.Error(t, err)

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, version)
}
