package testenv

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	kpool "github.com/saveourtool/save-cloud/pkg/conn/db/postgres/pool"
	kpgschema "github.com/saveourtool/save-cloud/pkg/domain/schema/db/postgres"
)

// EnvDatabaseUrl names the environment variable holding a URL of a postgres
// database dedicated to tests. Its tables are truncated by tests.
const EnvDatabaseUrl = "SAVE_TEST_DATABASE_URL"

// SchemaRepository returns the path to the schema repository of this module.
func SchemaRepository() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "..", "..", "schema", "postgres")
}

// GetPool connects to the test database, upgrades its schema and clears tables.
//
// When EnvDatabaseUrl is not set, the test is skipped.
// Tables are cleared again after the test.
func GetPool(ctx context.Context, t *testing.T) kpool.Pool {
	t.Helper()

	url := os.Getenv(EnvDatabaseUrl)
	if url == "" {
		t.Skipf("%s is not set", EnvDatabaseUrl)
	}

	pool, err := kpool.Connect(ctx, url, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := kpgschema.New(pool, SchemaRepository()).Upgrade(ctx); err != nil {
		t.Fatal(err)
	}

	ClearTables(ctx, t, pool)
	t.Cleanup(func() { ClearTables(context.Background(), t, pool) })
	return pool
}

func ClearTables(ctx context.Context, t *testing.T, pool kpool.Pool) {
	t.Helper()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
		return
	}
	defer conn.Release()

	// by cascade, "agent" and "test_execution" are cleared too.
	if _, err := conn.Exec(ctx, `truncate "execution" restart identity cascade`); err != nil {
		t.Errorf("fail to clean-up tables.: %v", err)
	}
}
