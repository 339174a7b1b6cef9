// Package testutil starts the pgvector Postgres and RustFS containers behind
// the integration and e2e suites.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cloo-solutions/regassist/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgvectorImage = "pgvector/pgvector:0.8.1-pg18"
	rustfsImage   = "rustfs/rustfs:latest"

	dbCredential = "regassist"

	// S3 credentials and region of the RustFS container.
	S3AccessKey = "rustfsadmin"
	S3SecretKey = "rustfsadmin"
	S3Region    = "us-east-1"
)

// Tables lists every table the migrations create, children first.
var Tables = []string{"answer_logs", "chunk_vectors", "index_versions"}

// StartPostgres runs a pgvector container, applies the embedded migrations
// through database.Migrate and returns a pool on it. The container and the
// pool are released when the test ends.
func StartPostgres(ctx context.Context, t testing.TB) *pgxpool.Pool {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgvectorImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     dbCredential,
				"POSTGRES_PASSWORD": dbCredential,
				"POSTGRES_DB":       dbCredential,
			},
			// postgres restarts once after initdb
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start pgvector container: %v", err)
	}

	hostPort, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get pgvector endpoint: %v", err)
	}
	url := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", dbCredential, dbCredential, hostPort, dbCredential)

	var pool *pgxpool.Pool
	for attempt := 1; ; attempt++ {
		pool, err = database.NewPool(ctx, database.Config{URL: url, MaxConns: 4})
		if err == nil {
			break
		}
		if attempt == 5 {
			t.Fatalf("failed to connect to pgvector container: %v", err)
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(url); err != nil {
		t.Fatalf("failed to migrate pgvector container: %v", err)
	}
	return pool
}

// ResetTables empties every table so the next test starts from a database
// with no published index.
func ResetTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range Tables {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// StartRustFS runs a RustFS container and returns its S3 endpoint URL. Use
// S3AccessKey, S3SecretKey and S3Region with path-style addressing to reach
// it.
func StartRustFS(ctx context.Context, t testing.TB) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        rustfsImage,
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"RUSTFS_ACCESS_KEY": S3AccessKey,
				"RUSTFS_SECRET_KEY": S3SecretKey,
			},
			WaitingFor: wait.ForListeningPort("9000/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start rustfs container: %v", err)
	}

	url, err := container.Endpoint(ctx, "http")
	if err != nil {
		t.Fatalf("failed to get rustfs endpoint: %v", err)
	}
	return url
}
