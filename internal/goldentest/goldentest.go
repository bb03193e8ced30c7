//go:build golden

// Package goldentest is an ambient confidence check, not part of the
// emulator's runtime path: it spins up a real MySQL-family server via
// testcontainers and confirms the host SQL the transform pipeline emits is
// at least syntactically valid against it, the same
// testcontainers-go+modules/mysql+go-sql-driver/mysql combination the
// teacher's own apply package integration-tests against (SPEC_FULL.md §8).
package goldentest

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

// Container wraps a running MySQL test container plus a direct *sql.DB
// connection to it.
type Container struct {
	container *mysql.MySQLContainer
	dsn       string
	db        *sql.DB
}

// Start launches a disposable MySQL 8.0 container for one test run,
// registering its teardown with t.Cleanup.
func Start(t *testing.T) *Container {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("fsnow_golden"),
		mysql.WithUsername("root"),
		mysql.WithPassword("fsnow"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err, "failed to get connection string")

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err, "failed to open direct DB connection")
	require.NoError(t, db.PingContext(ctx), "failed to ping database")
	t.Cleanup(func() { _ = db.Close() })

	return &Container{container: mysqlContainer, dsn: dsn, db: db}
}

// AssertValid runs sql against the container and fails the test if the
// server rejects it, the golden check's only assertion: the rewritten
// statement is at least syntactically and semantically acceptable to a
// real MySQL-family server, independent of whatever the in-process host
// engine accepts.
func (c *Container) AssertValid(t *testing.T, ctx context.Context, sql string) {
	t.Helper()
	_, err := c.db.ExecContext(ctx, sql)
	require.NoError(t, err, "host SQL rejected by MySQL: %s", sql)
}
