package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsnow/internal/catalog"
	"fsnow/internal/engine"
	"fsnow/internal/fserr"
	"fsnow/internal/stage"
)

func newTestSession(t *testing.T) (*Session, context.Context) {
	t.Helper()
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)
	stg, err := stage.NewManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { stg.Close() })
	return New(h, cat, stg, nil), ctx
}

func TestExecuteCreateDatabaseAndUse(t *testing.T) {
	s, ctx := newTestSession(t)

	cur := s.Execute(ctx, "CREATE DATABASE mydb")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "Database mydb successfully created.", cur.Rows[0]["status"])

	cur = s.Execute(ctx, "USE DATABASE mydb")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "mydb", s.Database)
	assert.Equal(t, "MAIN", s.Schema)
}

func TestExecuteWithoutDatabaseFails(t *testing.T) {
	s, ctx := newTestSession(t)
	cur := s.Execute(ctx, "CREATE TABLE t (id INT)")
	assert.Equal(t, StatusFailed, cur.Status)
	assert.Error(t, cur.Error)
}

func TestExecuteWithoutSchemaFailsWith90106(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	s.Database = "mydb" // connected with a database but no schema

	cur := s.Execute(ctx, "SELECT 1")
	assert.Equal(t, StatusSuccess, cur.Status)

	cur = s.Execute(ctx, "CREATE TABLE t (id INT)")
	require.Equal(t, StatusFailed, cur.Status)
	var fe *fserr.Error
	require.True(t, fserr.As(cur.Error, &fe))
	assert.Equal(t, 90106, fe.Errno)
}

func TestExecuteCurrentSchemaReflectsUse(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)

	cur := s.Execute(ctx, "SELECT CURRENT_SCHEMA()")
	require.Equal(t, StatusSuccess, cur.Status)
	require.Len(t, cur.Rows, 1)
	for _, v := range cur.Rows[0] {
		assert.Equal(t, "MAIN", v)
	}
}

func TestExecuteCreateTableAndDescribe(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)

	cur := s.Execute(ctx, "CREATE TABLE widgets (id INT, name VARCHAR(32))")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "Table widgets successfully created.", cur.Rows[0]["status"])

	cur = s.Execute(ctx, "DESCRIBE TABLE widgets")
	require.Equal(t, StatusSuccess, cur.Status)
	require.Len(t, cur.Rows, 2)
	assert.Equal(t, describeColumns, cur.Columns)
	require.Len(t, cur.Columns, 12)
	assert.Equal(t, "NUMBER(38,0)", cur.Rows[0]["type"])
	assert.Equal(t, "VARCHAR(32)", cur.Rows[1]["type"])
}

func TestExecuteSchemaLifecycleAndShowTables(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)

	cur := s.Execute(ctx, "CREATE SCHEMA analytics")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "Schema analytics successfully created.", cur.Rows[0]["status"])

	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE SCHEMA analytics").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE TABLE events (id INT)").Status)

	cur = s.Execute(ctx, "SHOW TABLES")
	require.Equal(t, StatusSuccess, cur.Status)
	require.Len(t, cur.Rows, 1)
	assert.Equal(t, "events", cur.Rows[0]["table_name"])

	require.Equal(t, StatusSuccess, s.Execute(ctx, "DROP TABLE events").Status)
	cur = s.Execute(ctx, "SHOW TABLES")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Empty(t, cur.Rows)

	cur = s.Execute(ctx, "DROP SCHEMA analytics")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "analytics successfully dropped.", cur.Rows[0]["status"])
}

func TestExecuteInsertReportsRowsInserted(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE TABLE t (id INT)").Status)

	cur := s.Execute(ctx, "INSERT INTO t VALUES (1),(2),(3)")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.EqualValues(t, 3, cur.Rows[0]["number of rows inserted"])
}

func TestExecuteMergeReportsOnlyNamedActionKinds(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)
	for _, sql := range []string{
		"CREATE TABLE t (id INT, v INT)",
		"CREATE TABLE s (id INT, v INT)",
		"INSERT INTO t VALUES (1,10),(2,20)",
		"INSERT INTO s VALUES (1,100),(3,300)",
	} {
		require.Equal(t, StatusSuccess, s.Execute(ctx, sql).Status, sql)
	}

	cur := s.Execute(ctx, `MERGE INTO t USING s ON t.id=s.id
		WHEN MATCHED THEN UPDATE SET v=s.v
		WHEN NOT MATCHED THEN INSERT (id,v) VALUES (s.id,s.v)`)
	require.Equal(t, StatusSuccess, cur.Status)
	// No WHEN clause deletes, so the "number of rows deleted" column is
	// omitted from the result.
	assert.Equal(t, []string{"number of rows inserted", "number of rows updated"}, cur.Columns)
	require.Len(t, cur.Rows, 1)
	assert.EqualValues(t, 1, cur.Rows[0]["number of rows inserted"])
	assert.EqualValues(t, 1, cur.Rows[0]["number of rows updated"])

	data := s.Execute(ctx, "SELECT id, v FROM t ORDER BY id")
	require.Equal(t, StatusSuccess, data.Status)
	require.Len(t, data.Rows, 3)
	assert.EqualValues(t, 100, data.Rows[0]["v"])
	assert.EqualValues(t, 20, data.Rows[1]["v"])
	assert.EqualValues(t, 300, data.Rows[2]["v"])
}

func TestExecuteDropTableStatus(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "USE DATABASE mydb").Status)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE TABLE t (id INT)").Status)

	cur := s.Execute(ctx, "DROP TABLE t")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "t successfully dropped.", cur.Rows[0]["status"])
}

func TestExecuteShowDatabasesListsRegistered(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)

	cur := s.Execute(ctx, "SHOW DATABASES")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.GreaterOrEqual(t, len(cur.Rows), 1)
}

func TestExecuteShowDatabasesColumnOrderIsStable(t *testing.T) {
	s, ctx := newTestSession(t)
	require.Equal(t, StatusSuccess, s.Execute(ctx, "CREATE DATABASE mydb").Status)

	var first []string
	for i := 0; i < 5; i++ {
		cur := s.Execute(ctx, "SHOW DATABASES")
		require.Equal(t, StatusSuccess, cur.Status)
		if first == nil {
			first = cur.Columns
		}
		assert.Equal(t, first, cur.Columns)
	}
}

func TestExecuteShowPrimaryKeysReturnsEmptyShape(t *testing.T) {
	s, ctx := newTestSession(t)
	cur := s.Execute(ctx, "SHOW PRIMARY KEYS IN TABLE t")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Empty(t, cur.Rows)
	assert.Equal(t, constraintColumns, cur.Columns)
}

func TestExecuteSetAndUnsetVariable(t *testing.T) {
	s, ctx := newTestSession(t)
	cur := s.Execute(ctx, "SET myvar = 'hello'")
	require.Equal(t, StatusSuccess, cur.Status)

	cur = s.Execute(ctx, "UNSET myvar")
	require.Equal(t, StatusSuccess, cur.Status)
}

func TestExecuteCommitRollbackBeginAreNops(t *testing.T) {
	s, ctx := newTestSession(t)
	for _, sql := range []string{"COMMIT", "ROLLBACK", "BEGIN"} {
		cur := s.Execute(ctx, sql)
		assert.Equal(t, StatusSuccess, cur.Status, sql)
	}
}

func TestExecuteCreateUser(t *testing.T) {
	s, ctx := newTestSession(t)
	cur := s.Execute(ctx, "CREATE USER bob")
	require.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, "User bob successfully created.", cur.Rows[0]["status"])

	cur = s.Execute(ctx, "SHOW USERS")
	require.Equal(t, StatusSuccess, cur.Status)
	require.Len(t, cur.Rows, 1)
}

func TestShowScopeTableExtractsLastField(t *testing.T) {
	assert.Equal(t, "t1", showScopeTable("TABLE t1"))
	assert.Equal(t, "", showScopeTable(""))
}
