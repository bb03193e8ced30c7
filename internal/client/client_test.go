package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Connect initializes a process-wide singleton exactly once (spec.md §4.2),
// so every test in this file shares one host/catalog/stage manager; tests
// use distinct database names instead of assuming isolated global state.

func TestConnectCreatesDatabaseAndSchema(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb1", Schema: "APP"})
	require.NoError(t, err)
	assert.Equal(t, "clientdb1", conn.sess.Database)
	assert.Equal(t, "APP", conn.sess.Schema)
}

func TestExecuteAndFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb2", Schema: "MAIN"})
	require.NoError(t, err)

	cur := conn.Cursor()
	require.NoError(t, cur.Execute(ctx, "CREATE TABLE widgets (id INT, name TEXT)"))
	require.NoError(t, cur.Execute(ctx, "INSERT INTO widgets VALUES (1, 'a'), (2, 'b')"))

	require.NoError(t, cur.Execute(ctx, "SELECT * FROM widgets ORDER BY id"))
	all := cur.FetchAll()
	assert.Len(t, all, 2)
}

func TestFetchOneAndFetchManyAdvancePosition(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb3", Schema: "MAIN"})
	require.NoError(t, err)

	cur := conn.Cursor()
	require.NoError(t, cur.Execute(ctx, "CREATE TABLE t (id INT)"))
	require.NoError(t, cur.Execute(ctx, "INSERT INTO t VALUES (1),(2),(3)"))
	require.NoError(t, cur.Execute(ctx, "SELECT * FROM t ORDER BY id"))

	first := cur.FetchOne()
	require.NotNil(t, first)
	assert.EqualValues(t, 1, first["id"])

	rest := cur.FetchMany(10)
	assert.Len(t, rest, 2)

	assert.Nil(t, cur.FetchOne())
}

func TestExecuteStringSplitsOnSemicolons(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb4", Schema: "MAIN"})
	require.NoError(t, err)

	curs, err := conn.ExecuteString(ctx, `
		CREATE TABLE a (id INT);
		-- a comment
		INSERT INTO a VALUES (1);
		SELECT * FROM a;
	`)
	require.NoError(t, err)
	require.Len(t, curs, 3)
	assert.Equal(t, int64(1), curs[2].RowCount())
}

func TestExecuteRecordsSQLStateOnFailure(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb5", Schema: "MAIN"})
	require.NoError(t, err)

	cur := conn.Cursor()
	err = cur.Execute(ctx, "SELECT * FROM does_not_exist_table")
	require.Error(t, err)
	assert.NotEmpty(t, cur.SQLState())
}

func TestNopRegexShortCircuitsExecution(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb6", Schema: "MAIN", NopRegexes: []string{`(?i)^ALTER\s+SESSION`}})
	require.NoError(t, err)

	cur := conn.Cursor()
	require.NoError(t, cur.Execute(ctx, "ALTER SESSION SET TIMEZONE = 'UTC'"))
	row := cur.FetchOne()
	require.NotNil(t, row)
	assert.Equal(t, "Statement executed successfully.", row["status"])
}

func TestConnectWithoutSchemaFailsUnqualifiedDDL(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb8"})
	require.NoError(t, err)

	cur := conn.Cursor()
	require.NoError(t, cur.Execute(ctx, "SELECT 1"))

	err = cur.Execute(ctx, "CREATE TABLE t (id INT)")
	require.Error(t, err)
	assert.Equal(t, "22000", cur.SQLState())
}

func TestBindParamsSubstitutesPyformat(t *testing.T) {
	got := bindParams("SELECT * FROM t WHERE id = %s AND name = %s", []any{1, "o'brien"})
	assert.Equal(t, "SELECT * FROM t WHERE id = 1 AND name = 'o''brien'", got)
}

func TestSplitStatementsIgnoresSemicolonsInQuotes(t *testing.T) {
	got := splitStatements(`SELECT 'a;b'; SELECT 1;`)
	require.Len(t, got, 2)
	assert.Contains(t, got[0], "'a;b'")
}

func TestIsPureComment(t *testing.T) {
	assert.True(t, isPureComment("-- just a comment"))
	assert.True(t, isPureComment("/* block */"))
	assert.False(t, isPureComment("SELECT 1 -- trailing"))
}

func TestArraySizeDefaultAndOverride(t *testing.T) {
	ctx := context.Background()
	conn, err := Connect(ctx, Options{Database: "clientdb7", Schema: "MAIN"})
	require.NoError(t, err)

	cur := conn.Cursor()
	assert.Equal(t, 1, cur.ArraySize())
	cur.SetArraySize(50)
	assert.Equal(t, 50, cur.ArraySize())
}
