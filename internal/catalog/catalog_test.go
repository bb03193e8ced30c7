package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsnow/internal/engine"
	"fsnow/internal/fserr"
)

func newTestCatalog(t *testing.T) (*Catalog, context.Context) {
	t.Helper()
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := Open(ctx, h)
	require.NoError(t, err)
	return cat, ctx
}

func TestCreateAndDropDatabase(t *testing.T) {
	cat, ctx := newTestCatalog(t)

	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	exists, err := cat.DatabaseExists(ctx, "db1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = cat.CreateDatabase(ctx, "db1", false)
	var fe *fserr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fserr.AlreadyExists, fe.Kind)

	require.NoError(t, cat.CreateDatabase(ctx, "db1", true))

	require.NoError(t, cat.DropDatabase(ctx, "db1", false))
	exists, err = cat.DatabaseExists(ctx, "db1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDropMissingDatabaseFails(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	err := cat.DropDatabase(ctx, "nope", false)
	var fe *fserr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fserr.MissingDatabase, fe.Kind)

	require.NoError(t, cat.DropDatabase(ctx, "nope", true))
}

func TestCreateDatabaseBootstrapsMainSchema(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))

	exists, err := cat.SchemaExists(ctx, "db1", "MAIN")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegisterAndListTables(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "t1", "TABLE", ""))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "v1", "VIEW", ""))

	all, err := cat.ListTables(ctx, "db1", "MAIN", "")
	require.NoError(t, err)
	assert.Len(t, all.Rows, 2)
	assert.Contains(t, all.Columns, "table_name")

	tablesOnly, err := cat.ListTables(ctx, "db1", "MAIN", "TABLE")
	require.NoError(t, err)
	require.Len(t, tablesOnly.Rows, 1)
	assert.Equal(t, "t1", tablesOnly.Rows[0]["table_name"])
}

func TestSetTableComment(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "t1", "TABLE", ""))
	require.NoError(t, cat.SetTableComment(ctx, "db1", "MAIN", "t1", "a note"))

	rows, err := cat.ListTables(ctx, "db1", "MAIN", "")
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "a note", rows.Rows[0]["comment"])
}

func TestColumnLengthRoundTrip(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.RegisterColumnLength(ctx, "db1", "MAIN", "t1", "name", "VARCHAR", 64))

	n, err := cat.ColumnLength(ctx, "db1", "MAIN", "t1", "name")
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	n, err = cat.ColumnLength(ctx, "db1", "MAIN", "t1", "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestColumnLengthReplacesPriorValue(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.RegisterColumnLength(ctx, "db1", "MAIN", "t1", "name", "VARCHAR", 16))
	require.NoError(t, cat.RegisterColumnLength(ctx, "db1", "MAIN", "t1", "name", "VARCHAR", 32))

	n, err := cat.ColumnLength(ctx, "db1", "MAIN", "t1", "name")
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

func TestStageRegistrationAndLookup(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.RegisterStage(ctx, "db1", "MAIN", "s1", "", "/stages/db1/MAIN/s1", false))

	root, err := cat.StageLocalRoot(ctx, "db1", "MAIN", "s1")
	require.NoError(t, err)
	assert.Equal(t, "/stages/db1/MAIN/s1", root)

	_, err = cat.StageLocalRoot(ctx, "db1", "MAIN", "missing")
	var fe *fserr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fserr.ObjectNotExist, fe.Kind)

	stages, err := cat.ListStages(ctx, "db1", "MAIN")
	require.NoError(t, err)
	require.Len(t, stages.Rows, 1)
	assert.Equal(t, "s1", stages.Rows[0]["name"])
}

func TestLoadHistoryTracksFiles(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	loaded, err := cat.AlreadyLoaded(ctx, "db1", "MAIN", "t1", "a.csv")
	require.NoError(t, err)
	assert.False(t, loaded)

	require.NoError(t, cat.RecordLoad(ctx, "db1", "MAIN", "t1", "a.csv", 10, "LOADED"))

	loaded, err = cat.AlreadyLoaded(ctx, "db1", "MAIN", "t1", "a.csv")
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestDropSchemaCascadesRegistrations(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.CreateSchema(ctx, "db1", "ANALYTICS", false))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "ANALYTICS", "t1", "TABLE", ""))
	require.NoError(t, cat.RegisterColumnLength(ctx, "db1", "ANALYTICS", "t1", "name", "VARCHAR", 8))

	require.NoError(t, cat.DropSchema(ctx, "db1", "ANALYTICS", false))

	exists, err := cat.SchemaExists(ctx, "db1", "ANALYTICS")
	require.NoError(t, err)
	assert.False(t, exists)

	tables, err := cat.ListTables(ctx, "db1", "ANALYTICS", "")
	require.NoError(t, err)
	assert.Empty(t, tables.Rows)

	err = cat.DropSchema(ctx, "db1", "ANALYTICS", false)
	var fe *fserr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fserr.ObjectNotExist, fe.Kind)

	require.NoError(t, cat.DropSchema(ctx, "db1", "ANALYTICS", true))
}

func TestRegisterTableReplacesPriorRow(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "t1", "TABLE", "old"))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "t1", "TABLE", "new"))

	rows, err := cat.ListTables(ctx, "db1", "MAIN", "")
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "new", rows.Rows[0]["comment"])
}

func TestUnregisterTableRemovesColumns(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.RegisterTable(ctx, "db1", "MAIN", "t1", "TABLE", ""))
	require.NoError(t, cat.RegisterColumnLength(ctx, "db1", "MAIN", "t1", "name", "VARCHAR", 8))

	require.NoError(t, cat.UnregisterTable(ctx, "db1", "MAIN", "t1"))

	rows, err := cat.ListTables(ctx, "db1", "MAIN", "")
	require.NoError(t, err)
	assert.Empty(t, rows.Rows)

	n, err := cat.ColumnLength(ctx, "db1", "MAIN", "t1", "name")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListDatabasesAndSchemas(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	require.NoError(t, cat.CreateDatabase(ctx, "db2", false))
	require.NoError(t, cat.CreateSchema(ctx, "db1", "ANALYTICS", false))

	dbs, err := cat.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Len(t, dbs.Rows, 2)
	assert.Equal(t, []string{"name", "created_at", "comment"}, dbs.Columns)

	schemas, err := cat.ListSchemas(ctx, "db1")
	require.NoError(t, err)
	assert.Len(t, schemas.Rows, 2) // MAIN (bootstrapped) + ANALYTICS
}

func TestListUsers(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	users, err := cat.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users.Rows)
}

func TestCreateSequenceRecordsRow(t *testing.T) {
	cat, ctx := newTestCatalog(t)
	require.NoError(t, cat.CreateSequence(ctx, "db1", "MAIN", "_fs_seq_t_id_abc123", 1, 1))

	res, err := cat.host.Exec(ctx, "_fs_global", "SELECT * FROM _fs_sequences WHERE name = '_fs_seq_t_id_abc123'")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
}

func TestTenantForIsIdentity(t *testing.T) {
	assert.Equal(t, "db1", TenantFor("db1"))
}
