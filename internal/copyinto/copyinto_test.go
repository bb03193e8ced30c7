package copyinto

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsnow/internal/catalog"
	"fsnow/internal/engine"
	"fsnow/internal/sqlparse"
)

func setupCopyFixture(t *testing.T) (*engine.Host, *catalog.Catalog, context.Context, string) {
	t.Helper()
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)

	_, err = h.Exec(ctx, "db1", "CREATE TABLE widgets (id INT, name TEXT)")
	require.NoError(t, err)

	stageRoot := t.TempDir()
	require.NoError(t, cat.RegisterStage(ctx, "db1", "MAIN", "s1", "", stageRoot, false))
	return h, cat, ctx, stageRoot
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRunLoadsNewFileAndRecordsHistory(t *testing.T) {
	h, cat, ctx, stageRoot := setupCopyFixture(t)
	writeCSV(t, stageRoot, "a.csv", "id,name\n1,foo\n2,bar\n")

	stmt := &sqlparse.CopyIntoStmt{
		Table:  "widgets",
		Source: "@s1",
		OnErr:  "ABORT_STATEMENT",
	}
	statuses, err := Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "s1/a.csv", statuses[0].File)
	assert.Equal(t, "LOADED", statuses[0].Status)

	loaded, err := cat.AlreadyLoaded(ctx, "db1", "MAIN", "widgets", "s1/a.csv")
	require.NoError(t, err)
	assert.True(t, loaded)
}

func TestRunSkipsAlreadyLoadedUnlessForce(t *testing.T) {
	h, cat, ctx, stageRoot := setupCopyFixture(t)
	writeCSV(t, stageRoot, "a.csv", "id,name\n1,foo\n")

	stmt := &sqlparse.CopyIntoStmt{Table: "widgets", Source: "@s1", OnErr: "ABORT_STATEMENT"}
	_, err := Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	require.NoError(t, err)

	statuses, err := Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "LOAD_SKIPPED", statuses[0].Status)

	stmt.Force = true
	statuses, err = Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "LOADED", statuses[0].Status)
}

func TestRunFiltersToNamedFiles(t *testing.T) {
	h, cat, ctx, stageRoot := setupCopyFixture(t)
	writeCSV(t, stageRoot, "a.csv", "id,name\n1,foo\n")
	writeCSV(t, stageRoot, "b.csv", "id,name\n2,bar\n")

	stmt := &sqlparse.CopyIntoStmt{Table: "widgets", Source: "@s1", Files: []string{"b.csv"}, OnErr: "ABORT_STATEMENT"}
	statuses, err := Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "s1/b.csv", statuses[0].File)
}

func TestReportedFileNameInternalStageVsExternal(t *testing.T) {
	name, fromStage := stageSourceName("@s1/sub")
	assert.Equal(t, "s1", name)
	assert.True(t, fromStage)
	assert.Equal(t, "s1/foo.csv.gz", reportedFileName("/tmp/s1/sub/foo.csv.gz", name, fromStage))

	name, fromStage = stageSourceName("s3://bucket/path/foo.csv")
	assert.Equal(t, "", name)
	assert.False(t, fromStage)
	assert.Equal(t, "s3://bucket/path/foo.csv", reportedFileName("s3://bucket/path/foo.csv", name, fromStage))
}

func TestRunParquetIsUnsupported(t *testing.T) {
	h, cat, ctx, stageRoot := setupCopyFixture(t)
	writeCSV(t, stageRoot, "a.csv", "id,name\n1,foo\n")

	stmt := &sqlparse.CopyIntoStmt{Table: "widgets", Source: "@s1", Format: sqlparse.FormatParquet, OnErr: "ABORT_STATEMENT"}
	_, err := Run(ctx, h, cat, "db1", "db1", "MAIN", stmt)
	assert.Error(t, err)
}

func TestResolveSourceRootWithSubPath(t *testing.T) {
	_, cat, ctx, stageRoot := setupCopyFixture(t)
	require.NoError(t, cat.RegisterStage(ctx, "db1", "MAIN", "nested", "", stageRoot, false))

	root, err := resolveSourceRoot(ctx, cat, "db1", "MAIN", "@nested/sub")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stageRoot, "sub"), root)
}

func TestEnumerateFilesFiltersAndSkipsDirs(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "a.csv", "x")
	writeCSV(t, dir, "b.csv", "y")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	all, err := enumerateFiles(dir, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := enumerateFiles(dir, []string{"a.csv"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, filepath.Join(dir, "a.csv"), only[0])
}
