package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsnow/internal/catalog"
	"fsnow/internal/engine"
	"fsnow/internal/sqlparse"
)

func TestStripClusterBy(t *testing.T) {
	sql := "CREATE TABLE t (id INT) CLUSTER BY (id, name)"
	got := stripClusterBy(sql)
	assert.NotContains(t, got, "CLUSTER BY")
}

func TestStripTagsAndMasking(t *testing.T) {
	sql := "ALTER TABLE t ALTER COLUMN ssn SET MASKING POLICY mask_ssn WITH TAG (pii = 'true')"
	got := stripTagsAndMasking(sql)
	assert.NotContains(t, got, "MASKING POLICY")
	assert.NotContains(t, got, "WITH TAG")
}

func TestStripSample(t *testing.T) {
	sql := "SELECT * FROM t SAMPLE (10)"
	got := stripSample(sql)
	assert.NotContains(t, got, "SAMPLE")
}

func TestSplitAutoincrementGeneratesSequenceAndDefault(t *testing.T) {
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))

	sql := "CREATE TABLE t (id INT AUTOINCREMENT(1,1), name TEXT)"
	stmts, ok, err := splitAutoincrement(ctx, &Context{Database: "db1", Schema: "MAIN", Catalog: cat}, sql)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE SEQUENCE")
	assert.Contains(t, stmts[0], "START WITH 1 INCREMENT BY 1")
	assert.Contains(t, stmts[1], "CREATE TABLE t (id INT DEFAULT NEXTVAL(")
	assert.NotContains(t, stmts[1], "AUTOINCREMENT")
}

func TestSplitAutoincrementNoOpWithoutAutoincrementColumn(t *testing.T) {
	_, ok, err := splitAutoincrement(context.Background(), nil, "CREATE TABLE t (id INT, name TEXT)")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRewriteNextval(t *testing.T) {
	got := rewriteNextval("SELECT my_seq.nextval FROM dual")
	assert.Equal(t, "SELECT NEXTVAL('my_seq') AS NEXTVAL FROM dual", got)
}

func TestRewriteTypeCoercions(t *testing.T) {
	sql := "CREATE TABLE t (a FLOAT, b INT, c DECIMAL(38,0), d OBJECT, e ARRAY, f VARIANT, g TIMESTAMP_NTZ(9))"
	got := rewriteTypeCoercions(sql)
	assert.Contains(t, got, "a DOUBLE")
	assert.Contains(t, got, "b BIGINT")
	assert.Contains(t, got, "c BIGINT")
	assert.Contains(t, got, "d JSON")
	assert.Contains(t, got, "e JSON")
	assert.Contains(t, got, "f JSON")
	assert.Contains(t, got, "g TIMESTAMP(9)")
}

func TestRewriteValuesColumnNaming(t *testing.T) {
	got := rewriteValuesColumnNaming("SELECT * FROM VALUES (1, 'a'), (2, 'b')")
	assert.Contains(t, got, "AS _fs_values(COLUMN1, COLUMN2)")

	// INSERT...VALUES names columns from the target table, not COLUMN1..n.
	unchanged := "INSERT INTO t VALUES (1, 'a')"
	assert.Equal(t, unchanged, rewriteValuesColumnNaming(unchanged))

	// Already-aliased VALUES is left alone.
	aliased := "SELECT * FROM VALUES (1, 'a') AS t(id, name)"
	assert.Equal(t, aliased, rewriteValuesColumnNaming(aliased))
}

func TestSplitAlterTableAddMultiColumn(t *testing.T) {
	stmts, ok := splitAlterTableAdd("ALTER TABLE t ADD COLUMN a INT, b VARCHAR(10)")
	require.True(t, ok)
	require.Len(t, stmts, 2)
	assert.Equal(t, "ALTER TABLE t ADD COLUMN a INT", stmts[0])
	assert.Equal(t, "ALTER TABLE t ADD COLUMN b VARCHAR(10)", stmts[1])
}

func TestSplitAlterTableAddPropagatesIfNotExists(t *testing.T) {
	stmts, ok := splitAlterTableAdd("ALTER TABLE t ADD COLUMN a INT, IF NOT EXISTS b VARCHAR(10)")
	require.True(t, ok)
	require.Len(t, stmts, 2)
	assert.Equal(t, "ALTER TABLE t ADD COLUMN IF NOT EXISTS a INT", stmts[0])
	assert.Equal(t, "ALTER TABLE t ADD COLUMN IF NOT EXISTS b VARCHAR(10)", stmts[1])
}

func TestSplitAlterTableAddSingleColumnIsNoOp(t *testing.T) {
	_, ok := splitAlterTableAdd("ALTER TABLE t ADD COLUMN a INT")
	assert.False(t, ok)
}

func TestRewriteCTASRealignsDeclaredColumnList(t *testing.T) {
	got, err := rewriteCTAS(context.Background(), nil, "CREATE TABLE t (a NUMBER(10,2), b VARCHAR(20)) AS SELECT x, y FROM src")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t AS SELECT CAST(x AS NUMBER(10,2)) AS a, CAST(y AS VARCHAR(20)) AS b FROM src", got)
}

func TestRewriteCTASExpandsStarViaHostProbe(t *testing.T) {
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = h.Exec(ctx, "db1", "CREATE TABLE src (x INT, y TEXT)")
	require.NoError(t, err)

	got, err := rewriteCTAS(ctx, &Context{Host: h, Tenant: "db1"}, "CREATE TABLE t (a, b) AS SELECT * FROM src")
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE t AS SELECT x AS a, y AS b FROM src", got)
}

func TestRewriteCTASPassesThroughWithoutColumnList(t *testing.T) {
	sql := "CREATE TABLE t AS SELECT x, y FROM src"
	got, err := rewriteCTAS(context.Background(), nil, sql)
	require.NoError(t, err)
	assert.Equal(t, sql, got)
}

func TestRewriteFunctionShims(t *testing.T) {
	cases := map[string]string{
		"SELECT IFNULL(a, b)":       "COALESCE(",
		"SELECT NVL(a, b)":          "COALESCE(",
		"SELECT TO_VARCHAR(x)":      "CAST_TEXT(",
		"SELECT TO_NUMBER(x)":       "CAST_DECIMAL(",
		"SELECT RANDOM()":           "RAND()",
		"SELECT DATEADD(day, 1, x)": "DATE_ADD_PARTS(",
		"SELECT ARRAY_SIZE(x)":      "JSON_ARRAY_LENGTH(",
		"SELECT SHA2(x)":            "SHA256_HEX(",
	}
	for in, want := range cases {
		got := rewriteFunctionShims(in)
		assert.Contains(t, got, want, "input: %s", in)
	}
}

func TestRewriteIdentifierFn(t *testing.T) {
	got := rewriteIdentifierFn("SELECT * FROM IDENTIFIER('my_table')")
	assert.Equal(t, "SELECT * FROM my_table", got)
}

func TestRewriteGenericAppliesAllFamilies(t *testing.T) {
	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "SELECT IFNULL(a,b) FROM t SAMPLE (5) CLUSTER BY (a)",
	}
	plan, err := Rewrite(context.Background(), nil, stmt)
	require.NoError(t, err)
	require.Len(t, plan.HostSQL, 1)
	out := plan.HostSQL[0]
	assert.Contains(t, out, "COALESCE(")
	assert.NotContains(t, out, "SAMPLE")
	assert.NotContains(t, out, "CLUSTER BY")
}

func TestRewriteGenericCreateDatabaseMaterializesInCatalog(t *testing.T) {
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)

	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "CREATE DATABASE newdb",
	}
	_, err = Rewrite(ctx, &Context{Database: "", Schema: "", Catalog: cat}, stmt)
	require.NoError(t, err)

	exists, err := cat.DatabaseExists(ctx, "newdb")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRewriteGenericCreateTableRegistersInCatalog(t *testing.T) {
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))

	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "CREATE TABLE widgets (id INT, name VARCHAR(32)) COMMENT = 'parts list'",
	}
	plan, err := Rewrite(ctx, &Context{Database: "db1", Schema: "MAIN", Catalog: cat}, stmt)
	require.NoError(t, err)
	require.Len(t, plan.HostSQL, 1)
	assert.NotContains(t, plan.HostSQL[0], "COMMENT")

	rows, err := cat.ListTables(ctx, "db1", "MAIN", "TABLE")
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, "widgets", rows.Rows[0]["table_name"])
	assert.Equal(t, "parts list", rows.Rows[0]["comment"])

	n, err := cat.ColumnLength(ctx, "db1", "MAIN", "widgets", "name")
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

func TestRewriteLifecycleSchemaStatements(t *testing.T) {
	h, err := engine.Open(engine.Config{}, nil)
	require.NoError(t, err)
	ctx := context.Background()
	cat, err := catalog.Open(ctx, h)
	require.NoError(t, err)
	require.NoError(t, cat.CreateDatabase(ctx, "db1", false))
	tctx := &Context{Database: "db1", Schema: "MAIN", Catalog: cat}

	plan, ok, err := rewriteLifecycle(ctx, tctx, "CREATE SCHEMA analytics")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, plan.HostSQL)

	exists, err := cat.SchemaExists(ctx, "db1", "analytics")
	require.NoError(t, err)
	assert.True(t, exists)

	_, ok, err = rewriteLifecycle(ctx, tctx, "DROP SCHEMA analytics CASCADE")
	require.NoError(t, err)
	require.True(t, ok)

	exists, err = cat.SchemaExists(ctx, "db1", "analytics")
	require.NoError(t, err)
	assert.False(t, exists)

	_, ok, err = rewriteLifecycle(ctx, tctx, "SELECT 1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRewriteObjectConstruct(t *testing.T) {
	got := rewriteObjectConstruct("SELECT OBJECT_CONSTRUCT('fruit', 'banana')")
	assert.Contains(t, got, "JSON_OBJECT(")
	got = rewriteObjectConstruct("SELECT OBJECT_CONSTRUCT_KEEP_NULL('fruit', NULL)")
	assert.Contains(t, got, "JSON_OBJECT(")
}

func TestRewriteBracketIndex(t *testing.T) {
	got := rewriteBracketIndex("SELECT v['fruit'] FROM t")
	assert.Equal(t, "SELECT JSON_EXTRACT(v, '$.fruit') FROM t", got)

	got = rewriteBracketIndex("SELECT v[0] FROM t")
	assert.Equal(t, "SELECT JSON_EXTRACT(v, '$[0]') FROM t", got)
}

func TestRewriteBracketIndexChained(t *testing.T) {
	got := rewriteBracketIndex("SELECT v['a']['b'] FROM t")
	assert.Contains(t, got, "JSON_EXTRACT(JSON_EXTRACT(v, '$.a'), '$.b')")
}

func TestRewriteJSONExtractCastAsVarchar(t *testing.T) {
	in := "SELECT CAST(JSON_EXTRACT(v, '$.fruit') AS VARCHAR)"
	got := rewriteJSONExtractCastAsVarchar(in)
	assert.Equal(t, "SELECT JSON_EXTRACT_STRING(v, '$.fruit')", got)
}

func TestRewriteColonPaths(t *testing.T) {
	got := rewriteColonPaths("SELECT v:fruit FROM t")
	assert.Equal(t, "SELECT JSON_EXTRACT(v, '$.fruit') FROM t", got)

	got = rewriteColonPaths("SELECT PARSE_JSON('{\"fruit\":\"banana\"}'):fruit")
	assert.Equal(t, "SELECT JSON_EXTRACT(PARSE_JSON('{\"fruit\":\"banana\"}'), '$.fruit')", got)

	// A colon inside a string literal is data, not a path operator.
	unchanged := "SELECT 'a:b' FROM t"
	assert.Equal(t, unchanged, rewriteColonPaths(unchanged))
}

func TestRewriteColonPathsChained(t *testing.T) {
	got := rewriteColonPaths("SELECT v:a:b FROM t")
	assert.Equal(t, "SELECT JSON_EXTRACT(JSON_EXTRACT(v, '$.a'), '$.b') FROM t", got)
}

func TestRewriteDoubleColonCasts(t *testing.T) {
	got := rewriteDoubleColonCasts("SELECT x::VARCHAR FROM t")
	assert.Equal(t, "SELECT CAST(x AS VARCHAR) FROM t", got)

	got = rewriteDoubleColonCasts("SELECT amount::NUMBER(10,2) FROM t")
	assert.Equal(t, "SELECT CAST(amount AS NUMBER(10,2)) FROM t", got)

	got = rewriteDoubleColonCasts("SELECT '1'::BIGINT")
	assert.Equal(t, "SELECT CAST('1' AS BIGINT)", got)
}

func TestRewriteTryParseJSON(t *testing.T) {
	got := rewriteTryParseJSON("SELECT TRY_PARSE_JSON(doc) FROM t")
	assert.Equal(t, "SELECT TRY_CAST(doc AS JSON) FROM t", got)

	got = rewriteTryParseJSON("SELECT TRY_PARSE_JSON('{invalid: ,]')")
	assert.Equal(t, "SELECT TRY_CAST('{invalid: ,]' AS JSON)", got)
}

func TestRewriteGenericLowersColonPathCastChain(t *testing.T) {
	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: `SELECT PARSE_JSON('{"fruit":"banana"}'):fruit::VARCHAR`,
	}
	plan, err := Rewrite(context.Background(), nil, stmt)
	require.NoError(t, err)
	require.Len(t, plan.HostSQL, 1)
	// The raw-string extraction form strips the JSON quoting, so the value
	// surfaces as banana rather than "banana".
	assert.Equal(t, `SELECT JSON_EXTRACT_STRING(JSON_PARSE('{"fruit":"banana"}'), '$.fruit')`, plan.HostSQL[0])
}

func TestRewriteFlatten(t *testing.T) {
	got := rewriteFlatten("SELECT * FROM TABLE(FLATTEN(INPUT => parse_json(col)))")
	assert.Contains(t, got, "_fs_flatten(parse_json(col))")
}

func TestRewriteGenericLowersBracketIndexAndCastToVarchar(t *testing.T) {
	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "SELECT CAST(v['fruit'] AS VARCHAR) FROM t",
	}
	plan, err := Rewrite(context.Background(), nil, stmt)
	require.NoError(t, err)
	require.Len(t, plan.HostSQL, 1)
	assert.Contains(t, plan.HostSQL[0], "JSON_EXTRACT_STRING(v, '$.fruit')")
}

func TestRewriteNonGenericPassesThrough(t *testing.T) {
	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindCommit,
		Generic: "COMMIT",
	}
	plan, err := Rewrite(context.Background(), nil, stmt)
	require.NoError(t, err)
	assert.Equal(t, []string{"COMMIT"}, plan.HostSQL)
}
