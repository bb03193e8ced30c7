//go:build golden

package goldentest

import (
	"context"
	"testing"

	"fsnow/internal/sqlparse"
	"fsnow/internal/transform"
)

func TestRewrittenDDLIsValidAgainstRealMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed golden test in short mode")
	}
	c := Start(t)
	ctx := context.Background()

	// Declared types the target dialect allows but MySQL does not (FLOAT is
	// fine, TIMESTAMP_NTZ and VARIANT are not) must come out the other side
	// of the pipeline as types a real MySQL server accepts.
	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "CREATE TABLE widgets (id INT, name VARCHAR(64), payload VARIANT, created TIMESTAMP_NTZ)",
	}
	plan, err := transform.Rewrite(ctx, nil, stmt)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	for _, sql := range plan.HostSQL {
		c.AssertValid(t, ctx, sql)
	}
}

func TestRewrittenFunctionShimIsValidAgainstRealMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed golden test in short mode")
	}
	c := Start(t)
	ctx := context.Background()

	c.AssertValid(t, ctx, "CREATE TABLE t (a INT, b INT)")
	c.AssertValid(t, ctx, "INSERT INTO t VALUES (1, NULL)")

	stmt := &sqlparse.Statement{
		Kind:    sqlparse.KindGeneric,
		Generic: "SELECT IFNULL(b, a) AS coalesced FROM t",
	}
	plan, err := transform.Rewrite(ctx, nil, stmt)
	if err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	// COALESCE is the shim target, real MySQL's own builtin.
	c.AssertValid(t, ctx, plan.HostSQL[0])
}
