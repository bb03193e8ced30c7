package transform

import (
	"context"
	"regexp"
	"strings"
)

// Database and schema lifecycle, spec.md §4.3's "Session statements" and
// "Database lifecycle" neighbours: the host engine namespaces by tenant and
// has no CREATE/DROP DATABASE or SCHEMA of its own, so these statements
// never reach it as SQL. They resolve entirely against the metadata
// catalog, and the empty Plan they return tells the session loop to shape
// a status row from the original statement text.
//
// CREATE SCHEMA must be intercepted here, before ExtractDDLTags runs: the
// MySQL grammar tidb implements treats CREATE SCHEMA as a synonym for
// CREATE DATABASE, which would mis-register a schema as a database.
var (
	createSchemaRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?SCHEMA\s+(IF\s+NOT\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s*$`)
	dropSchemaRe   = regexp.MustCompile(`(?is)^\s*DROP\s+SCHEMA\s+(IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s*(?:CASCADE|RESTRICT)?\s*$`)
	dropDatabaseRe = regexp.MustCompile(`(?is)^\s*DROP\s+DATABASE\s+(IF\s+EXISTS\s+)?([A-Za-z0-9_."]+)\s*$`)
)

// rewriteLifecycle intercepts CREATE/DROP SCHEMA and DROP DATABASE and
// applies them to the catalog. Returns ok=false when sql is none of these,
// in which case the caller continues through the generic pipeline. The
// target dialect's DROP SCHEMA is cascading (spec.md §4.3's schema-cascade
// family), so the catalog drop removes the schema's contained object
// metadata too.
func rewriteLifecycle(ctx context.Context, tctx *Context, sql string) (*Plan, bool, error) {
	if tctx == nil || tctx.Catalog == nil {
		return nil, false, nil
	}
	if m := createSchemaRe.FindStringSubmatch(sql); m != nil {
		db, schema := splitSchemaName(tctx, m[2])
		if err := tctx.Catalog.CreateSchema(ctx, db, schema, m[1] != ""); err != nil {
			return nil, true, err
		}
		return &Plan{}, true, nil
	}
	if m := dropSchemaRe.FindStringSubmatch(sql); m != nil {
		db, schema := splitSchemaName(tctx, m[2])
		if err := tctx.Catalog.DropSchema(ctx, db, schema, m[1] != ""); err != nil {
			return nil, true, err
		}
		return &Plan{}, true, nil
	}
	if m := dropDatabaseRe.FindStringSubmatch(sql); m != nil {
		if err := tctx.Catalog.DropDatabase(ctx, unquoteIdent(m[2]), m[1] != ""); err != nil {
			return nil, true, err
		}
		return &Plan{}, true, nil
	}
	return nil, false, nil
}

// splitSchemaName resolves an optionally database-qualified schema name
// against the session's current database.
func splitSchemaName(tctx *Context, name string) (db, schema string) {
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		return unquoteIdent(parts[0]), unquoteIdent(parts[1])
	}
	return tctx.Database, unquoteIdent(parts[0])
}
