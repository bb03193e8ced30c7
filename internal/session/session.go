// Package session implements the per-connection Session/Cursor execution
// loop, spec.md §4.7: inline variables, classify and parse one statement,
// dispatch it to the catalog/merge/copyinto/stage subsystem or the
// transform pipeline, and hand back a typed result the wire adapter and
// client package both consume.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fsnow/internal/catalog"
	"fsnow/internal/copyinto"
	"fsnow/internal/engine"
	"fsnow/internal/fserr"
	"fsnow/internal/merge"
	"fsnow/internal/resultmeta"
	"fsnow/internal/sqlparse"
	"fsnow/internal/stage"
	"fsnow/internal/transform"
	"fsnow/internal/variables"
)

// Status mirrors the cursor status vocabulary spec.md §6.6 names.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// Cursor is the execution record of one statement: its host-assigned ID,
// final status, and either a row batch or an affected-row count.
type Cursor struct {
	ID       string
	Status   Status
	Columns  []string
	Rows     []map[string]any
	RowCount int64
	Error    error
}

// Session holds one client's connection-scoped state: the database/schema
// it is currently USEing, its session variables, and autocommit mode.
type Session struct {
	ID       string
	Database string
	Schema   string

	Autocommit bool

	vars  *variables.Store
	host  *engine.Host
	cat   *catalog.Catalog
	stage *stage.Manager
	log   *logrus.Entry
}

// New creates a Session bound to a shared host engine, catalog, and stage
// manager (all process-wide singletons; only Database/Schema/vars/
// Autocommit vary per session).
func New(host *engine.Host, cat *catalog.Catalog, stageMgr *stage.Manager, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.NewString()
	// Database and Schema stay unset until the caller connects with one or
	// runs USE: spec.md §8's boundary behaviour distinguishes "no database"
	// (90105) from "database but no schema" (90106), so neither may default
	// to a real name here.
	return &Session{
		ID:         id,
		Database:   "",
		Schema:     "",
		Autocommit: true,
		vars:       variables.New(),
		host:       host,
		cat:        cat,
		stage:      stageMgr,
		log:        log.WithField("component", "session").WithField("session_id", id),
	}
}

// Execute runs one raw SQL statement and returns a Cursor describing its
// outcome. It never returns a Go error for a statement-level failure;
// those are reported via Cursor.Status/Error so a caller executing a
// script can decide whether to continue, matching spec.md §4.8's
// qualification-check boundary (a missing database/schema is reported on
// the cursor, not as a panic or a connection-level error).
func (s *Session) Execute(ctx context.Context, raw string) *Cursor {
	cur := &Cursor{ID: uuid.NewString(), Status: StatusRunning}
	s.log.WithField("statement_id", cur.ID).Debug(raw)

	inlined, err := s.vars.Inline(raw)
	if err != nil {
		return s.fail(cur, fserr.Wrap(fserr.BindError, err, "%s", err.Error()))
	}

	stmt, err := sqlparse.Parse(inlined)
	if err != nil {
		return s.fail(cur, err)
	}

	switch stmt.Kind {
	case sqlparse.KindSet:
		s.vars.Set(stmt.SetVar.Name, stmt.SetVar.Value)
		return statusRow(cur, StatementExecutedSuccessfully)
	case sqlparse.KindUnset:
		s.vars.Unset(stmt.UnsetVar)
		return statusRow(cur, StatementExecutedSuccessfully)
	case sqlparse.KindUse:
		return s.execUse(cur, stmt.UseTarget)
	case sqlparse.KindCommit, sqlparse.KindRollback, sqlparse.KindBegin:
		// The host engine commits each Exec independently;
		// transaction-control statements
		// are therefore accepted as NOPs rather than rejected outright,
		// matching spec.md §7's "ROLLBACK/COMMIT outside a transaction is
		// reported as success" rule.
		return statusRow(cur, StatementExecutedSuccessfully)
	case sqlparse.KindMerge:
		return s.execMerge(ctx, cur, stmt.Merge)
	case sqlparse.KindCopyInto:
		return s.execCopyInto(ctx, cur, stmt.CopyInto)
	case sqlparse.KindCreateStage:
		return s.execCreateStage(ctx, cur, stmt.Stage)
	case sqlparse.KindPut:
		return s.execPut(ctx, cur, stmt.Stage)
	case sqlparse.KindGet:
		return s.execStageOp(ctx, cur, stmt.Stage, s.stage.Get)
	case sqlparse.KindList:
		return s.execList(ctx, cur, stmt.Stage)
	case sqlparse.KindRemove:
		return s.execStageOp(ctx, cur, stmt.Stage, s.stage.Remove)
	case sqlparse.KindCreateUser:
		return s.execCreateUser(ctx, cur, stmt.User)
	case sqlparse.KindShow:
		return s.execShow(ctx, cur, stmt.Show)
	case sqlparse.KindDescribe:
		return s.execDescribe(ctx, cur, stmt.Describe)
	default:
		return s.execGeneric(ctx, cur, stmt)
	}
}

func (s *Session) fail(cur *Cursor, err error) *Cursor {
	cur.Status = StatusFailed
	cur.Error = err
	s.log.WithField("statement_id", cur.ID).WithError(err).Warn("statement failed")
	return cur
}

func succeed(cur *Cursor, rowCount int64) *Cursor {
	cur.Status = StatusSuccess
	cur.RowCount = rowCount
	return cur
}

func (s *Session) requireDatabase(cur *Cursor, command string) bool {
	if s.Database == "" {
		s.fail(cur, fserr.MissingDatabaseFor(command))
		return false
	}
	return true
}

// requireScope is the §4.8 qualification check for statements that resolve
// unqualified object names: the database check reports 90105 first, then
// the schema check reports 90106 (spec.md §8's boundary behaviours).
func (s *Session) requireScope(cur *Cursor, command string) bool {
	if !s.requireDatabase(cur, command) {
		return false
	}
	if s.Schema == "" {
		s.fail(cur, fserr.MissingSchemaFor(command))
		return false
	}
	return true
}

func (s *Session) execUse(cur *Cursor, u *sqlparse.UseStmt) *Cursor {
	if u.IsSchema {
		db := u.Database
		if db == "" {
			db = s.Database
		}
		if db == "" {
			return s.fail(cur, fserr.MissingDatabaseFor("USE SCHEMA"))
		}
		s.Database = db
		s.Schema = u.Schema
		return statusRow(cur, StatementExecutedSuccessfully)
	}
	s.Database = u.Database
	s.Schema = "MAIN"
	return statusRow(cur, StatementExecutedSuccessfully)
}

func (s *Session) tenant() string { return catalog.TenantFor(s.Database) }

func (s *Session) execMerge(ctx context.Context, cur *Cursor, stmt *sqlparse.MergeStmt) *Cursor {
	if !s.requireScope(cur, "MERGE") {
		return cur
	}
	counts, err := merge.Run(ctx, s.host, s.tenant(), stmt)
	if err != nil {
		return s.fail(cur, err)
	}
	// Columns for action kinds no WHEN clause names are omitted, spec.md
	// §4.4's count-reporting rule.
	row := map[string]any{}
	if counts.HasInsert {
		cur.Columns = append(cur.Columns, "number of rows inserted")
		row["number of rows inserted"] = counts.Inserted
	}
	if counts.HasUpdate {
		cur.Columns = append(cur.Columns, "number of rows updated")
		row["number of rows updated"] = counts.Updated
	}
	if counts.HasDelete {
		cur.Columns = append(cur.Columns, "number of rows deleted")
		row["number of rows deleted"] = counts.Deleted
	}
	cur.Rows = []map[string]any{row}
	return succeed(cur, counts.Inserted+counts.Updated+counts.Deleted)
}

func (s *Session) execCopyInto(ctx context.Context, cur *Cursor, stmt *sqlparse.CopyIntoStmt) *Cursor {
	if !s.requireScope(cur, "COPY INTO") {
		return cur
	}
	statuses, err := copyinto.Run(ctx, s.host, s.cat, s.tenant(), s.Database, s.Schema, stmt)
	if err != nil {
		return s.fail(cur, err)
	}
	cur.Columns = []string{"file", "status", "rows_parsed", "rows_loaded", "errors_seen", "first_error"}
	var total int64
	for _, st := range statuses {
		cur.Rows = append(cur.Rows, map[string]any{
			"file": st.File, "status": st.Status, "rows_parsed": st.RowsParsed,
			"rows_loaded": st.RowsLoaded, "errors_seen": st.ErrorsSeen, "first_error": st.FirstError,
		})
		total += st.RowsLoaded
	}
	return succeed(cur, total)
}

type stageOp func(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) error

func (s *Session) execStageOp(ctx context.Context, cur *Cursor, stmt *sqlparse.StageStmt, op stageOp) *Cursor {
	if !s.requireScope(cur, "stage operation") {
		return cur
	}
	if err := op(ctx, s.cat, s.Database, s.Schema, stmt); err != nil {
		return s.fail(cur, err)
	}
	return statusRow(cur, StatementExecutedSuccessfully)
}

// execCreateStage is execStageOp's CREATE STAGE-specific variant: it
// reports the "Stage area X successfully created." template spec.md §6.6
// names rather than the generic fallback.
func (s *Session) execCreateStage(ctx context.Context, cur *Cursor, stmt *sqlparse.StageStmt) *Cursor {
	if !s.requireScope(cur, "CREATE STAGE") {
		return cur
	}
	if err := s.stage.Create(ctx, s.cat, s.Database, s.Schema, stmt); err != nil {
		return s.fail(cur, err)
	}
	return statusRow(cur, "Stage area "+stmt.Name+" successfully created.")
}

// execPut reports PUT's source/target size and compression row, spec.md
// §4.6's PUT result shape.
func (s *Session) execPut(ctx context.Context, cur *Cursor, stmt *sqlparse.StageStmt) *Cursor {
	if !s.requireScope(cur, "PUT") {
		return cur
	}
	res, err := s.stage.PutInfo(ctx, s.cat, s.Database, s.Schema, stmt)
	if err != nil {
		return s.fail(cur, err)
	}
	cur.Columns = []string{"source", "target", "source_size", "target_size", "source_compression", "target_compression", "status"}
	cur.Rows = []map[string]any{{
		"source": res.Source, "target": res.Target,
		"source_size": res.SourceSize, "target_size": res.TargetSize,
		"source_compression": res.SourceCompression, "target_compression": res.TargetCompression,
		"status": res.Status,
	}}
	return succeed(cur, 1)
}

func (s *Session) execList(ctx context.Context, cur *Cursor, stmt *sqlparse.StageStmt) *Cursor {
	if !s.requireScope(cur, "LIST") {
		return cur
	}
	infos, err := s.stage.List(ctx, s.cat, s.Database, s.Schema, stmt)
	if err != nil {
		return s.fail(cur, err)
	}
	cur.Columns = []string{"name", "size", "last_modified"}
	for _, info := range infos {
		cur.Rows = append(cur.Rows, map[string]any{
			"name": info.Name(), "size": info.Size(), "last_modified": info.ModTime().UTC().Format("2006-01-02 15:04:05"),
		})
	}
	return succeed(cur, int64(len(infos)))
}

func (s *Session) execCreateUser(ctx context.Context, cur *Cursor, u *sqlparse.CreateUserStmt) *Cursor {
	sql := fmt.Sprintf("INSERT INTO _fs_users_ext VALUES (%s, %s)", quote(u.Name), quote(""))
	if _, err := s.host.Exec(ctx, engine.GlobalTenant, sql); err != nil {
		return s.fail(cur, fserr.Wrap(fserr.DatabaseError, err, "create user %s", u.Name))
	}
	return statusRow(cur, "User "+u.Name+" successfully created.")
}

func quote(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

func (s *Session) execShow(ctx context.Context, cur *Cursor, sh *sqlparse.ShowStmt) *Cursor {
	var rows catalog.Rows
	var err error
	switch sh.Target {
	case sqlparse.ShowDatabases:
		rows, err = s.cat.ListDatabases(ctx)
	case sqlparse.ShowSchemas:
		if !s.requireDatabase(cur, "SHOW SCHEMAS") {
			return cur
		}
		rows, err = s.cat.ListSchemas(ctx, s.Database)
	case sqlparse.ShowTables:
		if !s.requireScope(cur, "SHOW TABLES") {
			return cur
		}
		rows, err = s.cat.ListTables(ctx, s.Database, s.Schema, "TABLE")
	case sqlparse.ShowViews:
		if !s.requireScope(cur, "SHOW VIEWS") {
			return cur
		}
		rows, err = s.cat.ListTables(ctx, s.Database, s.Schema, "VIEW")
	case sqlparse.ShowObjects:
		if !s.requireScope(cur, "SHOW OBJECTS") {
			return cur
		}
		rows, err = s.cat.ListTables(ctx, s.Database, s.Schema, "")
	case sqlparse.ShowColumns:
		if !s.requireScope(cur, "SHOW COLUMNS") {
			return cur
		}
		rows, err = s.cat.ListColumns(ctx, s.Database, s.Schema, showScopeTable(sh.In))
	case sqlparse.ShowUsers:
		rows, err = s.cat.ListUsers(ctx)
	case sqlparse.ShowStages:
		if !s.requireScope(cur, "SHOW STAGES") {
			return cur
		}
		rows, err = s.cat.ListStages(ctx, s.Database, s.Schema)
	case sqlparse.ShowPrimaryKeys, sqlparse.ShowUniqueKeys, sqlparse.ShowImportedKeys:
		// The host engine enforces no constraint catalog: these always
		// return the warehouse's column
		// shape with zero rows rather than failing.
		cur.Columns = constraintColumns
		return succeed(cur, 0)
	case sqlparse.ShowFunctions, sqlparse.ShowProcedures, sqlparse.ShowWarehouses:
		cur.Columns = []string{"name", "schema_name", "is_builtin", "description"}
		return succeed(cur, 0)
	default:
		return s.fail(cur, fserr.New(fserr.NotImplementedErr, "SHOW %s is not implemented", sh.Target))
	}
	if err != nil {
		return s.fail(cur, err)
	}
	// rows.Columns preserves the host SELECT's own column order
	// (catalog.Rows doc comment); spec.md §4.3/§8 scenario 6 require SHOW
	// results to carry the warehouse's exact column order, which a
	// `for k := range row` reconstruction over Go's randomized map
	// iteration cannot guarantee.
	cur.Columns = rows.Columns
	cur.Rows = rows.Rows
	return succeed(cur, int64(len(rows.Rows)))
}

var constraintColumns = []string{
	"database_name", "schema_name", "table_name", "column_name", "key_sequence", "constraint_name",
}

// showScopeTable extracts the table name from a SHOW ... IN TABLE <name>
// scope clause.
func showScopeTable(in string) string {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

// describeColumns is spec.md §4.3's fixed 12-column DESCRIBE TABLE/VIEW
// projection over _fs_columns_ext, matching the target dialect's real shape.
var describeColumns = []string{
	"name", "type", "kind", "null?", "default", "primary key",
	"unique key", "check", "expression", "comment", "policy name", "privacy domain",
}

func (s *Session) execDescribe(ctx context.Context, cur *Cursor, d *sqlparse.DescribeStmt) *Cursor {
	if !s.requireScope(cur, "DESCRIBE") {
		return cur
	}
	res, err := s.host.Exec(ctx, s.tenant(), "SELECT * FROM "+d.Name+" LIMIT 0")
	if err != nil {
		return s.fail(cur, err)
	}
	cur.Columns = describeColumns
	for _, col := range res.Columns {
		dataType, length, err := s.cat.ColumnMeta(ctx, s.Database, s.Schema, d.Name, col)
		if err != nil {
			return s.fail(cur, err)
		}
		surface := resultmeta.SurfaceType(resultmeta.DeclaredColumn(col, dataType, length))
		cur.Rows = append(cur.Rows, map[string]any{
			"name": col, "type": surface, "kind": "COLUMN", "null?": "Y",
			"default": nil, "primary key": "N", "unique key": "N", "check": nil,
			"expression": nil, "comment": nil, "policy name": nil, "privacy domain": nil,
		})
	}
	return succeed(cur, int64(len(cur.Rows)))
}

func (s *Session) execGeneric(ctx context.Context, cur *Cursor, stmt *sqlparse.Statement) *Cursor {
	stmt.Generic = s.inlineSessionContext(stmt.Generic)
	trimmed := strings.TrimSpace(stmt.Generic)
	if trimmed == "" {
		return statusRow(cur, StatementExecutedSuccessfully)
	}
	switch {
	case requiresNoDatabase(trimmed):
	case requiresDatabaseOnly(trimmed):
		if !s.requireDatabase(cur, leadingKeyword(trimmed)) {
			return cur
		}
	default:
		if !s.requireScope(cur, leadingKeyword(trimmed)) {
			return cur
		}
	}
	tctx := &transform.Context{Database: s.Database, Schema: s.Schema, Catalog: s.cat, Host: s.host, Tenant: s.tenant()}
	plan, err := transform.Rewrite(ctx, tctx, stmt)
	if err != nil {
		return s.fail(cur, err)
	}
	var last *engine.Result
	for _, sql := range plan.HostSQL {
		last, err = s.host.Exec(ctx, s.tenant(), sql)
		if err != nil {
			return s.fail(cur, err)
		}
	}
	if last == nil {
		// An empty plan: the statement resolved entirely against the
		// catalog (database/schema lifecycle); shape its status row from
		// the original text.
		if msg := ddlStatus(trimmed); msg != "" {
			return statusRow(cur, msg)
		}
		return statusRow(cur, StatementExecutedSuccessfully)
	}
	if last.IsQuery {
		cur.Columns = last.Columns
		cur.Rows = last.Rows
		return succeed(cur, last.RowCount)
	}
	// Non-query host result: shape a warehouse-style status or DML count
	// row per spec.md §6.6, instead of surfacing the host's raw (empty)
	// result.
	switch dmlKind(trimmed) {
	case "INSERT":
		cur.Columns = []string{"number of rows inserted"}
		cur.Rows = []map[string]any{{"number of rows inserted": last.RowCount}}
		return succeed(cur, last.RowCount)
	case "UPDATE":
		cur.Columns = []string{"number of rows updated", "number of multi-joined rows updated"}
		cur.Rows = []map[string]any{{"number of rows updated": last.RowCount, "number of multi-joined rows updated": int64(0)}}
		return succeed(cur, last.RowCount)
	case "DELETE":
		cur.Columns = []string{"number of rows deleted"}
		cur.Rows = []map[string]any{{"number of rows deleted": last.RowCount}}
		return succeed(cur, last.RowCount)
	}
	if msg := ddlStatus(trimmed); msg != "" {
		return statusRow(cur, msg)
	}
	return statusRow(cur, StatementExecutedSuccessfully)
}

// requiresNoDatabase reports whether sql is one of the statements spec.md
// invariant 3 says may run without a current database (e.g. SELECT 1, or
// CREATE DATABASE itself).
func requiresNoDatabase(sql string) bool {
	upper := strings.ToUpper(sql)
	return strings.HasPrefix(upper, "SELECT") ||
		strings.HasPrefix(upper, "CREATE DATABASE") ||
		strings.HasPrefix(upper, "CREATE OR REPLACE DATABASE") ||
		strings.HasPrefix(upper, "DROP DATABASE") ||
		strings.HasPrefix(upper, "SHOW")
}

// requiresDatabaseOnly reports whether sql names a schema rather than
// resolving inside one: CREATE/DROP SCHEMA need a current database (90105)
// but obviously no current schema.
func requiresDatabaseOnly(sql string) bool {
	upper := strings.ToUpper(sql)
	return strings.HasPrefix(upper, "CREATE SCHEMA") ||
		strings.HasPrefix(upper, "CREATE OR REPLACE SCHEMA") ||
		strings.HasPrefix(upper, "DROP SCHEMA")
}

func leadingKeyword(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "statement"
	}
	return strings.ToUpper(fields[0])
}
