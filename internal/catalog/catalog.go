// Package catalog is the single source of truth for database/schema/object
// metadata the target dialect exposes through SHOW/DESCRIBE and the
// information_schema views (SPEC_FULL.md §4.2), mirroring the role the
// teacher's internal/core package plays as "the structured representation
// of the schema" — except here the representation lives inside the host
// engine itself, as ordinary tables under a reserved tenant, rather than
// as an in-memory Go struct tree.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fsnow/internal/engine"
	"fsnow/internal/fserr"
)

// bootstrapDDL creates the metadata tables every Catalog needs, scoped to
// the _fs_global tenant so they are visible across every attached
// database, the way a real warehouse's account-level information_schema
// outlives any one database.
const bootstrapDDL = `
CREATE TABLE IF NOT EXISTS _fs_databases (name TEXT, created_at TEXT, comment TEXT);
CREATE TABLE IF NOT EXISTS _fs_schemas (database_name TEXT, name TEXT, created_at TEXT);
CREATE TABLE IF NOT EXISTS _fs_tables_ext (database_name TEXT, schema_name TEXT, table_name TEXT, kind TEXT, comment TEXT, created_at TEXT);
CREATE TABLE IF NOT EXISTS _fs_columns_ext (database_name TEXT, schema_name TEXT, table_name TEXT, column_name TEXT, data_type TEXT, char_length INT);
CREATE TABLE IF NOT EXISTS _fs_stages (database_name TEXT, schema_name TEXT, name TEXT, url TEXT, local_root TEXT, is_temporary INT);
CREATE TABLE IF NOT EXISTS _fs_load_history (database_name TEXT, schema_name TEXT, table_name TEXT, file_name TEXT, row_count INT, status TEXT, loaded_at TEXT);
CREATE TABLE IF NOT EXISTS _fs_users_ext (name TEXT, created_at TEXT);
CREATE TABLE IF NOT EXISTS _fs_sequences (database_name TEXT, schema_name TEXT, name TEXT, next_value INT, increment INT);
`

// Catalog stores cross-database metadata in the host engine's reserved
// global tenant, and the rest of the module reads it back through SQL
// rather than a second, separately-maintained Go data structure.
type Catalog struct {
	host *engine.Host
}

// Open bootstraps (idempotently) the metadata tables in host's global
// tenant and returns a Catalog bound to that engine.
func Open(ctx context.Context, host *engine.Host) (*Catalog, error) {
	c := &Catalog{host: host}
	for _, stmt := range splitStatements(bootstrapDDL) {
		if _, err := host.Exec(ctx, engine.GlobalTenant, stmt); err != nil {
			return nil, fserr.Wrap(fserr.DatabaseError, err, "bootstrap catalog")
		}
	}
	return c, nil
}

func splitStatements(block string) []string {
	var out []string
	for _, s := range strings.Split(block, ";") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func nowText() string { return time.Now().UTC().Format(time.RFC3339) }

func quote(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" }

// CreateDatabase registers db as an attached tenant namespace and primes
// its tinySQL tenant. A second CREATE DATABASE for the same name is an
// AlreadyExists error unless ifNotExists is set, matching spec.md §4.3's
// database-lifecycle transform family.
func (c *Catalog) CreateDatabase(ctx context.Context, db string, ifNotExists bool) error {
	exists, err := c.DatabaseExists(ctx, db)
	if err != nil {
		return err
	}
	if exists {
		if ifNotExists {
			return nil
		}
		return fserr.New(fserr.AlreadyExists, "database %s already exists", db)
	}
	sql := fmt.Sprintf("INSERT INTO _fs_databases VALUES (%s, %s, %s)", quote(db), quote(nowText()), quote(""))
	if _, err := c.host.Exec(ctx, engine.GlobalTenant, sql); err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "register database %s", db)
	}
	if err := c.host.EnsureTenant(ctx, tenantFor(db)); err != nil {
		return err
	}
	return c.CreateSchema(ctx, db, "MAIN", true)
}

// DropDatabase removes db's catalog rows. It does not attempt to drop the
// underlying tinySQL tenant's tables individually; the tenant namespace is
// simply orphaned, matching the emulator's in-process, process-lifetime
// scope (spec.md Non-goals exclude storage reclamation semantics).
func (c *Catalog) DropDatabase(ctx context.Context, db string, ifExists bool) error {
	exists, err := c.DatabaseExists(ctx, db)
	if err != nil {
		return err
	}
	if !exists {
		if ifExists {
			return nil
		}
		return fserr.MissingDatabaseFor("DROP DATABASE")
	}
	for _, stmt := range []string{
		fmt.Sprintf("DELETE FROM _fs_databases WHERE name = %s", quote(db)),
		fmt.Sprintf("DELETE FROM _fs_schemas WHERE database_name = %s", quote(db)),
		fmt.Sprintf("DELETE FROM _fs_tables_ext WHERE database_name = %s", quote(db)),
		fmt.Sprintf("DELETE FROM _fs_columns_ext WHERE database_name = %s", quote(db)),
	} {
		if _, err := c.host.Exec(ctx, engine.GlobalTenant, stmt); err != nil {
			return fserr.Wrap(fserr.DatabaseError, err, "drop database %s", db)
		}
	}
	return nil
}

// DatabaseExists reports whether db has been registered.
func (c *Catalog) DatabaseExists(ctx context.Context, db string) (bool, error) {
	res, err := c.host.Exec(ctx, engine.GlobalTenant,
		fmt.Sprintf("SELECT name FROM _fs_databases WHERE name = %s", quote(db)))
	if err != nil {
		return false, fserr.Wrap(fserr.DatabaseError, err, "check database %s", db)
	}
	return len(res.Rows) > 0, nil
}

// CreateSchema registers schema under db.
func (c *Catalog) CreateSchema(ctx context.Context, db, schema string, ifNotExists bool) error {
	exists, err := c.SchemaExists(ctx, db, schema)
	if err != nil {
		return err
	}
	if exists {
		if ifNotExists {
			return nil
		}
		return fserr.New(fserr.AlreadyExists, "schema %s.%s already exists", db, schema)
	}
	sql := fmt.Sprintf("INSERT INTO _fs_schemas VALUES (%s, %s, %s)", quote(db), quote(schema), quote(nowText()))
	_, err = c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "register schema %s.%s", db, schema)
	}
	return nil
}

// DropSchema removes a schema and, cascading the way the target dialect's
// DROP SCHEMA does, every table/column/stage registration under it. The
// host tables in the tenant are orphaned rather than dropped, the same
// accepted scope limit DropDatabase documents.
func (c *Catalog) DropSchema(ctx context.Context, db, schema string, ifExists bool) error {
	exists, err := c.SchemaExists(ctx, db, schema)
	if err != nil {
		return err
	}
	if !exists {
		if ifExists {
			return nil
		}
		return fserr.New(fserr.ObjectNotExist, "schema %s.%s does not exist", db, schema)
	}
	for _, stmt := range []string{
		fmt.Sprintf("DELETE FROM _fs_schemas WHERE database_name = %s AND name = %s", quote(db), quote(schema)),
		fmt.Sprintf("DELETE FROM _fs_tables_ext WHERE database_name = %s AND schema_name = %s", quote(db), quote(schema)),
		fmt.Sprintf("DELETE FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s", quote(db), quote(schema)),
		fmt.Sprintf("DELETE FROM _fs_stages WHERE database_name = %s AND schema_name = %s", quote(db), quote(schema)),
	} {
		if _, err := c.host.Exec(ctx, engine.GlobalTenant, stmt); err != nil {
			return fserr.Wrap(fserr.DatabaseError, err, "drop schema %s.%s", db, schema)
		}
	}
	return nil
}

// SchemaExists reports whether db.schema has been registered.
func (c *Catalog) SchemaExists(ctx context.Context, db, schema string) (bool, error) {
	sql := fmt.Sprintf("SELECT name FROM _fs_schemas WHERE database_name = %s AND name = %s", quote(db), quote(schema))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return false, fserr.Wrap(fserr.DatabaseError, err, "check schema %s.%s", db, schema)
	}
	return len(res.Rows) > 0, nil
}

// RegisterTable records a table or view's existence so SHOW/DESCRIBE can
// answer without re-deriving it from the host engine's own schema. A
// re-registration (CREATE OR REPLACE) replaces the prior row rather than
// duplicating it.
func (c *Catalog) RegisterTable(ctx context.Context, db, schema, table, kind, comment string) error {
	del := fmt.Sprintf("DELETE FROM _fs_tables_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s",
		quote(db), quote(schema), quote(table))
	if _, err := c.host.Exec(ctx, engine.GlobalTenant, del); err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "replace table registration for %s", table)
	}
	sql := fmt.Sprintf("INSERT INTO _fs_tables_ext VALUES (%s, %s, %s, %s, %s, %s)",
		quote(db), quote(schema), quote(table), quote(kind), quote(comment), quote(nowText()))
	_, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "register table %s.%s.%s", db, schema, table)
	}
	return nil
}

// UnregisterTable removes a dropped table's registration and its recorded
// column metadata.
func (c *Catalog) UnregisterTable(ctx context.Context, db, schema, table string) error {
	for _, stmt := range []string{
		fmt.Sprintf("DELETE FROM _fs_tables_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s",
			quote(db), quote(schema), quote(table)),
		fmt.Sprintf("DELETE FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s",
			quote(db), quote(schema), quote(table)),
	} {
		if _, err := c.host.Exec(ctx, engine.GlobalTenant, stmt); err != nil {
			return fserr.Wrap(fserr.DatabaseError, err, "unregister table %s.%s.%s", db, schema, table)
		}
	}
	return nil
}

// SetTableComment updates the stored comment for an already-registered
// table, the catalog side of the "Comments and text lengths" transform
// family (spec.md §4.3).
func (c *Catalog) SetTableComment(ctx context.Context, db, schema, table, comment string) error {
	sql := fmt.Sprintf("UPDATE _fs_tables_ext SET comment = %s WHERE database_name = %s AND schema_name = %s AND table_name = %s",
		quote(comment), quote(db), quote(schema), quote(table))
	_, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "comment on table %s.%s.%s", db, schema, table)
	}
	return nil
}

// RegisterColumnLength records a VARCHAR/CHAR column's declared length so
// DESCRIBE can report "VARCHAR(n)" the way the target dialect does, since
// the host engine collapses every text type to one internal TEXT type.
func (c *Catalog) RegisterColumnLength(ctx context.Context, db, schema, table, column, dataType string, length int) error {
	del := fmt.Sprintf("DELETE FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s AND column_name = %s",
		quote(db), quote(schema), quote(table), quote(column))
	if _, err := c.host.Exec(ctx, engine.GlobalTenant, del); err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "replace column metadata for %s", column)
	}
	ins := fmt.Sprintf("INSERT INTO _fs_columns_ext VALUES (%s, %s, %s, %s, %s, %d)",
		quote(db), quote(schema), quote(table), quote(column), quote(dataType), length)
	_, err := c.host.Exec(ctx, engine.GlobalTenant, ins)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "register column %s", column)
	}
	return nil
}

// ColumnLength returns a previously registered declared length for a
// column, or 0 if none was recorded (i.e. the host engine's own type is
// authoritative).
func (c *Catalog) ColumnLength(ctx context.Context, db, schema, table, column string) (int, error) {
	sql := fmt.Sprintf("SELECT char_length FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s AND column_name = %s",
		quote(db), quote(schema), quote(table), quote(column))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return 0, fserr.Wrap(fserr.DatabaseError, err, "column length for %s", column)
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	n, _ := res.Rows[0]["char_length"].(int64)
	if n == 0 {
		switch v := res.Rows[0]["char_length"].(type) {
		case float64:
			n = int64(v)
		case int:
			n = int64(v)
		}
	}
	return int(n), nil
}

// ColumnMeta returns a column's recorded (data_type, char_length) pair, or
// ("", 0) if RegisterColumnLength was never called for it — DESCRIBE TABLE
// treats that as the target dialect's untyped numeric default.
func (c *Catalog) ColumnMeta(ctx context.Context, db, schema, table, column string) (string, int, error) {
	sql := fmt.Sprintf("SELECT data_type, char_length FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s AND column_name = %s",
		quote(db), quote(schema), quote(table), quote(column))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return "", 0, fserr.Wrap(fserr.DatabaseError, err, "column metadata for %s", column)
	}
	if len(res.Rows) == 0 {
		return "", 0, nil
	}
	dataType, _ := res.Rows[0]["data_type"].(string)
	n, _ := res.Rows[0]["char_length"].(int64)
	if n == 0 {
		if f, ok := res.Rows[0]["char_length"].(float64); ok {
			n = int64(f)
		}
	}
	return dataType, int(n), nil
}

// CreateSequence records a sequence's starting state, backing the
// AUTOINCREMENT/IDENTITY and bare CREATE SEQUENCE transform families
// (spec.md §4.3) the same way _fs_stages backs stages: a shadow metadata
// row alongside whatever native CREATE SEQUENCE support the host engine
// itself offers.
func (c *Catalog) CreateSequence(ctx context.Context, db, schema, name string, start, increment int) error {
	sql := fmt.Sprintf("INSERT INTO _fs_sequences VALUES (%s, %s, %s, %d, %d)",
		quote(db), quote(schema), quote(name), start, increment)
	if _, err := c.host.Exec(ctx, engine.GlobalTenant, sql); err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "create sequence %s", name)
	}
	return nil
}

// RegisterStage records a stage's metadata for SHOW STAGES and PUT/GET/
// LIST/REMOVE path resolution.
func (c *Catalog) RegisterStage(ctx context.Context, db, schema, name, url, localRoot string, temporary bool) error {
	temp := 0
	if temporary {
		temp = 1
	}
	sql := fmt.Sprintf("INSERT INTO _fs_stages VALUES (%s, %s, %s, %s, %s, %d)",
		quote(db), quote(schema), quote(name), quote(url), quote(localRoot), temp)
	_, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "register stage %s", name)
	}
	return nil
}

// StageLocalRoot resolves a stage name to its local filesystem root.
func (c *Catalog) StageLocalRoot(ctx context.Context, db, schema, name string) (string, error) {
	sql := fmt.Sprintf("SELECT local_root FROM _fs_stages WHERE database_name = %s AND schema_name = %s AND name = %s",
		quote(db), quote(schema), quote(name))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return "", fserr.Wrap(fserr.DatabaseError, err, "resolve stage %s", name)
	}
	if len(res.Rows) == 0 {
		return "", fserr.New(fserr.ObjectNotExist, "stage %s does not exist", name)
	}
	root, _ := res.Rows[0]["local_root"].(string)
	return root, nil
}

// RecordLoad appends one COPY INTO file-load outcome to the load history
// table COPY INTO's idempotence check (spec.md §4.5) consults.
func (c *Catalog) RecordLoad(ctx context.Context, db, schema, table, file string, rows int64, status string) error {
	sql := fmt.Sprintf("INSERT INTO _fs_load_history VALUES (%s, %s, %s, %s, %d, %s, %s)",
		quote(db), quote(schema), quote(table), quote(file), rows, quote(status), quote(nowText()))
	_, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "record load for %s", file)
	}
	return nil
}

// AlreadyLoaded reports whether file has already been loaded into table
// (independent of FORCE, which the caller checks separately).
func (c *Catalog) AlreadyLoaded(ctx context.Context, db, schema, table, file string) (bool, error) {
	sql := fmt.Sprintf("SELECT file_name FROM _fs_load_history WHERE database_name = %s AND schema_name = %s AND table_name = %s AND file_name = %s",
		quote(db), quote(schema), quote(table), quote(file))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return false, fserr.Wrap(fserr.DatabaseError, err, "check load history for %s", file)
	}
	return len(res.Rows) > 0, nil
}

// Rows is an ordered query result: Columns preserves the column order the
// underlying SELECT produced (the host engine's own deterministic
// table-definition order), Rows holds one map per row. Every List*/SHOW
// backing method below returns this instead of a bare []map[string]any,
// since spec.md §4.3 requires SHOW family rewrites to "produce the
// warehouse's exact column names and order" and Go randomizes map
// iteration — a caller that reconstructed column order with `for k :=
// range row` would observe a different order on every process run.
type Rows struct {
	Columns []string
	Rows    []map[string]any
}

// ListTables returns the registered tables/views for db.schema, filtered
// to kind ("TABLE" or "VIEW") when kind is non-empty.
func (c *Catalog) ListTables(ctx context.Context, db, schema, kind string) (Rows, error) {
	sql := fmt.Sprintf("SELECT * FROM _fs_tables_ext WHERE database_name = %s AND schema_name = %s", quote(db), quote(schema))
	if kind != "" {
		sql += fmt.Sprintf(" AND kind = %s", quote(kind))
	}
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list tables for %s.%s", db, schema)
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// ListSchemas returns the schemas registered under db.
func (c *Catalog) ListSchemas(ctx context.Context, db string) (Rows, error) {
	sql := fmt.Sprintf("SELECT * FROM _fs_schemas WHERE database_name = %s", quote(db))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list schemas for %s", db)
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// ListDatabases returns every registered database.
func (c *Catalog) ListDatabases(ctx context.Context) (Rows, error) {
	res, err := c.host.Exec(ctx, engine.GlobalTenant, "SELECT * FROM _fs_databases")
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list databases")
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// ListColumns returns the registered column metadata for db.schema.table,
// SHOW COLUMNS' backing source (spec.md §4.3).
func (c *Catalog) ListColumns(ctx context.Context, db, schema, table string) (Rows, error) {
	sql := fmt.Sprintf("SELECT * FROM _fs_columns_ext WHERE database_name = %s AND schema_name = %s AND table_name = %s",
		quote(db), quote(schema), quote(table))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list columns for %s.%s.%s", db, schema, table)
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// ListUsers returns every registered user, SHOW USERS' backing source.
func (c *Catalog) ListUsers(ctx context.Context) (Rows, error) {
	res, err := c.host.Exec(ctx, engine.GlobalTenant, "SELECT * FROM _fs_users_ext")
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list users")
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// ListStages returns the stages registered under db.schema, SHOW STAGES'
// backing source.
func (c *Catalog) ListStages(ctx context.Context, db, schema string) (Rows, error) {
	sql := fmt.Sprintf("SELECT * FROM _fs_stages WHERE database_name = %s AND schema_name = %s", quote(db), quote(schema))
	res, err := c.host.Exec(ctx, engine.GlobalTenant, sql)
	if err != nil {
		return Rows{}, fserr.Wrap(fserr.DatabaseError, err, "list stages for %s.%s", db, schema)
	}
	return Rows{Columns: res.Columns, Rows: res.Rows}, nil
}

// tenantFor maps a target-dialect database name onto its tinySQL tenant
// name. The two are currently identical; this indirection exists so a
// future per-database tenant-naming scheme (e.g. collision-avoidance
// prefixing) has one call site to change.
func tenantFor(db string) string { return db }

// TenantFor is the exported form of tenantFor, used by session to resolve
// the tinySQL tenant for the database a statement targets.
func TenantFor(db string) string { return tenantFor(db) }
