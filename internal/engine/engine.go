// Package engine wraps the host SQL engine, github.com/SimonWaldherr/tinySQL,
// the embeddable multi-tenant engine this project executes all rewritten
// statements against (SPEC_FULL.md §2). It owns the mapping from a
// target-dialect database name onto a tinySQL tenant namespace and the
// best-effort affected-row counting tinySQL's Execute does not return
// directly for DML.
package engine

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	tinysql "github.com/SimonWaldherr/tinySQL"
	"github.com/sirupsen/logrus"

	"fsnow/internal/fserr"
)

// GlobalTenant is the reserved tinySQL tenant every process attaches once,
// backing the _fs_global catalog rows spec.md §4.1 describes.
const GlobalTenant = "_fs_global"

// Host is a handle on one tinySQL *DB plus the log the rest of the module
// shares, the same "one struct owns the shared backend handle" shape the
// teacher's core.Database plays for an in-memory schema model.
type Host struct {
	db  *tinysql.DB
	log *logrus.Entry
}

// Config selects the storage mode tinySQL persists to, per spec.md's
// Supplemented Features: ModeMemory for the common ephemeral-emulator case,
// ModeDisk/ModeWAL when the caller wants state to survive a process
// restart.
type Config struct {
	Mode tinysql.StorageMode
	Path string
}

// Open creates a Host backed by an in-memory tinySQL database, or one
// opened from cfg.Path (in storage mode cfg.Mode) when cfg.Path is
// non-empty.
func Open(cfg Config, log *logrus.Logger) (*Host, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "engine")
	if cfg.Path == "" {
		return &Host{db: tinysql.NewDB(), log: entry}, nil
	}
	db, err := tinysql.OpenDB(tinysql.StorageConfig{Mode: cfg.Mode, Path: cfg.Path})
	if err != nil {
		return nil, fserr.Wrap(fserr.DatabaseError, err, "open storage at %s", cfg.Path)
	}
	return &Host{db: db, log: entry}, nil
}

// Result is the outcome of one statement execution: a tabular ResultSet
// for queries, or an approximate affected-row count for DML, matching the
// two shapes spec.md §6.4 distinguishes for cursor fetch semantics.
type Result struct {
	Columns  []string
	Rows     []map[string]any
	RowCount int64
	IsQuery  bool
}

// Exec parses and executes one host-dialect SQL statement against tenant,
// attaching a best-effort affected-row count for INSERT/UPDATE/DELETE since
// tinySQL's Execute documents a nil ResultSet for those statement kinds.
func (h *Host) Exec(ctx context.Context, tenant, sql string) (*Result, error) {
	stmt, err := tinysql.ParseSQL(sql)
	if err != nil {
		return nil, fserr.Wrap(fserr.SQLCompilation, err, "%s", err.Error())
	}
	preCount := h.approxAffectedRowsBefore(ctx, tenant, sql)

	rs, err := tinysql.Execute(ctx, h.db, tenant, stmt)
	if err != nil {
		return nil, fserr.FromHost(err)
	}
	if rs == nil {
		return &Result{RowCount: approxAffectedRows(sql, preCount)}, nil
	}

	res := &Result{Columns: rs.Cols, IsQuery: true}
	for _, row := range rs.Rows {
		m := make(map[string]any, len(rs.Cols))
		for _, col := range rs.Cols {
			if v, ok := tinysql.GetVal(row, col); ok {
				m[col] = v
			}
		}
		res.Rows = append(res.Rows, m)
	}
	res.RowCount = int64(len(res.Rows))
	return res, nil
}

// ImportCSV loads src's CSV rows into table under tenant using tinySQL's
// bulk importer, the host-engine path COPY INTO's loader drives instead
// of issuing one INSERT per row.
func ImportCSV(ctx context.Context, h *Host, tenant, table string, src io.Reader, opts *tinysql.ImportOptions) (*tinysql.ImportResult, error) {
	return tinysql.ImportCSV(ctx, h.db, tenant, table, src, opts)
}

// ImportJSON is ImportCSV's JSON-source counterpart. COPY INTO does not
// call it: its loader reads CSV files only.
func ImportJSON(ctx context.Context, h *Host, tenant, table string, src io.Reader, opts *tinysql.ImportOptions) (*tinysql.ImportResult, error) {
	return tinysql.ImportJSON(ctx, h.db, tenant, table, src, opts)
}

// EnsureTenant attaches database (as a tinySQL tenant) by issuing a no-op
// query against it; tinySQL creates tenant namespaces lazily on first use,
// so this just primes the namespace and surfaces a connectivity error
// early rather than on the caller's first real statement.
func (h *Host) EnsureTenant(ctx context.Context, tenant string) error {
	stmt, err := tinysql.ParseSQL("SELECT 1")
	if err != nil {
		return fserr.Wrap(fserr.DatabaseError, err, "prime tenant %s", tenant)
	}
	_, err = tinysql.Execute(ctx, h.db, tenant, stmt)
	if err != nil {
		return fserr.FromHost(err)
	}
	return nil
}

// approxAffectedRowsBefore runs a best-effort COUNT(*) over an UPDATE/
// DELETE's target table + WHERE clause before the statement executes, so
// approxAffectedRows can report how many rows were affected. tinySQL does
// not expose affected-row counts for DML (see package doc), so this is a
// deliberate approximation: it is exact for UPDATE/DELETE (the WHERE
// clause selects the same rows before and after a non-concurrent exec) and
// unused for INSERT, which is counted from its VALUES/subquery shape
// instead.
func (h *Host) approxAffectedRowsBefore(ctx context.Context, tenant, sql string) int64 {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)
	var table, where string
	switch {
	case strings.HasPrefix(upper, "UPDATE"):
		rest := strings.TrimSpace(trimmed[len("UPDATE"):])
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return -1
		}
		table = fields[0]
		// The UPDATE's own WHERE is the first one outside parentheses; a SET
		// value may be a subquery carrying its own WHERE.
		upperRest, depth := strings.ToUpper(rest), 0
		for i := 0; i < len(rest) && where == ""; i++ {
			switch {
			case rest[i] == '(':
				depth++
			case rest[i] == ')':
				depth--
			case depth == 0 && strings.HasPrefix(upperRest[i:], "WHERE"):
				where = rest[i+len("WHERE"):]
			}
		}
	case strings.HasPrefix(upper, "DELETE"):
		rest := strings.TrimSpace(trimmed[len("DELETE"):])
		rest = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "FROM"))
		upperRest := strings.ToUpper(rest)
		idx := strings.Index(upperRest, "WHERE")
		if idx >= 0 {
			table = strings.TrimSpace(rest[:idx])
			where = rest[idx+len("WHERE"):]
		} else {
			table = strings.TrimSpace(rest)
		}
	default:
		return -1
	}
	if table == "" {
		return -1
	}
	countSQL := "SELECT COUNT(*) AS n FROM " + table
	if where != "" {
		countSQL += " WHERE " + where
	}
	stmt, err := tinysql.ParseSQL(countSQL)
	if err != nil {
		return -1
	}
	rs, err := tinysql.Execute(ctx, h.db, tenant, stmt)
	if err != nil || rs == nil || len(rs.Rows) == 0 {
		return -1
	}
	v, ok := tinysql.GetVal(rs.Rows[0], "n")
	if !ok {
		return -1
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(fmt.Sprintf("%v", v)), 10, 64)
	if err != nil {
		return -1
	}
	return parsed
}

// approxAffectedRows resolves the final row count for a DML statement:
// preCount for UPDATE/DELETE (computed before the statement ran), or the
// number of tuples in an INSERT's VALUES list.
func approxAffectedRows(sql string, preCount int64) int64 {
	upper := strings.ToUpper(strings.TrimSpace(sql))
	if strings.HasPrefix(upper, "INSERT") {
		if n := countValuesTuples(sql, upper); n > 0 {
			return n
		}
	}
	if preCount >= 0 {
		return preCount
	}
	return 0
}

// countValuesTuples counts the top-level parenthesised tuples after an
// INSERT's VALUES keyword with a paren-depth scan, so whitespace between
// tuples and nested calls or quoted text inside a tuple don't skew the
// count. Returns 0 when sql carries no VALUES clause (INSERT...SELECT).
func countValuesTuples(sql, upper string) int64 {
	idx := strings.Index(upper, "VALUES")
	if idx < 0 {
		return 0
	}
	rest := sql[idx+len("VALUES"):]
	var tuples int64
	depth := 0
	var quote byte
	for i := 0; i < len(rest); i++ {
		c := rest[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			if depth == 0 {
				tuples++
			}
			depth++
		case c == ')':
			depth--
		}
	}
	return tuples
}
