// Package client is the thin, process-global entry point spec.md §6.1
// describes: Connect/Cursor/Execute/Fetch*, the surface applications code
// against instead of reaching into internal/session directly. It owns the
// one-shot global-database attachment and stage-root initialisation
// spec.md §5 requires ("the global database is attached exactly once per
// process"), the way the teacher's dialect package lazily registers a
// process-wide dialect table behind a package-level map.
package client

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/sirupsen/logrus"

	"fsnow/internal/catalog"
	"fsnow/internal/engine"
	"fsnow/internal/fserr"
	"fsnow/internal/resultmeta"
	"fsnow/internal/session"
	"fsnow/internal/stage"
)

var (
	globalOnce  sync.Once
	globalHost  *engine.Host
	globalCat   *catalog.Catalog
	globalStage *stage.Manager
	globalErr   error
)

// Options configures Connect, mirroring spec.md §6.1's connect() parameters.
type Options struct {
	Database    string
	Schema      string
	DBPath      string // not used: Connect always opens an in-memory host engine
	StageRoot   string // local root PUT/GET/LIST resolve stage directories under
	ParamStyle  string // "pyformat", "format", or "qmark"
	NopRegexes  []string
	Logger      *logrus.Logger
}

// Connection is the process-facing handle spec.md §6.1 names. Multiple
// Connections share the process-global host engine and catalog but each
// owns its own Session (and therefore its own current database/schema),
// matching spec.md §5's "isolated from other sessions' default schema"
// rule.
type Connection struct {
	sess       *session.Session
	paramStyle string
	nopRe      []*regexp.Regexp
	autocommit bool
}

func initGlobal(cfg Options) {
	globalOnce.Do(func() {
		host, err := engine.Open(engine.Config{}, cfg.Logger)
		if err != nil {
			globalErr = err
			return
		}
		ctx := context.Background()
		cat, err := catalog.Open(ctx, host)
		if err != nil {
			globalErr = err
			return
		}
		root := cfg.StageRoot
		if root == "" {
			root = filepath.Join(os.TempDir(), "fsnow-stages")
		}
		stg, err := stage.NewManager(root)
		if err != nil {
			globalErr = err
			return
		}
		globalHost, globalCat, globalStage = host, cat, stg
	})
}

// Connect opens a new Connection. It initialises the process-wide host
// engine and metadata catalog on first call (spec.md §4.2's "on first
// connection to the process" bootstrap) and is a no-op for that step on
// every subsequent call.
func Connect(ctx context.Context, opts Options) (*Connection, error) {
	initGlobal(opts)
	if globalErr != nil {
		return nil, globalErr
	}
	sess := session.New(globalHost, globalCat, globalStage, opts.Logger)
	if opts.Database != "" {
		if err := globalCat.CreateDatabase(ctx, opts.Database, true); err != nil {
			return nil, err
		}
		sess.Database = opts.Database
	}
	if opts.Schema != "" {
		sess.Schema = opts.Schema
	}
	paramStyle := opts.ParamStyle
	if paramStyle == "" {
		paramStyle = "pyformat"
	}
	var nopRe []*regexp.Regexp
	for _, pat := range opts.NopRegexes {
		if re, err := regexp.Compile(pat); err == nil {
			nopRe = append(nopRe, re)
		}
	}
	return &Connection{sess: sess, paramStyle: paramStyle, nopRe: nopRe, autocommit: true}, nil
}

// Autocommit toggles the connection's autocommit mode (spec.md §6.1). The
// emulator's host engine commits every Exec independently regardless, so
// this only affects the bookkeeping flag client code may branch on.
func (c *Connection) Autocommit(on bool) { c.autocommit = on }

// Commit and Rollback are no-ops outside an explicit transaction, spec.md
// §7's documented behaviour; this emulator never opens one, so both
// always succeed.
func (c *Connection) Commit() error   { return nil }
func (c *Connection) Rollback() error { return nil }

// Close releases the Connection's resources. The process-global host
// engine, catalog, and stage manager outlive any one Connection.
func (c *Connection) Close() error { return nil }

// Cursor creates a new Cursor bound to this Connection.
func (c *Connection) Cursor() *Cursor {
	return &Cursor{conn: c, arraysize: 1}
}

// ExecuteString splits text on statement-terminating semicolons (outside
// quoted strings), skips pure-comment fragments, executes each in order,
// and returns one Cursor per executed statement, spec.md §6.1.
func (c *Connection) ExecuteString(ctx context.Context, text string) ([]*Cursor, error) {
	var out []*Cursor
	for _, stmt := range splitStatements(text) {
		if isPureComment(stmt) {
			continue
		}
		cur := c.Cursor()
		if err := cur.Execute(ctx, stmt); err != nil {
			return out, err
		}
		out = append(out, cur)
	}
	return out, nil
}

// Cursor is the per-statement fetch surface spec.md §6.1 names.
type Cursor struct {
	conn      *Connection
	arraysize int
	fetchPos  int
	last      *session.Cursor
	cols      []resultmeta.Column
	dictResult bool
}

// SetDictResult records the cursor's dict_result flag, named after
// spec.md §6.1's Connection.cursor(dict_result) option. The flag does not
// change the row shape: Fetch* always return rows as map[string]any.
func (cur *Cursor) SetDictResult(on bool) { cur.dictResult = on }

// Execute runs sql (with optional already-bound params, resolved by the
// caller per paramStyle — see spec.md §4.7's parameter-binding note) and
// records the outcome for subsequent Fetch*/Description/RowCount calls.
func (cur *Cursor) Execute(ctx context.Context, sql string, params ...any) error {
	bound := sql
	if cur.conn.paramStyle != "qmark" && len(params) > 0 {
		bound = bindParams(sql, params)
	}
	for _, re := range cur.conn.nopRe {
		if re.MatchString(bound) {
			cur.last = &session.Cursor{Status: session.StatusSuccess, Columns: []string{"status"},
				Rows: []map[string]any{{"status": session.StatementExecutedSuccessfully}}, RowCount: 1}
			cur.fetchPos = 0
			cur.cols = resultmeta.Describe(cur.last.Columns, cur.last.Rows, nil)
			return nil
		}
	}
	cur.last = cur.conn.sess.Execute(ctx, bound)
	cur.fetchPos = 0
	if cur.last.Status == session.StatusFailed {
		return cur.last.Error
	}
	cur.cols = resultmeta.Describe(cur.last.Columns, cur.last.Rows, nil)
	return nil
}

// ExecuteMany runs sql once per entry in paramSets, in order, stopping at
// the first failure.
func (cur *Cursor) ExecuteMany(ctx context.Context, sql string, paramSets [][]any) error {
	for _, params := range paramSets {
		if err := cur.Execute(ctx, sql, params...); err != nil {
			return err
		}
	}
	return nil
}

// FetchOne returns the next row, or nil if exhausted.
func (cur *Cursor) FetchOne() map[string]any {
	rows := cur.FetchMany(1)
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}

// FetchMany returns up to n further rows from the cached batch.
func (cur *Cursor) FetchMany(n int) []map[string]any {
	if cur.last == nil || cur.fetchPos >= len(cur.last.Rows) {
		return nil
	}
	end := cur.fetchPos + n
	if end > len(cur.last.Rows) {
		end = len(cur.last.Rows)
	}
	out := cur.last.Rows[cur.fetchPos:end]
	cur.fetchPos = end
	return out
}

// FetchAll returns every remaining row.
func (cur *Cursor) FetchAll() []map[string]any {
	if cur.last == nil {
		return nil
	}
	return cur.FetchMany(len(cur.last.Rows) - cur.fetchPos)
}

// GetResultBatches groups the cached result into ≤1000-row wire batches,
// spec.md §6.4.
func (cur *Cursor) GetResultBatches() []resultmeta.Batch {
	if cur.last == nil {
		return nil
	}
	return resultmeta.Batches(cur.cols, cur.last.Rows)
}

// FetchArrowBatches is GetResultBatches' name from spec.md §6.1; no real
// Arrow IPC encoding backs it (SPEC_FULL.md §6.4: no pack dependency
// supplies one), so it returns the same plain-struct batches.
func (cur *Cursor) FetchArrowBatches() []resultmeta.Batch { return cur.GetResultBatches() }

// FetchPandasAll is a placeholder mirroring spec.md §6.1's dataframe
// fetch; callers needing an actual dataframe use the out-of-core
// bulk-loader helper instead (SPEC_FULL.md §1, Non-goals).
func (cur *Cursor) FetchPandasAll() []map[string]any { return cur.FetchAll() }

// Description returns the column metadata for the last executed
// statement, spec.md §6.3's seven-field tuple per column.
func (cur *Cursor) Description() []resultmeta.Column { return cur.cols }

// RowCount is the last statement's affected/returned row count.
func (cur *Cursor) RowCount() int64 {
	if cur.last == nil {
		return 0
	}
	return cur.last.RowCount
}

// SFQID is the synthetic statement id spec.md §3 calls "Statement id".
func (cur *Cursor) SFQID() string {
	if cur.last == nil {
		return ""
	}
	return cur.last.ID
}

// SQLState is the last error's SQLSTATE, or "" if the last statement
// succeeded.
func (cur *Cursor) SQLState() string {
	if cur.last == nil || cur.last.Error == nil {
		return ""
	}
	var fe *fserr.Error
	if fserr.As(cur.last.Error, &fe) {
		return fe.SQLState
	}
	return ""
}

// ArraySize is the client's preferred FetchMany batch size hint.
func (cur *Cursor) ArraySize() int { return cur.arraysize }

// SetArraySize updates ArraySize.
func (cur *Cursor) SetArraySize(n int) { cur.arraysize = n }
