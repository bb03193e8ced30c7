// Package copyinto plans and runs COPY INTO, loading staged files into a
// host-engine table via github.com/SimonWaldherr/tinySQL's CSV importer,
// per spec.md §4.5. A PARQUET source fails as not implemented.
package copyinto

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	tinysql "github.com/SimonWaldherr/tinySQL"

	"fsnow/internal/catalog"
	"fsnow/internal/engine"
	"fsnow/internal/fserr"
	"fsnow/internal/sqlparse"
)

// FileStatus is one row of the status result COPY INTO returns. It carries
// six columns (file, status, rows_parsed, rows_loaded, errors_seen,
// first_error); error_limit, first_error_line, first_error_character and
// first_error_column_name are not reported.
type FileStatus struct {
	File         string
	Status       string // "LOADED", "LOAD_SKIPPED", "LOAD_FAILED"
	RowsParsed   int64
	RowsLoaded   int64
	ErrorsSeen   int64
	FirstError   string
}

// Run resolves stmt's staged source, enumerates candidate files, and
// loads each one not already present in load history (unless FORCE),
// returning one FileStatus per candidate file in the order considered.
func Run(ctx context.Context, host *engine.Host, cat *catalog.Catalog, tenant, db, schema string, stmt *sqlparse.CopyIntoStmt) ([]FileStatus, error) {
	root, err := resolveSourceRoot(ctx, cat, db, schema, stmt.Source)
	if err != nil {
		return nil, err
	}

	files, err := enumerateFiles(root, stmt.Files)
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "enumerate files under %s", root)
	}

	stageName, fromStage := stageSourceName(stmt.Source)

	var out []FileStatus
	for _, path := range files {
		rel := reportedFileName(path, stageName, fromStage)
		if !stmt.Force {
			already, err := cat.AlreadyLoaded(ctx, db, schema, stmt.Table, rel)
			if err != nil {
				return nil, err
			}
			if already {
				out = append(out, FileStatus{File: rel, Status: "LOAD_SKIPPED"})
				continue
			}
		}

		status, loadErr := loadOne(ctx, host, tenant, stmt, path, rel)
		out = append(out, status)
		if recErr := cat.RecordLoad(ctx, db, schema, stmt.Table, rel, status.RowsLoaded, status.Status); recErr != nil {
			return nil, recErr
		}
		if loadErr != nil && stmt.OnErr == "ABORT_STATEMENT" {
			return out, loadErr
		}
		if stmt.Purge && status.Status == "LOADED" {
			_ = os.Remove(path)
		}
	}
	return out, nil
}

// stageSourceName reports whether source is an internal stage reference
// ("@stage" or "@stage/path") and, if so, the stage name alone.
func stageSourceName(source string) (name string, fromStage bool) {
	if !strings.HasPrefix(source, "@") {
		return "", false
	}
	name = strings.TrimPrefix(source, "@")
	name = strings.SplitN(name, "/", 2)[0]
	return name, true
}

// reportedFileName is the name a status/LIST row carries for a loaded
// file, per spec.md §4.5 step 5: internal-stage files are reported as
// "<stage>/<basename>", external URLs verbatim (the full path/URL the
// statement named, not reduced to a basename).
func reportedFileName(path, stageName string, fromStage bool) string {
	if fromStage {
		return stageName + "/" + filepath.Base(path)
	}
	return path
}

func resolveSourceRoot(ctx context.Context, cat *catalog.Catalog, db, schema, source string) (string, error) {
	if strings.HasPrefix(source, "@") {
		name := strings.TrimPrefix(source, "@")
		parts := strings.SplitN(name, "/", 2)
		root, err := cat.StageLocalRoot(ctx, db, schema, parts[0])
		if err != nil {
			return "", err
		}
		if len(parts) == 2 {
			return filepath.Join(root, parts[1]), nil
		}
		return root, nil
	}
	return source, nil
}

func enumerateFiles(root string, only []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	allow := map[string]bool{}
	for _, f := range only {
		allow[f] = true
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if len(only) > 0 && !allow[e.Name()] {
			continue
		}
		out = append(out, filepath.Join(root, e.Name()))
	}
	return out, nil
}

func loadOne(ctx context.Context, host *engine.Host, tenant string, stmt *sqlparse.CopyIntoStmt, path, rel string) (FileStatus, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileStatus{File: rel, Status: "LOAD_FAILED", FirstError: err.Error()}, err
	}
	defer f.Close()

	opts := &tinysql.ImportOptions{CreateTable: false, TypeInference: true}
	var res *tinysql.ImportResult
	switch stmt.Format {
	case sqlparse.FormatParquet:
		return FileStatus{File: rel, Status: "LOAD_FAILED", FirstError: "PARQUET is not supported by the host engine"},
			fserr.New(fserr.NotImplementedErr, "COPY INTO from PARQUET is not supported")
	default:
		res, err = tinysqlImportCSV(ctx, host, tenant, stmt.Table, f, opts)
	}
	if err != nil {
		return FileStatus{File: rel, Status: "LOAD_FAILED", FirstError: err.Error()}, fserr.FromHost(err)
	}
	// ImportResult's only row-count field this adapter relies on is
	// RowsInserted; no separate "rows parsed before dedup" count is used.
	return FileStatus{File: rel, Status: "LOADED", RowsParsed: int64(res.RowsInserted), RowsLoaded: int64(res.RowsInserted)}, nil
}

// tinysqlImportCSV is a thin indirection point so host-side I/O stays in
// one place should a future format (e.g. the declared but unsupported
// PARQUET branch above) need a different importer call.
func tinysqlImportCSV(ctx context.Context, host *engine.Host, tenant, table string, f *os.File, opts *tinysql.ImportOptions) (*tinysql.ImportResult, error) {
	return engine.ImportCSV(ctx, host, tenant, table, f, opts)
}
