// Package stage implements CREATE STAGE / PUT / GET / LIST / REMOVE over a
// local directory tree, spec.md §4.6. Each stage maps to one directory
// under a configured root; PUT/GET copy files in and out (gzip-compressed
// on PUT, matching the target dialect's default stage compression), and
// LIST's directory read is cached and invalidated on change via
// fsnotify, the same library the pack reaches for file-watching.
package stage

import (
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"fsnow/internal/catalog"
	"fsnow/internal/fserr"
	"fsnow/internal/sqlparse"
)

// Manager owns the on-disk root every stage is rooted under, and a
// watcher-backed listing cache.
type Manager struct {
	root string

	mu      sync.Mutex
	cache   map[string][]os.FileInfo
	watcher *fsnotify.Watcher
}

// NewManager creates a Manager rooted at root (created if missing).
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "create stage root %s", root)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "start stage watcher")
	}
	m := &Manager{root: root, cache: map[string][]os.FileInfo{}, watcher: w}
	go m.invalidateLoop()
	return m, nil
}

func (m *Manager) invalidateLoop() {
	for event := range m.watcher.Events {
		m.mu.Lock()
		delete(m.cache, filepath.Dir(event.Name))
		m.mu.Unlock()
	}
}

// Create materializes a stage's directory under db/schema/name and
// registers it in the catalog. External stages (URL set) are recorded for
// metadata purposes only; PUT/GET/LIST/REMOVE require a local root and
// reject an external stage with NotImplementedErr.
func (m *Manager) Create(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) error {
	localRoot := ""
	if stmt.URL == "" {
		localRoot = filepath.Join(m.root, db, schema, stmt.Name)
		if err := os.MkdirAll(localRoot, 0o755); err != nil {
			return fserr.Wrap(fserr.IOError, err, "create stage directory for %s", stmt.Name)
		}
		if err := m.watcher.Add(localRoot); err != nil {
			return fserr.Wrap(fserr.IOError, err, "watch stage directory for %s", stmt.Name)
		}
	}
	return cat.RegisterStage(ctx, db, schema, stmt.Name, stmt.URL, localRoot, stmt.Temporary)
}

// PutResult is the one-row status spec.md §4.6 describes for PUT: source
// and target file names, their sizes, and the compression applied.
type PutResult struct {
	Source             string
	Target             string
	SourceSize         int64
	TargetSize         int64
	SourceCompression  string
	TargetCompression  string
	Status             string
}

// Put copies stmt.LocalPath into the stage, gzip-compressing it unless it
// is already named *.gz.
func (m *Manager) Put(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) error {
	_, err := m.PutInfo(ctx, cat, db, schema, stmt)
	return err
}

// PutInfo is Put's counterpart that also reports the size/compression
// status row, used by the session loop to shape PUT's result set.
func (m *Manager) PutInfo(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) (*PutResult, error) {
	root, err := cat.StageLocalRoot(ctx, db, schema, stmt.Name)
	if err != nil {
		return nil, err
	}
	if root == "" {
		return nil, fserr.New(fserr.NotImplementedErr, "PUT to an external stage is not supported")
	}
	src, err := os.Open(stmt.LocalPath)
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "open %s", stmt.LocalPath)
	}
	defer src.Close()
	srcInfo, err := src.Stat()
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "stat %s", stmt.LocalPath)
	}

	base := filepath.Base(stmt.LocalPath)
	res := &PutResult{Source: base, SourceSize: srcInfo.Size(), SourceCompression: "NONE", Status: "UPLOADED"}

	destPath := filepath.Join(root, base)
	if filepath.Ext(base) != ".gz" {
		destPath += ".gz"
	}
	res.Target = filepath.Base(destPath)
	res.TargetCompression = "GZIP"

	dst, err := os.Create(destPath)
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "create %s", destPath)
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return nil, fserr.Wrap(fserr.IOError, err, "compress %s", stmt.LocalPath)
	}
	if err := gw.Close(); err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "flush %s", destPath)
	}
	m.mu.Lock()
	delete(m.cache, root)
	m.mu.Unlock()
	dstInfo, err := dst.Stat()
	if err == nil {
		res.TargetSize = dstInfo.Size()
	}
	return res, nil
}

// Get copies a file out of the stage into stmt.LocalPath, transparently
// decompressing a .gz source.
func (m *Manager) Get(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) error {
	root, err := cat.StageLocalRoot(ctx, db, schema, stmt.Name)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "list stage %s", stmt.Name)
	}
	if err := os.MkdirAll(stmt.LocalPath, 0o755); err != nil {
		return fserr.Wrap(fserr.IOError, err, "create destination %s", stmt.LocalPath)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := m.copyOneOut(filepath.Join(root, e.Name()), stmt.LocalPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) copyOneOut(srcPath, destDir string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "open %s", srcPath)
	}
	defer src.Close()

	name := filepath.Base(srcPath)
	var reader io.Reader = src
	if filepath.Ext(name) == ".gz" {
		gr, err := gzip.NewReader(src)
		if err != nil {
			return fserr.Wrap(fserr.IOError, err, "decompress %s", srcPath)
		}
		defer gr.Close()
		reader = gr
		name = name[:len(name)-len(".gz")]
	}
	dst, err := os.Create(filepath.Join(destDir, name))
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "create %s", name)
	}
	defer dst.Close()
	_, err = io.Copy(dst, reader)
	return err
}

// List returns the cached (or freshly read) directory listing for a
// stage, invalidated automatically on filesystem change by the watcher
// goroutine started in NewManager.
func (m *Manager) List(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) ([]os.FileInfo, error) {
	root, err := cat.StageLocalRoot(ctx, db, schema, stmt.Name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if cached, ok := m.cache[root]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fserr.Wrap(fserr.IOError, err, "list stage %s", stmt.Name)
	}
	var infos []os.FileInfo
	for _, e := range entries {
		info, err := e.Info()
		if err == nil {
			infos = append(infos, info)
		}
	}
	m.mu.Lock()
	m.cache[root] = infos
	m.mu.Unlock()
	return infos, nil
}

// Remove deletes files from a stage, optionally by name (stmt carries no
// glob support beyond an exact LocalPath match, matching the scanner's
// simple PATTERN capture in internal/sqlparse).
func (m *Manager) Remove(ctx context.Context, cat *catalog.Catalog, db, schema string, stmt *sqlparse.StageStmt) error {
	root, err := cat.StageLocalRoot(ctx, db, schema, stmt.Name)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return fserr.Wrap(fserr.IOError, err, "list stage %s", stmt.Name)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(root, e.Name())); err != nil {
			return fserr.Wrap(fserr.IOError, err, "remove %s", e.Name())
		}
	}
	m.mu.Lock()
	delete(m.cache, root)
	m.mu.Unlock()
	return nil
}

// Close stops the filesystem watcher goroutine.
func (m *Manager) Close() error { return m.watcher.Close() }
