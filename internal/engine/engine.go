// Package engine is a small Python completion engine. It indexes a project
// and its virtualenv into SQLite through the Risor extraction scripts, then
// answers completion queries at byte offsets.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/runtime"
	"github.com/jward/compeval/internal/store"
	"github.com/jward/compeval/scripts"
)

// IndexDir is the directory under the project root holding the index.
const IndexDir = ".compeval"

// Engine answers completion queries for one project.
type Engine struct {
	meta    *Metadata
	store   *store.Store
	runtime *runtime.Runtime
	logger  *zap.Logger
	scripts fs.FS
	dbPath  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the Engine's logger. The extraction scripts log through it
// too.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithScriptsFS loads extraction scripts from fsys instead of the embedded
// scripts.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scripts = fsys
	}
}

// WithScriptsDir loads extraction scripts from a directory on disk, for
// iterating on scripts without rebuilding.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scripts = os.DirFS(dir)
	}
}

// WithDBPath places the index database at path instead of
// <root>/.compeval/index.db.
func WithDBPath(path string) Option {
	return func(e *Engine) {
		e.dbPath = path
	}
}

// Open builds a fresh index for the project described by meta. Any previous
// index at the same location is discarded.
func Open(ctx context.Context, meta *Metadata, opts ...Option) (*Engine, error) {
	e := &Engine{
		meta:    meta,
		logger:  zap.NewNop(),
		scripts: scripts.FS,
		dbPath:  filepath.Join(meta.Root, IndexDir, "index.db"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if meta.SourceRoots == nil {
		if err := meta.ApplyConfigurationFiles(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(e.dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("engine: create index dir: %w", err)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(e.dbPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("engine: remove stale index: %w", err)
		}
	}

	s, err := store.NewStore(e.dbPath)
	if err != nil {
		return nil, fmt.Errorf("engine: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("engine: migrate: %w", err)
	}
	e.store = s

	e.runtime = runtime.New(s, e.scripts, runtime.WithLogger(e.logger))

	for key, value := range map[string]string{"root": meta.Root, "project_name": meta.Name} {
		if err := s.SetMetadata(key, value); err != nil {
			s.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	if err := e.Refresh(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the index database.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Metadata returns the project the Engine was opened for.
func (e *Engine) Metadata() *Metadata {
	return e.meta
}

// Refresh walks every source root and search path and indexes new or changed
// files. Unchanged files are skipped by content hash.
func (e *Engine) Refresh(ctx context.Context) error {
	start := time.Now()
	var firstParty []error
	for _, root := range e.meta.SourceRoots {
		paths, err := e.walkListFiles(root)
		if err != nil {
			return err
		}
		firstParty = append(firstParty, e.IndexFiles(ctx, root, paths, false)...)
	}
	thirdParty := 0
	for _, root := range e.meta.SearchPaths {
		paths, err := e.walkListFiles(root)
		if err != nil {
			return err
		}
		errs := e.IndexFiles(ctx, root, paths, true)
		for _, err := range errs {
			e.logger.Debug("skipping third-party file", zap.Error(err))
		}
		thirdParty += len(errs)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	count, _ := e.store.FileCount()
	e.logger.Debug("index refreshed",
		zap.String("root", e.meta.Root),
		zap.Int("files", count),
		zap.Int("third_party_errors", thirdParty),
		zap.Duration("elapsed", time.Since(start)),
	)
	if len(firstParty) > 0 {
		return fmt.Errorf("engine: indexing had %d error(s): %w", len(firstParty), firstParty[0])
	}
	return nil
}

// IndexFiles indexes paths found under root. Errors on individual files are
// collected and processing continues.
func (e *Engine) IndexFiles(ctx context.Context, root string, paths []string, thirdParty bool) []error {
	var errs []error
	for _, path := range paths {
		if ctx.Err() != nil {
			return errs
		}
		if err := e.indexFile(ctx, root, path, thirdParty); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	return errs
}

func (e *Engine) indexFile(ctx context.Context, root, path string, thirdParty bool) error {
	lang, ok := runtime.LanguageForFile(path)
	if !ok {
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	hash := store.HashContent(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil
	}
	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return fmt.Errorf("delete old data: %w", err)
		}
	}

	f := &store.File{
		Path:        path,
		Module:      ModuleName(root, path),
		Language:    lang,
		Hash:        hash,
		ThirdParty:  thirdParty,
		LastIndexed: time.Now(),
	}
	if _, err := e.store.InsertFile(f); err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	if err := e.runtime.Extract(ctx, f); err != nil {
		return fmt.Errorf("extraction script: %w", err)
	}
	return nil
}

// skipDirs are never descended into. Hidden directories are skipped too.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
}

// walkListFiles lists the Python files under root. Directories that are
// themselves roots of the project are left to their own walk.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	roots := make(map[string]bool)
	for _, r := range e.meta.SourceRoots {
		roots[r] = true
	}
	for _, r := range e.meta.SearchPaths {
		roots[r] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || skipDirs[name] || strings.HasSuffix(name, ".dist-info") || roots[path] {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := runtime.LanguageForFile(path); ok && d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("engine: walk %s: %w", root, err)
	}
	return paths, nil
}

// ModuleName derives a dotted module name from a file's path relative to the
// root it was found under. Package __init__ files name the package itself.
func ModuleName(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, ".")
}

// ResolveFile returns the indexed file at path, or nil if the index does not
// contain it.
func (e *Engine) ResolveFile(path string) (*store.File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve %s: %w", path, err)
	}
	f, err := e.store.FileByPath(abs)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return f, nil
}
