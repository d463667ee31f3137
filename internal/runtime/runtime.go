// Package runtime hosts the Risor scripts that turn Python source into
// completion index rows. Scripts get tree-sitter access, index writes and a
// logger as globals.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/jward/compeval/internal/store"
)

// Runtime runs scripts against one index.
type Runtime struct {
	index   *store.Store
	scripts fs.FS
	trees   *trees
	logger  *zap.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger behind the scripts' log global.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// New returns a Runtime that loads scripts, and resolves their imports, from
// scripts. Without an index the add_symbol and add_import globals are absent.
func New(index *store.Store, scripts fs.FS, opts ...Option) *Runtime {
	r := &Runtime{
		index:   index,
		scripts: scripts,
		trees:   newTrees(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExtractionScript names the script that indexes files of lang.
func ExtractionScript(lang string) string {
	return "extract/" + lang + ".risor"
}

// Extract indexes f with the extraction script for its language. f must be
// stored already: the script attaches its rows to f.ID.
func (r *Runtime) Extract(ctx context.Context, f *store.File) error {
	defer r.trees.forget()
	return r.Exec(ctx, ExtractionScript(f.Language), map[string]any{
		"file_path": f.Path,
		"file_id":   f.ID,
	})
}

// Exec runs the script at name, a slash-separated path within the scripts
// FS, with vars added to the globals.
func (r *Runtime) Exec(ctx context.Context, name string, vars map[string]any) error {
	if r.scripts == nil {
		return fmt.Errorf("runtime: no script source for %s", name)
	}
	data, err := fs.ReadFile(r.scripts, path.Clean(strings.TrimPrefix(name, "/")))
	if err != nil {
		return fmt.Errorf("runtime: load %s: %w", name, err)
	}
	return r.run(ctx, name, string(data), vars)
}

// Eval runs src with vars added to the globals.
func (r *Runtime) Eval(ctx context.Context, src string, vars map[string]any) error {
	return r.run(ctx, "<eval>", src, vars)
}

func (r *Runtime) run(ctx context.Context, label, src string, vars map[string]any) error {
	globals := r.globals()
	for k, v := range vars {
		globals[k] = v
	}

	names := make([]string, 0, len(globals))
	opts := make([]risor.Option, 0, len(globals)+1)
	for k, v := range globals {
		names = append(names, k)
		opts = append(opts, risor.WithGlobal(k, v))
	}
	if r.scripts != nil {
		opts = append(opts, risor.WithImporter(importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: names,
			SourceFS:    r.scripts,
			Extensions:  []string{".risor"},
		})))
	}

	if _, err := risor.Eval(ctx, src, opts...); err != nil {
		return fmt.Errorf("runtime: %s: %w", label, err)
	}
	return nil
}

func (r *Runtime) globals() map[string]any {
	g := map[string]any{
		"parse":         r.trees.parseBuiltin(),
		"node_text":     r.trees.textBuiltin(),
		"node_field":    nodeFieldBuiltin,
		"node_children": nodeChildrenBuiltin,
		"log":           newScriptLog(r.logger.Named("script")),
	}
	if r.index != nil {
		g["add_symbol"] = addSymbolBuiltin(r.index)
		g["add_import"] = addImportBuiltin(r.index)
	}
	return g
}

// scriptLog is exposed to scripts as log.Debug, log.Info and so on.
type scriptLog struct {
	logger *zap.Logger
}

func newScriptLog(l *zap.Logger) object.Object {
	p, err := object.NewProxy(&scriptLog{logger: l})
	if err != nil {
		panic(fmt.Sprintf("runtime: log proxy: %v", err))
	}
	return p
}

func (l *scriptLog) Debug(msg string) { l.logger.Debug(msg) }
func (l *scriptLog) Info(msg string)  { l.logger.Info(msg) }
func (l *scriptLog) Warn(msg string)  { l.logger.Warn(msg) }
func (l *scriptLog) Error(msg string) { l.logger.Error(msg) }
