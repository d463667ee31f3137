package compeval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/engine"
)

// Provider opens completion contexts for materialized projects.
type Provider interface {
	OpenProject(ctx context.Context, root string) (ProjectContext, error)
}

// ProjectContext answers completion queries for one project.
type ProjectContext interface {
	// ResolveFile returns the handle for path, or nil and no error when the
	// project does not contain it.
	ResolveFile(path string) (*FileHandle, error)
	Complete(ctx context.Context, settings Settings, file *FileHandle, offset TextSize) ([]Completion, error)
	Close() error
}

// FileHandle identifies a file within a ProjectContext.
type FileHandle struct {
	ID   int64
	Path string
}

// IndexProvider is the built-in Provider. Opening a project discovers its
// configuration and builds a fresh index of it.
type IndexProvider struct {
	logger *zap.Logger
}

// NewIndexProvider returns an IndexProvider logging to logger. A nil logger
// discards logs.
func NewIndexProvider(logger *zap.Logger) *IndexProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexProvider{logger: logger}
}

// OpenProject indexes the project rooted at root. Configuration discovery
// errors are returned as they are.
func (p *IndexProvider) OpenProject(ctx context.Context, root string) (ProjectContext, error) {
	meta, err := engine.Discover(root)
	if err != nil {
		return nil, err
	}
	if err := meta.ApplyConfigurationFiles(); err != nil {
		return nil, err
	}
	e, err := engine.Open(ctx, meta, engine.WithLogger(p.logger.Named("engine")))
	if err != nil {
		return nil, err
	}
	return &indexProject{engine: e}, nil
}

type indexProject struct {
	engine *engine.Engine
}

func (p *indexProject) ResolveFile(path string) (*FileHandle, error) {
	f, err := p.engine.ResolveFile(path)
	if err != nil || f == nil {
		return nil, err
	}
	return &FileHandle{ID: f.ID, Path: f.Path}, nil
}

func (p *indexProject) Complete(ctx context.Context, settings Settings, file *FileHandle, offset TextSize) ([]Completion, error) {
	f, err := p.engine.Store().FileByID(file.ID)
	if err != nil {
		return nil, fmt.Errorf("compeval: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("compeval: file %d (%s) is no longer indexed", file.ID, file.Path)
	}
	return p.engine.Complete(ctx, settings, f, offset)
}

func (p *indexProject) Close() error {
	return p.engine.Close()
}
