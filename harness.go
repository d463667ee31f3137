package compeval

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/envsync"
	"github.com/jward/compeval/internal/project"
)

// Harness materializes corpus entries under a destination root and queries
// a Provider for each.
type Harness struct {
	destRoot  string
	provider  Provider
	syncer    envsync.Syncer
	logger    *zap.Logger
	jobs      int
	keepGoing bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithSyncer replaces the environment sync step, `uv sync` by default.
func WithSyncer(s envsync.Syncer) Option {
	return func(h *Harness) {
		h.syncer = s
	}
}

// WithLogger sets the Harness logger.
func WithLogger(l *zap.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithJobs lets Run prepare up to n entries at once. Results are still
// emitted in corpus order. Values below 1 mean 1.
func WithJobs(n int) Option {
	return func(h *Harness) {
		h.jobs = max(n, 1)
	}
}

// WithKeepGoing makes Run report a failed entry and continue with the next
// one instead of stopping.
func WithKeepGoing(keepGoing bool) Option {
	return func(h *Harness) {
		h.keepGoing = keepGoing
	}
}

// New returns a Harness that materializes projects under destRoot and
// queries provider.
func New(destRoot string, provider Provider, opts ...Option) *Harness {
	h := &Harness{
		destRoot: destRoot,
		provider: provider,
		logger:   zap.NewNop(),
		jobs:     1,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.syncer == nil {
		h.syncer = envsync.UV(envsync.WithLogger(h.logger))
	}
	return h
}

// Materialize prepares source for querying: copy its project to
// <destRoot>/<name> without the cursor marker, sync its environment and
// open it with the provider. The truth file is loaded first if needed.
//
// Destination contents from earlier runs are overwritten, not cleared.
func (h *Harness) Materialize(ctx context.Context, source *TestSource) (*Test, error) {
	return h.materialize(ctx, source, h.logger)
}

func (h *Harness) materialize(ctx context.Context, source *TestSource, logger *zap.Logger) (*Test, error) {
	if source.Truth == nil {
		if err := source.Load(); err != nil {
			return nil, err
		}
	}
	t := &Test{
		Name:     source.Name,
		Dir:      filepath.Join(h.destRoot, source.Name),
		Answer:   source.Truth.Answer,
		Settings: Settings{AutoImport: source.Truth.Settings.AutoImport},
		logger:   logger.With(zap.String("test", source.Name)),
	}
	t.setState(Discovered)

	cursor, err := project.Copy(source.Dir, t.Dir)
	if err != nil {
		return nil, err
	}
	t.Cursor = cursor
	t.setState(Materialized)

	if err := h.syncer.Sync(ctx, t.Dir); err != nil {
		return nil, err
	}
	t.setState(SyncedEnvironment)

	pc, err := h.provider.OpenProject(ctx, t.Dir)
	if err != nil {
		return nil, fmt.Errorf("compeval: open project `%s`: %w", t.Dir, err)
	}
	t.project = pc
	t.setState(ProviderReady)
	return t, nil
}
