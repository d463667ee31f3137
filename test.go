package compeval

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/evalerr"
)

// State is a Test's progress through the pipeline.
type State int

const (
	Discovered State = iota
	Materialized
	SyncedEnvironment
	ProviderReady
	Queried
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Materialized:
		return "materialized"
	case SyncedEnvironment:
		return "synced-environment"
	case ProviderReady:
		return "provider-ready"
	case Queried:
		return "queried"
	default:
		return "unknown"
	}
}

// Test is a materialized corpus entry ready to be queried.
type Test struct {
	Name string
	// Dir is the materialized project directory.
	Dir      string
	Cursor   Cursor
	Answer   Answer
	Settings Settings

	project ProjectContext
	state   State
	logger  *zap.Logger
}

// State returns how far the test has progressed.
func (t *Test) State() State {
	return t.state
}

func (t *Test) setState(s State) {
	t.state = s
	t.logger.Debug("test state", zap.Stringer("state", s))
}

// Completions asks the provider for completions at the cursor. The
// provider's list is returned as is.
func (t *Test) Completions(ctx context.Context) ([]Completion, error) {
	offset, err := ToTextSize(t.Cursor.Offset)
	if err != nil {
		return nil, err
	}
	file, err := t.project.ResolveFile(t.Cursor.Path)
	if err != nil {
		return nil, &evalerr.FileResolutionError{Path: t.Cursor.Path, Err: err}
	}
	if file == nil {
		return nil, &evalerr.FileResolutionError{Path: t.Cursor.Path}
	}
	completions, err := t.project.Complete(ctx, t.Settings, file, offset)
	if err != nil {
		return nil, err
	}
	t.setState(Queried)
	return completions, nil
}

// Close releases the provider's project context.
func (t *Test) Close() error {
	if t.project == nil {
		return nil
	}
	return t.project.Close()
}

// ToTextSize converts a byte offset to the provider's 32-bit offset type.
func ToTextSize(offset int) (TextSize, error) {
	if offset < 0 || uint64(offset) > math.MaxUint32 {
		return 0, &evalerr.OffsetConversionError{Offset: offset}
	}
	return TextSize(offset), nil
}
