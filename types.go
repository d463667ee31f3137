package compeval

import (
	"github.com/jward/compeval/internal/engine"
	"github.com/jward/compeval/internal/evalerr"
	"github.com/jward/compeval/internal/project"
	"github.com/jward/compeval/internal/truth"
)

// Public type aliases for internal types used in the harness API. These are
// Go type aliases (=), so no conversion is needed between the two names.

type Completion = engine.Completion
type ImportEdit = engine.ImportEdit
type Settings = engine.Settings
type TextSize = engine.TextSize

type Cursor = project.Cursor
type Truth = truth.Truth
type Answer = truth.Answer

// Error taxonomy. Use errors.As to inspect a failure, or ClassOf for a
// stable category name.

type ErrorClass = evalerr.Class
type IOError = evalerr.IOError
type MissingTruthFileError = evalerr.MissingTruthFileError
type TruthParseError = evalerr.TruthParseError
type MarkerNotFoundError = evalerr.MarkerNotFoundError
type MarkerConflictError = evalerr.MarkerConflictError
type MultipleMarkersError = evalerr.MultipleMarkersError
type EnvironmentSyncError = evalerr.EnvironmentSyncError
type OffsetConversionError = evalerr.OffsetConversionError
type FileResolutionError = evalerr.FileResolutionError
type EntryError = evalerr.EntryError

// ClassOf returns the failure category of err.
func ClassOf(err error) ErrorClass {
	return evalerr.ClassOf(err)
}
