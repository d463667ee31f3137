// Package evalerr defines the failure taxonomy for compeval.
//
// Every failure the harness can report maps to exactly one Class. Each error
// type carries the path or entry it is about, so a message printed at the top
// of a wrapped chain is enough to locate the defect without re-running.
package evalerr

import (
	"errors"
	"fmt"
)

// Class is a stable failure category.
type Class string

const (
	IO              Class = "IO"
	MissingTruth    Class = "MISSING_TRUTH"
	TruthParse      Class = "TRUTH_PARSE"
	MarkerNotFound  Class = "MARKER_NOT_FOUND"
	MarkerConflict  Class = "MARKER_CONFLICT"
	MultipleMarkers Class = "MULTIPLE_MARKERS"
	EnvironmentSync Class = "ENVIRONMENT_SYNC"
	OffsetConvert   Class = "OFFSET_CONVERSION"
	FileResolution  Class = "FILE_RESOLUTION"
	Provider        Class = "PROVIDER"
)

// IOError reports a failed filesystem operation.
type IOError struct {
	Op   string // "read", "write", "create directory", "read directory"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s `%s`: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// MissingTruthFileError reports a corpus entry without a truth file.
type MissingTruthFileError struct {
	Path string
	Err  error
}

func (e *MissingTruthFileError) Error() string {
	return fmt.Sprintf("failed to read truth data at `%s`: %v", e.Path, e.Err)
}

func (e *MissingTruthFileError) Unwrap() error { return e.Err }

// TruthParseError reports a truth file that could not be decoded or that is
// missing a required key.
type TruthParseError struct {
	Path string
	Err  error
}

func (e *TruthParseError) Error() string {
	return fmt.Sprintf("failed to parse TOML completion truth data from `%s`: %v", e.Path, e.Err)
}

func (e *TruthParseError) Unwrap() error { return e.Err }

// MarkerNotFoundError reports a project tree without any marker.
type MarkerNotFoundError struct {
	Marker string
	Dir    string
}

func (e *MarkerNotFoundError) Error() string {
	return fmt.Sprintf("could not find any `%s` substring in any of the files in `%s`", e.Marker, e.Dir)
}

// MarkerConflictError reports a marker found in two distinct files.
type MarkerConflictError struct {
	Marker string
	First  string
	Second string
}

func (e *MarkerConflictError) Error() string {
	return fmt.Sprintf("found `%s` in both `%s` and `%s`, but it must occur in exactly one file",
		e.Marker, e.First, e.Second)
}

// MultipleMarkersError reports a marker occurring more than once in a single
// buffer. Path is empty when the buffer did not come from a file.
type MultipleMarkersError struct {
	Marker string
	Path   string
	First  int
	Second int
}

func (e *MultipleMarkersError) Error() string {
	where := "buffer"
	if e.Path != "" {
		where = "`" + e.Path + "`"
	}
	return fmt.Sprintf("found `%s` more than once in %s at bytes %d and %d (must occur at most once)",
		e.Marker, where, e.First, e.Second)
}

// EnvironmentSyncError reports a failed dependency sync subprocess.
// ExitCode is -1 when the process did not exit normally.
type EnvironmentSyncError struct {
	Command  string
	Dir      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *EnvironmentSyncError) Error() string {
	code := "UNKNOWN"
	if e.ExitCode >= 0 {
		code = fmt.Sprint(e.ExitCode)
	}
	return fmt.Sprintf("`%s` failed to run in `%s` with exit code `%s`, stderr: %s",
		e.Command, e.Dir, code, e.Stderr)
}

func (e *EnvironmentSyncError) Unwrap() error { return e.Err }

// OffsetConversionError reports a cursor offset that does not fit the
// provider's 32-bit text size.
type OffsetConversionError struct {
	Offset int
}

func (e *OffsetConversionError) Error() string {
	return fmt.Sprintf("failed to convert cursor file offset `%d` to 32-bit integer", e.Offset)
}

// FileResolutionError reports a cursor path unknown to the provider.
type FileResolutionError struct {
	Path string
	Err  error
}

func (e *FileResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to get database file for `%s`: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("failed to get database file for `%s`", e.Path)
}

func (e *FileResolutionError) Unwrap() error { return e.Err }

// EntryError attaches a corpus entry name to any failure while processing
// that entry.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("test `%s`: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// ClassOf classifies err by searching its chain for a taxonomy type.
// Errors outside the taxonomy (typically from the completion provider)
// report Provider. A nil error has no class.
func ClassOf(err error) Class {
	if err == nil {
		return ""
	}
	var (
		ioErr      *IOError
		missing    *MissingTruthFileError
		parse      *TruthParseError
		notFound   *MarkerNotFoundError
		conflict   *MarkerConflictError
		multiple   *MultipleMarkersError
		syncErr    *EnvironmentSyncError
		offsetErr  *OffsetConversionError
		resolveErr *FileResolutionError
	)
	switch {
	case errors.As(err, &missing):
		return MissingTruth
	case errors.As(err, &parse):
		return TruthParse
	case errors.As(err, &notFound):
		return MarkerNotFound
	case errors.As(err, &conflict):
		return MarkerConflict
	case errors.As(err, &multiple):
		return MultipleMarkers
	case errors.As(err, &syncErr):
		return EnvironmentSync
	case errors.As(err, &offsetErr):
		return OffsetConvert
	case errors.As(err, &resolveErr):
		return FileResolution
	case errors.As(err, &ioErr):
		return IO
	default:
		return Provider
	}
}
