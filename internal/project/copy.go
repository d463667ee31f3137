// Package project copies corpus projects into a working directory while
// locating the single cursor marker among their files.
//
// Copy recurses into nested directories and recreates them under the
// destination. Directories in skipDirs are never copied. A symlink to a
// regular file is copied as that file's contents; symlinks to directories,
// dangling symlinks and other special entries (sockets, devices) are
// skipped. Entries are visited in lexical order, so the paths named by a
// conflict error are stable from run to run.
package project

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/jward/compeval/internal/evalerr"
	"github.com/jward/compeval/internal/marker"
)

// Cursor is the location of the marker within a materialized project.
type Cursor struct {
	// Path is the destination file the marker was removed from.
	Path string
	// Offset is the byte offset in Path's materialized contents.
	Offset int
}

// skipDirs are never copied: environments and caches from an accidental
// in-place sync of a corpus entry.
var skipDirs = map[string]bool{
	".venv":       true,
	"__pycache__": true,
	".git":        true,
	".compeval":   true,
}

// Copy copies the project at srcDir to dstDir and returns the location of
// the one marker found among the copied files.
//
// dstDir and its ancestors are created first. The copy is not transactional:
// a failure partway through leaves dstDir partially populated.
func Copy(srcDir, dstDir string) (Cursor, error) {
	var cursor *Cursor
	if err := copyDir(srcDir, dstDir, &cursor); err != nil {
		return Cursor{}, err
	}
	if cursor == nil {
		return Cursor{}, &evalerr.MarkerNotFoundError{Marker: marker.Token, Dir: srcDir}
	}
	return *cursor, nil
}

func copyDir(srcDir, dstDir string, cursor **Cursor) error {
	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return &evalerr.IOError{Op: "create directory", Path: dstDir, Err: err}
	}
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return &evalerr.IOError{Op: "read directory", Path: srcDir, Err: err}
	}

	for _, entry := range entries {
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())

		switch {
		case entry.IsDir():
			if skipDirs[entry.Name()] {
				continue
			}
			if err := copyDir(src, dst, cursor); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyMarked(src, dst, cursor); err != nil {
				return err
			}
		case entry.Type()&os.ModeSymlink != 0:
			info, err := os.Stat(src)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if err := copyMarked(src, dst, cursor); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyMarked copies one file and records its marker, failing when an earlier
// file already held one.
func copyMarked(src, dst string, cursor **Cursor) error {
	found, err := CopyFile(src, dst)
	if err != nil || found == nil {
		return err
	}
	if *cursor != nil {
		return &evalerr.MarkerConflictError{
			Marker: marker.Token,
			First:  (*cursor).Path,
			Second: found.Path,
		}
	}
	*cursor = found
	return nil
}

// CopyFile copies src to dst with the marker removed. It returns the
// marker's position in dst, or nil when src has no marker.
//
// Nothing is written when src contains the marker more than once.
func CopyFile(src, dst string) (*Cursor, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, &evalerr.IOError{Op: "read", Path: src, Err: err}
	}

	res, err := marker.Scan(data, []byte(marker.Token))
	if err != nil {
		var mm *evalerr.MultipleMarkersError
		if errors.As(err, &mm) {
			mm.Path = src
		}
		return nil, err
	}

	if err := os.WriteFile(dst, res.Data, 0o644); err != nil {
		return nil, &evalerr.IOError{Op: "write", Path: dst, Err: err}
	}
	if !res.Found {
		return nil, nil
	}
	return &Cursor{Path: dst, Offset: res.Offset}, nil
}
