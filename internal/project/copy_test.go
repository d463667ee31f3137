package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/jward/compeval/internal/evalerr"
)

// writeArchive unpacks a txtar archive under a fresh temp directory and
// returns that directory.
func writeArchive(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range txtar.Parse([]byte(archive)).Files {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCopy_SingleMarker(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
x = 1
x.<CURSOR>bar
-- b.py --
y = 2
`)
	dst := filepath.Join(t.TempDir(), "out", "basic")

	cursor, err := Copy(src, dst)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dst, "a.py"), cursor.Path)
	assert.Equal(t, 8, cursor.Offset)
	assert.Equal(t, "x = 1\nx.bar\n", readFile(t, filepath.Join(dst, "a.py")))
	assert.Equal(t, "y = 2\n", readFile(t, filepath.Join(dst, "b.py")))
}

func TestCopy_ScenarioWithoutTrailingNewline(t *testing.T) {
	t.Parallel()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.py"), []byte("x = 1\nx.<CURSOR>bar"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "b.py"), []byte("y = 2"), 0o644))
	dst := filepath.Join(t.TempDir(), "scenario")

	cursor, err := Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "a.py"), cursor.Path)
	assert.Equal(t, len("x = 1\nx."), cursor.Offset)
	assert.Equal(t, "x = 1\nx.bar", readFile(t, filepath.Join(dst, "a.py")))
	assert.Equal(t, "y = 2", readFile(t, filepath.Join(dst, "b.py")))
}

func TestCopy_NestedDirectories(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- pyproject.toml --
[project]
name = "nested"
-- src/pkg/__init__.py --
-- src/pkg/core.py --
def helper():
    return hel<CURSOR>
`)
	dst := filepath.Join(t.TempDir(), "nested")

	cursor, err := Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "src", "pkg", "core.py"), cursor.Path)
	assert.Equal(t, "def helper():\n    return hel\n", readFile(t, cursor.Path))
	assert.FileExists(t, filepath.Join(dst, "src", "pkg", "__init__.py"))
	assert.FileExists(t, filepath.Join(dst, "pyproject.toml"))
}

func TestCopy_SkipsEnvironmentDirectories(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- main.py --
import os
os.<CURSOR>
-- .venv/lib/site.py --
<CURSOR>
-- __pycache__/main.cpython-312.pyc --
<CURSOR>
`)
	dst := filepath.Join(t.TempDir(), "skip")

	cursor, err := Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "main.py"), cursor.Path)
	assert.NoDirExists(t, filepath.Join(dst, ".venv"))
	assert.NoDirExists(t, filepath.Join(dst, "__pycache__"))
}

func TestCopy_Symlinks(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- main.py --
print(<CURSOR>)
-- shared/helpers.py --
def help():
    pass
`)
	outside := writeArchive(t, `
-- config.py --
DEBUG = True
`)
	links := map[string]string{
		"helpers.py":  filepath.Join(src, "shared", "helpers.py"),
		"config.py":   filepath.Join(outside, "config.py"),
		"linked":      filepath.Join(src, "shared"),
		"dangling.py": filepath.Join(src, "missing.py"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(src, name)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}
	dst := filepath.Join(t.TempDir(), "links")

	cursor, err := Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "main.py"), cursor.Path)

	// Links to regular files become plain copies.
	for name, want := range map[string]string{
		"helpers.py": "def help():\n    pass\n",
		"config.py":  "DEBUG = True\n",
	} {
		info, err := os.Lstat(filepath.Join(dst, name))
		require.NoError(t, err, name)
		assert.True(t, info.Mode().IsRegular(), name)
		assert.Equal(t, want, readFile(t, filepath.Join(dst, name)))
	}

	for _, name := range []string{"linked", "dangling.py"} {
		_, err := os.Lstat(filepath.Join(dst, name))
		assert.True(t, os.IsNotExist(err), name)
	}
}

func TestCopy_SymlinkedMarkerConflicts(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- main.py --
print(<CURSOR>)
`)
	if err := os.Symlink(filepath.Join(src, "main.py"), filepath.Join(src, "link.py")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "conflict")

	_, err := Copy(src, dst)
	var conflict *evalerr.MarkerConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, filepath.Join(dst, "link.py"), conflict.First)
	assert.Equal(t, filepath.Join(dst, "main.py"), conflict.Second)
}

func TestCopy_NoMarker(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
x = 1
-- b.py --
y = 2
`)
	_, err := Copy(src, filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)

	var nf *evalerr.MarkerNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, src, nf.Dir)
}

func TestCopy_EmptyDirectory(t *testing.T) {
	t.Parallel()
	_, err := Copy(t.TempDir(), filepath.Join(t.TempDir(), "empty"))
	var nf *evalerr.MarkerNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestCopy_MarkerInTwoFiles(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
a<CURSOR>
-- b.py --
b<CURSOR>
`)
	dst := filepath.Join(t.TempDir(), "conflict")
	_, err := Copy(src, dst)
	require.Error(t, err)

	var conflict *evalerr.MarkerConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, filepath.Join(dst, "a.py"), conflict.First)
	assert.Equal(t, filepath.Join(dst, "b.py"), conflict.Second)
	assert.Contains(t, err.Error(), "a.py")
	assert.Contains(t, err.Error(), "b.py")
}

func TestCopy_MarkerInTwoFilesAcrossDirectories(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- main.py --
x<CURSOR>
-- pkg/mod.py --
y<CURSOR>
`)
	_, err := Copy(src, filepath.Join(t.TempDir(), "deep"))
	var conflict *evalerr.MarkerConflictError
	assert.True(t, errors.As(err, &conflict))
}

func TestCopy_MarkerTwiceInOneFile(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
x<CURSOR> = y<CURSOR>
`)
	_, err := Copy(src, filepath.Join(t.TempDir(), "twice"))
	require.Error(t, err)

	var mm *evalerr.MultipleMarkersError
	require.True(t, errors.As(err, &mm))
	assert.Equal(t, filepath.Join(src, "a.py"), mm.Path)
}

func TestCopyFile_MultipleMarkersWritesNothing(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "a.py")
	require.NoError(t, os.WriteFile(src, []byte("<CURSOR><CURSOR>"), 0o644))
	dst := filepath.Join(t.TempDir(), "a.py")

	cursor, err := CopyFile(src, dst)
	require.Error(t, err)
	assert.Nil(t, cursor)
	assert.NoFileExists(t, dst)
}

func TestCopyFile_RoundTripWithoutMarker(t *testing.T) {
	t.Parallel()
	content := []byte("\x00\xffbinary\r\n<CURSO R>\n\xe2\x82\xac")
	src := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(src, content, 0o644))
	dst := filepath.Join(t.TempDir(), "data.bin")

	cursor, err := CopyFile(src, dst)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCopyFile_MissingSource(t *testing.T) {
	t.Parallel()
	src := filepath.Join(t.TempDir(), "missing.py")
	_, err := CopyFile(src, filepath.Join(t.TempDir(), "x.py"))

	var ioErr *evalerr.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "read", ioErr.Op)
	assert.Equal(t, src, ioErr.Path)
}

func TestCopy_DestinationUnwritable(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
<CURSOR>
`)
	// A regular file where the destination directory should go.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := Copy(src, filepath.Join(blocker, "dst"))
	var ioErr *evalerr.IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "create directory", ioErr.Op)
}

func TestCopy_OverwritesPreviousRun(t *testing.T) {
	t.Parallel()
	src := writeArchive(t, `
-- a.py --
new<CURSOR>
`)
	dst := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.py"), []byte("old contents that are longer"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "stale.py"), []byte("stale"), 0o644))

	_, err := Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, "new\n", readFile(t, filepath.Join(dst, "a.py")))
	// Files not in the source are left alone.
	assert.Equal(t, "stale", readFile(t, filepath.Join(dst, "stale.py")))
}
