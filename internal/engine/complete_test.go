package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/compeval/internal/marker"
)

// completeAt writes text to rel inside the engine's project with the cursor
// marker removed, refreshes the index and queries at the marker.
func completeAt(t *testing.T, e *Engine, rel, text string, settings Settings) []Completion {
	t.Helper()
	res, err := marker.Scan([]byte(text), []byte(marker.Token))
	require.NoError(t, err)
	require.True(t, res.Found, "no cursor marker in text")

	path := filepath.Join(e.Metadata().Root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, res.Data, 0o644))
	require.NoError(t, e.Refresh(context.Background()))

	f, err := e.ResolveFile(path)
	require.NoError(t, err)
	require.NotNil(t, f)

	got, err := e.Complete(context.Background(), settings, f, TextSize(res.Offset))
	require.NoError(t, err)
	return got
}

func completionNames(cs []Completion) []string {
	names := make([]string, 0, len(cs))
	for _, c := range cs {
		names = append(names, c.Name)
	}
	return names
}

func find(cs []Completion, name string) *Completion {
	for i := range cs {
		if cs[i].Name == name {
			return &cs[i]
		}
	}
	return nil
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestComplete_PrefixMatchFirst(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", `import os

def run(count):
    total = count
    return to<CURSOR>`, Settings{})

	require.NotEmpty(t, got)
	assert.Equal(t, Completion{Name: "total", Kind: "variable", Module: "main"}, got[0])
	assert.Nil(t, find(got, "count"), "count does not match the prefix")
	assert.NotNil(t, find(got, "StopIteration"), "subsequence matches follow")
}

func TestComplete_ScopeNames(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", `import os.path
from app.models import User
from app import util
from app.models import make_user as mk

_secret = 1

def run(count):
    total = count
    return <CURSOR>
`, Settings{})

	for _, want := range []Completion{
		{Name: "count", Kind: "parameter", Module: "main"},
		{Name: "total", Kind: "variable", Module: "main"},
		{Name: "run", Kind: "function", Module: "main"},
		{Name: "os", Kind: KindModule, Module: "os"},
		{Name: "User", Kind: "class", Module: "app.models"},
		{Name: "util", Kind: KindModule, Module: "app"},
		{Name: "mk", Kind: "function", Module: "app.models"},
		{Name: "print", Kind: KindBuiltin, Module: "builtins"},
	} {
		c := find(got, want.Name)
		if assert.NotNil(t, c, want.Name) {
			assert.Equal(t, want, *c)
		}
	}
	assert.Nil(t, find(got, "slugify"), "auto-import is off")
	assert.Nil(t, find(got, "greet"), "members are not in scope")

	names := completionNames(got)
	assert.Less(t, indexOf(names, "total"), indexOf(names, "_secret"))
	assert.Less(t, indexOf(names, "_secret"), indexOf(names, "__name__"))
}

func TestComplete_LocalsNotVisibleOutsideFunction(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", `def run(count):
    total = count
    return total

tot<CURSOR>
`, Settings{})
	assert.Nil(t, find(got, "total"))
	assert.Nil(t, find(got, "count"))
}

func TestComplete_ModuleAttributes(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", "from app import util\n\nutil.<CURSOR>\n", Settings{})
	assert.Equal(t, []Completion{{Name: "slugify", Kind: "function", Module: "app.util"}}, got)

	got = completeAt(t, e, "main.py", "import app\n\napp.<CURSOR>\n", Settings{})
	if diff := cmp.Diff([]Completion{
		{Name: "models", Kind: KindModule, Module: "app.models"},
		{Name: "util", Kind: KindModule, Module: "app.util"},
	}, got); diff != "" {
		t.Errorf("package attributes mismatch (-want +got):\n%s", diff)
	}

	got = completeAt(t, e, "main.py", "import app.models as m\n\nm.ma<CURSOR>\n", Settings{})
	assert.Equal(t, []string{"make_user"}, completionNames(got))

	got = completeAt(t, e, "main.py", "import requests\n\nrequests.<CURSOR>\n", Settings{})
	assert.Equal(t, []string{"get", "Session"}, completionNames(got))
}

func TestComplete_ClassAttributes(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", "from app.models import User\n\nUser.<CURSOR>\n", Settings{})
	assert.Equal(t, []string{"greet", "kind", "name", "__init__"}, completionNames(got))
	assert.Equal(t, "app.models", got[0].Module)
	assert.Equal(t, "method", got[0].Kind)

	got = completeAt(t, e, "main.py", `class Box:
    size = 1

    def grow(self):
        return self.<CURSOR>size
`, Settings{})
	assert.Equal(t, []string{"grow", "size"}, completionNames(got))

	got = completeAt(t, e, "main.py", `class Box:
    size = 1

    def grow(this):
        return this.si<CURSOR>
`, Settings{})
	assert.Equal(t, []string{"size"}, completionNames(got))

	got = completeAt(t, e, "main.py", `class Box:
    size = 1

Box.<CURSOR>size
`, Settings{})
	assert.Equal(t, []string{"size"}, completionNames(got))
}

func TestComplete_UnknownReceiverUsesMemberNames(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", `def f(x):
    return x.gr<CURSOR>
`, Settings{})
	c := find(got, "greet")
	require.NotNil(t, c)
	assert.Equal(t, KindMember, c.Kind)
	assert.Empty(t, c.Module)
}

func TestComplete_Suppressed(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	for name, text := range map[string]string{
		"comment":            "import os\n# os.<CURSOR>\n",
		"string":             "import os\npath = \"o<CURSOR>s\"\n",
		"open string":        "x = \"ab<CURSOR>",
		"open triple string": "def f():\n    \"\"\"Retu<CURSOR>\n",
		"number":             "x = 1.<CURSOR>\n",
		"digits":             "x = 12<CURSOR>\n",
	} {
		got := completeAt(t, e, "main.py", text, Settings{})
		assert.Empty(t, got, name)
	}
}

func TestComplete_FStringInterpolation(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", `def run(count):
    return f"{cou<CURSOR>}"
`, Settings{})
	require.NotEmpty(t, got)
	assert.Equal(t, "count", got[0].Name)
}

func TestComplete_AutoImport(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	text := "import os\n\nslug<CURSOR>\n"
	got := completeAt(t, e, "main.py", text, Settings{})
	assert.Empty(t, got)

	got = completeAt(t, e, "main.py", text, Settings{AutoImport: true})
	want := []Completion{{
		Name:   "slugify",
		Kind:   "function",
		Module: "app.util",
		Import: &ImportEdit{Content: "from app.util import slugify\n", Offset: 10},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("auto-import mismatch (-want +got):\n%s", diff)
	}
}

func TestComplete_AutoImportSkipsNamesInScope(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", "from app.models import User\n\nUs<CURSOR>\n", Settings{AutoImport: true})
	require.NotEmpty(t, got)
	assert.Nil(t, got[0].Import)
	for _, c := range got {
		if c.Name == "User" {
			assert.Nil(t, c.Import)
		}
	}

	got = completeAt(t, e, "main.py", "Sess<CURSOR>\n", Settings{AutoImport: true})
	require.Len(t, got, 1)
	assert.Equal(t, "requests", got[0].Module)
	assert.Equal(t, &ImportEdit{Content: "from requests import Session\n", Offset: 0}, got[0].Import)
}

func TestComplete_RelativeImports(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "app/views.py", "from . import util\nfrom .models import User\n\nutil.<CURSOR>\n", Settings{})
	assert.Equal(t, []string{"slugify"}, completionNames(got))

	got = completeAt(t, e, "app/views.py", "from .models import User\n\nUs<CURSOR>\n", Settings{})
	c := find(got, "User")
	require.NotNil(t, c)
	assert.Equal(t, Completion{Name: "User", Kind: "class", Module: "app.models"}, *c)
}

func TestComplete_WildcardImport(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)

	got := completeAt(t, e, "main.py", "from app.models import *\n\nma<CURSOR>\n", Settings{})
	c := find(got, "make_user")
	require.NotNil(t, c)
	assert.Equal(t, "app.models", c.Module)
	assert.Nil(t, find(got, "_cache"))
}

func TestComplete_OffsetPastEnd(t *testing.T) {
	t.Parallel()
	e := openArchive(t, demoProject)
	f, err := e.ResolveFile(filepath.Join(e.Metadata().Root, "app", "util.py"))
	require.NoError(t, err)
	require.NotNil(t, f)

	_, err = e.Complete(context.Background(), Settings{}, f, 10_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past the end")
}
