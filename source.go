package compeval

import (
	"os"
	"path/filepath"

	"github.com/jward/compeval/internal/evalerr"
	"github.com/jward/compeval/internal/truth"
)

// TestSource is one corpus entry: a project directory and its truth file.
type TestSource struct {
	// Dir is the entry directory. Name is its base name and the test name.
	Dir  string
	Name string

	// Truth is nil until Load succeeds.
	Truth *Truth
}

// Load reads the entry's truth file.
func (s *TestSource) Load() error {
	t, err := truth.Load(s.Dir)
	if err != nil {
		return err
	}
	s.Truth = t
	return nil
}

// DiscoverSources lists the entries of the corpus at root without reading
// their truth files. Entries are the immediate subdirectories of root, in
// lexical order.
func DiscoverSources(root string) ([]*TestSource, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &evalerr.IOError{Op: "read directory", Path: root, Err: err}
	}
	var sources []*TestSource
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sources = append(sources, &TestSource{
			Dir:  filepath.Join(root, entry.Name()),
			Name: entry.Name(),
		})
	}
	return sources, nil
}

// AllSources lists the entries of the corpus at root and loads every truth
// file. The first entry that fails to load fails the whole call.
func AllSources(root string) ([]*TestSource, error) {
	sources, err := DiscoverSources(root)
	if err != nil {
		return nil, err
	}
	for _, s := range sources {
		if err := s.Load(); err != nil {
			return nil, &evalerr.EntryError{Name: s.Name, Err: err}
		}
	}
	return sources, nil
}
