package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// PyProjectFile is the project configuration file read by Discover.
const PyProjectFile = "pyproject.toml"

// Metadata describes a Python project: where it lives, how it is configured,
// and, after ApplyConfigurationFiles, which directories are indexed.
type Metadata struct {
	Root string
	Name string

	// Src and ExtraPaths are the configured values, relative to Root unless
	// absolute.
	Src        []string
	ExtraPaths []string

	// SourceRoots hold first-party code, SearchPaths third-party code. Both
	// are absolute and only contain existing directories.
	SourceRoots []string
	SearchPaths []string
}

type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Compeval struct {
			Src        []string `toml:"src"`
			ExtraPaths []string `toml:"extra-paths"`
		} `toml:"compeval"`
	} `toml:"tool"`
}

// Discover reads the project rooted at root. A missing pyproject.toml yields
// default metadata; a malformed one is an error.
func Discover(root string) (*Metadata, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("engine: resolve root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("engine: project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("engine: project root %s is not a directory", abs)
	}

	meta := &Metadata{Root: abs}
	path := filepath.Join(abs, PyProjectFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", path, err)
	}

	var pp pyproject
	if err := toml.Unmarshal(data, &pp); err != nil {
		return nil, fmt.Errorf("engine: parse %s: %w", path, err)
	}
	meta.Name = pp.Project.Name
	meta.Src = pp.Tool.Compeval.Src
	meta.ExtraPaths = pp.Tool.Compeval.ExtraPaths
	return meta, nil
}

// ApplyConfigurationFiles computes SourceRoots and SearchPaths.
//
// Source roots are the configured src directories, or Root/src (when it
// exists) followed by Root. Search paths are the configured extra paths
// followed by the project virtualenv's site-packages.
func (m *Metadata) ApplyConfigurationFiles() error {
	m.SourceRoots = nil
	m.SearchPaths = nil

	if len(m.Src) > 0 {
		for _, src := range m.Src {
			dir := m.abs(src)
			if !isDir(dir) {
				return fmt.Errorf("engine: configured source root %s does not exist", dir)
			}
			m.SourceRoots = appendUnique(m.SourceRoots, dir)
		}
	} else {
		if src := filepath.Join(m.Root, "src"); isDir(src) {
			m.SourceRoots = append(m.SourceRoots, src)
		}
		m.SourceRoots = appendUnique(m.SourceRoots, m.Root)
	}

	for _, p := range m.ExtraPaths {
		if dir := m.abs(p); isDir(dir) {
			m.SearchPaths = appendUnique(m.SearchPaths, dir)
		}
	}
	venv := filepath.Join(m.Root, ".venv")
	sitePackages, _ := filepath.Glob(filepath.Join(venv, "lib", "python*", "site-packages"))
	sort.Strings(sitePackages)
	sitePackages = append(sitePackages, filepath.Join(venv, "Lib", "site-packages"))
	for _, dir := range sitePackages {
		if isDir(dir) {
			m.SearchPaths = appendUnique(m.SearchPaths, dir)
		}
	}
	return nil
}

func (m *Metadata) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(m.Root, p)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
