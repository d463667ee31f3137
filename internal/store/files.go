package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// --- File operations ---

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, module, language, hash, third_party, last_indexed) VALUES (?, ?, ?, ?, ?, ?)",
		f.Path, f.Module, f.Language, f.Hash, f.ThirdParty, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

const fileCols = "id, path, module, language, hash, third_party, last_indexed"

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Module, &f.Language, &f.Hash, &f.ThirdParty, &f.LastIndexed)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// FileByPath returns the file indexed at path, or nil if there is none.
func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

// FileByID returns the file with the given ID, or nil if there is none.
func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

// FilesByModule returns every file implementing module, first-party files
// first. A module can have both a .py and a .pyi file.
func (s *Store) FilesByModule(module string) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT "+fileCols+" FROM files WHERE module = ? ORDER BY third_party, path", module,
	)
	if err != nil {
		return nil, fmt.Errorf("files by module: %w", err)
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FileCount returns the number of indexed files.
func (s *Store) FileCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("file count: %w", err)
	}
	return n, nil
}

// Submodules returns the distinct names of modules directly below parent,
// without the parent prefix. "pkg" yields "mod" for "pkg.mod" but nothing
// for "pkg.mod.inner".
func (s *Store) Submodules(parent string) ([]string, error) {
	prefix := parent + "."
	rows, err := s.db.Query(
		"SELECT DISTINCT module FROM files WHERE substr(module, 1, ?) = ? ORDER BY module",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("submodules: %w", err)
	}
	defer rows.Close()
	seen := make(map[string]bool)
	var names []string
	for rows.Next() {
		var module string
		if err := rows.Scan(&module); err != nil {
			return nil, fmt.Errorf("scan module: %w", err)
		}
		name, _, _ := strings.Cut(module[len(prefix):], ".")
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, rows.Err()
}
