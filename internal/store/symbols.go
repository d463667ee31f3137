package store

import (
	"fmt"
)

// --- Symbol operations ---

// InsertSymbol stores sym. An empty Visibility is derived from the name.
func (s *Store) InsertSymbol(sym *Symbol) (int64, error) {
	if sym.Visibility == "" {
		sym.Visibility = VisibilityOf(sym.Name)
	}
	res, err := s.db.Exec(
		`INSERT INTO symbols (file_id, name, kind, visibility, start_byte, end_byte,
			scope_start, scope_end, parent_symbol_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sym.FileID, sym.Name, sym.Kind, sym.Visibility, sym.StartByte, sym.EndByte,
		sym.ScopeStart, sym.ScopeEnd, sym.ParentSymbolID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	sym.ID = id
	return id, nil
}

// symbolCols is the column list for symbol queries, qualified so it can be
// used in joins with files.
const symbolCols = `s.id, s.file_id, s.name, s.kind, s.visibility, s.start_byte, s.end_byte,
	s.scope_start, s.scope_end, s.parent_symbol_id`

func scanSymbol(scanner interface{ Scan(...any) error }, extra ...any) (*Symbol, error) {
	sym := &Symbol{}
	dest := []any{
		&sym.ID, &sym.FileID, &sym.Name, &sym.Kind, &sym.Visibility, &sym.StartByte, &sym.EndByte,
		&sym.ScopeStart, &sym.ScopeEnd, &sym.ParentSymbolID,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return sym, nil
}

func (s *Store) querySymbols(query string, args ...any) ([]*Symbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *Store) queryModuleSymbols(query string, args ...any) ([]*ModuleSymbol, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var symbols []*ModuleSymbol
	for rows.Next() {
		ms := &ModuleSymbol{}
		sym, err := scanSymbol(rows, &ms.Module)
		if err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		ms.Symbol = *sym
		symbols = append(symbols, ms)
	}
	return symbols, rows.Err()
}

func (s *Store) SymbolsByFile(fileID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols s WHERE s.file_id = ? ORDER BY s.start_byte, s.id", fileID)
}

func (s *Store) SymbolsByName(name string) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols s WHERE s.name = ?", name)
}

func (s *Store) SymbolChildren(symbolID int64) ([]*Symbol, error) {
	return s.querySymbols("SELECT "+symbolCols+" FROM symbols s WHERE s.parent_symbol_id = ? ORDER BY s.start_byte, s.id", symbolID)
}

// VisibleSymbols returns the symbols of a file that are in scope at offset:
// module-level names plus names of every function or class scope enclosing
// offset. Class members, nested classes included, are excluded; they are
// reached through attribute access.
func (s *Store) VisibleSymbols(fileID int64, offset int) ([]*Symbol, error) {
	return s.querySymbols(
		"SELECT "+symbolCols+` FROM symbols s
		 WHERE s.file_id = ?
		   AND s.kind NOT IN (`+placeholderList(len(memberKinds))+`)
		   AND s.parent_symbol_id IS NULL
		   AND (s.scope_start IS NULL OR (s.scope_start <= ? AND ? <= s.scope_end))
		 ORDER BY s.start_byte`,
		append(append([]any{fileID}, stringsToArgs(memberKinds)...), offset, offset)...,
	)
}

// ModuleSymbols returns the module-level symbols of every file implementing
// module.
func (s *Store) ModuleSymbols(module string) ([]*ModuleSymbol, error) {
	return s.queryModuleSymbols(
		"SELECT "+symbolCols+`, f.module FROM symbols s JOIN files f ON f.id = s.file_id
		 WHERE f.module = ? AND s.scope_start IS NULL AND s.parent_symbol_id IS NULL
		 ORDER BY f.third_party, s.name`,
		module,
	)
}

// ExportedSymbols returns public module-level symbols from every module
// except exclude, ordered by module then name. These are the candidates for
// completions that need an import.
func (s *Store) ExportedSymbols(exclude string) ([]*ModuleSymbol, error) {
	return s.queryModuleSymbols(
		"SELECT "+symbolCols+`, f.module FROM symbols s JOIN files f ON f.id = s.file_id
		 WHERE f.module != ? AND f.module != ''
		   AND s.scope_start IS NULL AND s.parent_symbol_id IS NULL
		   AND s.visibility = ?
		 ORDER BY f.third_party, f.module, s.name`,
		exclude, VisibilityPublic,
	)
}

// MemberNames returns every distinct method and attribute name in the index.
func (s *Store) MemberNames() ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT name FROM symbols WHERE kind IN ("+placeholderList(len(memberKinds))+") ORDER BY name",
		stringsToArgs(memberKinds)...,
	)
	if err != nil {
		return nil, fmt.Errorf("member names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan member name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// --- Import operations ---

func (s *Store) InsertImport(imp *Import) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO imports (file_id, source, imported_name, local_alias, kind, start_byte, end_byte)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		imp.FileID, imp.Source, imp.ImportedName, imp.LocalAlias, imp.Kind, imp.StartByte, imp.EndByte,
	)
	if err != nil {
		return 0, fmt.Errorf("insert import: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	imp.ID = id
	return id, nil
}

func (s *Store) ImportsByFile(fileID int64) ([]*Import, error) {
	rows, err := s.db.Query(
		`SELECT id, file_id, source, imported_name, local_alias, kind, start_byte, end_byte
		 FROM imports WHERE file_id = ? ORDER BY start_byte, id`, fileID,
	)
	if err != nil {
		return nil, fmt.Errorf("imports by file: %w", err)
	}
	defer rows.Close()
	var imports []*Import
	for rows.Next() {
		imp := &Import{}
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Source, &imp.ImportedName, &imp.LocalAlias,
			&imp.Kind, &imp.StartByte, &imp.EndByte); err != nil {
			return nil, fmt.Errorf("scan import: %w", err)
		}
		imports = append(imports, imp)
	}
	return imports, rows.Err()
}
