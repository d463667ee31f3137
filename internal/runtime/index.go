package runtime

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/jward/compeval/internal/store"
)

// Index builtins take a single map because scripts cannot build Go structs.
// Optional keys may be left out or set to nil.

// addSymbolBuiltin is add_symbol({file_id, name, kind, start_byte, end_byte,
// [visibility], [scope_start, scope_end], [parent_symbol_id]}) -> id.
// Visibility defaults to the one implied by the name.
func addSymbolBuiltin(index *store.Store) *object.Builtin {
	return object.NewBuiltin("add_symbol", func(ctx context.Context, args ...object.Object) object.Object {
		row, errObj := rowArg("add_symbol", args)
		if errObj != nil {
			return errObj
		}
		sym := &store.Symbol{
			FileID:     row.id("file_id"),
			Name:       row.str("name"),
			Kind:       row.str("kind"),
			Visibility: row.str("visibility"),
			StartByte:  row.offset("start_byte"),
			EndByte:    row.offset("end_byte"),
		}
		if sym.Name == "" || sym.Kind == "" {
			return object.Errorf("add_symbol: name and kind are required")
		}
		start, hasStart := row.num("scope_start")
		end, hasEnd := row.num("scope_end")
		if hasStart != hasEnd {
			return object.Errorf("add_symbol: scope_start and scope_end go together")
		}
		if hasStart {
			s, e := int(start), int(end)
			sym.ScopeStart, sym.ScopeEnd = &s, &e
		}
		if parent, ok := row.num("parent_symbol_id"); ok {
			sym.ParentSymbolID = &parent
		}

		id, err := index.InsertSymbol(sym)
		if err != nil {
			return object.Errorf("add_symbol: %v", err)
		}
		return object.NewInt(id)
	})
}

// addImportBuiltin is add_import({file_id, source, [kind], [imported_name],
// [local_alias], start_byte, end_byte}) -> id. Kind defaults to a plain
// module import.
func addImportBuiltin(index *store.Store) *object.Builtin {
	return object.NewBuiltin("add_import", func(ctx context.Context, args ...object.Object) object.Object {
		row, errObj := rowArg("add_import", args)
		if errObj != nil {
			return errObj
		}
		imp := &store.Import{
			FileID:    row.id("file_id"),
			Source:    row.str("source"),
			Kind:      row.str("kind"),
			StartByte: row.offset("start_byte"),
			EndByte:   row.offset("end_byte"),
		}
		switch imp.Kind {
		case "":
			imp.Kind = store.ImportModule
		case store.ImportModule, store.ImportFrom, store.ImportWildcard:
		default:
			return object.Errorf("add_import: unknown kind %q", imp.Kind)
		}
		if name := row.str("imported_name"); name != "" {
			imp.ImportedName = &name
		}
		if alias := row.str("local_alias"); alias != "" {
			imp.LocalAlias = &alias
		}

		id, err := index.InsertImport(imp)
		if err != nil {
			return object.Errorf("add_import: %v", err)
		}
		return object.NewInt(id)
	})
}

// row is the map argument of an index builtin.
type row map[string]object.Object

func rowArg(fn string, args []object.Object) (row, object.Object) {
	if len(args) != 1 {
		return nil, object.NewArgsError(fn, 1, len(args))
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, object.Errorf("%s: expected a map, got %s", fn, args[0].Type())
	}
	return row(m.Value()), nil
}

func (r row) str(key string) string {
	if s, ok := r[key].(*object.String); ok {
		return s.Value()
	}
	return ""
}

// num reads an integer key. Floats are truncated, since Risor arithmetic
// may produce them.
func (r row) num(key string) (int64, bool) {
	switch v := r[key].(type) {
	case *object.Int:
		return v.Value(), true
	case *object.Float:
		return int64(v.Value()), true
	}
	return 0, false
}

func (r row) id(key string) int64 {
	v, _ := r.num(key)
	return v
}

func (r row) offset(key string) int {
	v, _ := r.num(key)
	return int(v)
}
