package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jward/compeval/internal/store"
)

// TextSize is a byte offset into a file.
type TextSize uint32

// Settings control a completion query.
type Settings struct {
	// AutoImport adds public names from modules the file has not imported,
	// each carrying the import that makes it valid.
	AutoImport bool `json:"auto_import"`
}

// Completion is one candidate.
type Completion struct {
	Name   string      `json:"name"`
	Kind   string      `json:"kind,omitempty"`
	Module string      `json:"module,omitempty"`
	Import *ImportEdit `json:"import,omitempty"`
}

// ImportEdit is text to insert into the file for a completion to resolve.
type ImportEdit struct {
	Content string   `json:"content"`
	Offset  TextSize `json:"offset"`
}

// Completion kinds that do not come from the index.
const (
	KindBuiltin = "builtin"
	KindModule  = "module"
	KindImport  = "import"
	KindMember  = "member"
)

// candidate is a Completion before filtering and ranking.
type candidate struct {
	Completion
	autoImport bool
}

// Complete returns the completions at offset in file, ranked best first.
func (e *Engine) Complete(ctx context.Context, settings Settings, file *store.File, offset TextSize) ([]Completion, error) {
	src, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", file.Path, err)
	}
	if int(offset) > len(src) {
		return nil, fmt.Errorf("engine: offset %d is past the end of %s (%d bytes)", offset, file.Path, len(src))
	}

	cc, err := analyze(ctx, src, int(offset))
	if err != nil {
		return nil, err
	}
	if cc.suppressed || startsWithDigit(cc.prefix) {
		return nil, nil
	}

	var cands []candidate
	if cc.attribute {
		cands, err = e.attributeCandidates(file, int(offset), cc)
	} else {
		cands, err = e.scopeCandidates(settings, file, cc)
	}
	if err != nil {
		return nil, err
	}

	out := rank(cands, cc.prefix)
	e.logger.Debug("completions",
		zap.String("file", file.Path),
		zap.Uint32("offset", uint32(offset)),
		zap.String("prefix", cc.prefix),
		zap.Bool("attribute", cc.attribute),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(out)),
	)
	return out, nil
}

// scopeCandidates returns every name usable bare at offset.
func (e *Engine) scopeCandidates(settings Settings, file *store.File, cc *cursorContext) ([]candidate, error) {
	var cands []candidate
	add := func(name, kind, module string) {
		cands = append(cands, candidate{Completion: Completion{Name: name, Kind: kind, Module: module}})
	}

	syms, err := e.store.VisibleSymbols(file.ID, cc.scopeOffset)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	for _, s := range syms {
		add(s.Name, s.Kind, file.Module)
	}

	imports, err := e.store.ImportsByFile(file.ID)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	for _, imp := range imports {
		switch imp.Kind {
		case store.ImportModule:
			if imp.LocalAlias != nil {
				add(*imp.LocalAlias, KindModule, imp.Source)
			} else {
				head, _, _ := strings.Cut(imp.Source, ".")
				add(head, KindModule, head)
			}
		case store.ImportFrom:
			if imp.ImportedName == nil {
				continue
			}
			source := resolveModule(file, imp.Source)
			name := *imp.ImportedName
			if imp.LocalAlias != nil {
				name = *imp.LocalAlias
			}
			kind, err := e.kindIn(source, *imp.ImportedName)
			if err != nil {
				return nil, err
			}
			add(name, kind, source)
		case store.ImportWildcard:
			source := resolveModule(file, imp.Source)
			syms, err := e.store.ModuleSymbols(source)
			if err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}
			for _, s := range syms {
				if s.Visibility == store.VisibilityPublic {
					add(s.Name, s.Kind, s.Module)
				}
			}
		}
	}

	for _, name := range builtins {
		add(name, KindBuiltin, "builtins")
	}

	if !settings.AutoImport {
		return cands, nil
	}
	inScope := make(map[string]bool, len(cands))
	for _, c := range cands {
		inScope[c.Name] = true
	}
	exported, err := e.store.ExportedSymbols(file.Module)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	for _, s := range exported {
		if inScope[s.Name] {
			continue
		}
		content := fmt.Sprintf("from %s import %s\n", s.Module, s.Name)
		if cc.importNewline {
			content = "\n" + content
		}
		cands = append(cands, candidate{
			Completion: Completion{
				Name:   s.Name,
				Kind:   s.Kind,
				Module: s.Module,
				Import: &ImportEdit{Content: content, Offset: TextSize(cc.importOffset)},
			},
			autoImport: true,
		})
	}
	return cands, nil
}

// kindIn returns the kind of name as defined at the top level of module, or
// KindModule when it names a submodule. Names the index cannot find are
// KindImport.
func (e *Engine) kindIn(module, name string) (string, error) {
	syms, err := e.store.ModuleSymbols(module)
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}
	for _, s := range syms {
		if s.Name == name {
			return s.Kind, nil
		}
	}
	files, err := e.store.FilesByModule(joinModule(module, name))
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}
	if len(files) > 0 {
		return KindModule, nil
	}
	return KindImport, nil
}

// attributeCandidates returns the names reachable as receiver.<name>.
func (e *Engine) attributeCandidates(file *store.File, offset int, cc *cursorContext) ([]candidate, error) {
	if startsWithDigit(cc.receiver) {
		return nil, nil
	}
	if cc.receiver == "" {
		return e.memberCandidates()
	}

	module, classID, err := e.resolveReceiver(file, offset, cc)
	if err != nil {
		return nil, err
	}
	switch {
	case module != "":
		return e.moduleCandidates(module)
	case classID != 0:
		return e.classCandidates(classID)
	default:
		return e.memberCandidates()
	}
}

// resolveReceiver determines whether receiver names a module or a class.
// Both results are zero when it names neither, or something the index
// cannot follow.
func (e *Engine) resolveReceiver(file *store.File, offset int, cc *cursorContext) (module string, classID int64, err error) {
	receiver := cc.receiver
	head, rest, _ := strings.Cut(receiver, ".")

	imports, err := e.store.ImportsByFile(file.ID)
	if err != nil {
		return "", 0, fmt.Errorf("engine: %w", err)
	}
	for _, imp := range imports {
		switch imp.Kind {
		case store.ImportModule:
			if imp.LocalAlias != nil {
				if *imp.LocalAlias == head {
					return joinModule(imp.Source, rest), 0, nil
				}
			} else if imp.Source == receiver || strings.HasPrefix(imp.Source, receiver+".") {
				return receiver, 0, nil
			}
		case store.ImportFrom:
			if imp.ImportedName == nil {
				continue
			}
			local := *imp.ImportedName
			if imp.LocalAlias != nil {
				local = *imp.LocalAlias
			}
			if local != head {
				continue
			}
			source := resolveModule(file, imp.Source)
			target := joinModule(source, *imp.ImportedName)
			if ok, err := e.isModule(target); err != nil {
				return "", 0, err
			} else if ok {
				return joinModule(target, rest), 0, nil
			}
			if rest == "" {
				id, err := e.classIn(source, *imp.ImportedName)
				return "", id, err
			}
		}
	}

	if receiver == cc.selfName && cc.className != "" {
		id, err := e.classInFile(file, cc.className, offset)
		return "", id, err
	}
	if rest == "" {
		syms, err := e.store.VisibleSymbols(file.ID, offset)
		if err != nil {
			return "", 0, fmt.Errorf("engine: %w", err)
		}
		for _, s := range syms {
			if s.Name == receiver && s.Kind == store.KindClass {
				classID = s.ID
			}
		}
		if classID != 0 {
			return "", classID, nil
		}
		// Inside a method the tree may be too broken to find the class;
		// fall back to the nearest class defined above the cursor.
		if receiver == "self" {
			id, err := e.classInFile(file, "", offset)
			return "", id, err
		}
	}
	return "", 0, nil
}

func (e *Engine) isModule(module string) (bool, error) {
	files, err := e.store.FilesByModule(module)
	if err != nil {
		return false, fmt.Errorf("engine: %w", err)
	}
	return len(files) > 0, nil
}

// classIn returns the ID of the top-level class name in module, or 0.
func (e *Engine) classIn(module, name string) (int64, error) {
	syms, err := e.store.ModuleSymbols(module)
	if err != nil {
		return 0, fmt.Errorf("engine: %w", err)
	}
	for _, s := range syms {
		if s.Name == name && s.Kind == store.KindClass {
			return s.ID, nil
		}
	}
	return 0, nil
}

// classInFile returns the last class in file starting before offset, with
// the given name unless name is empty.
func (e *Engine) classInFile(file *store.File, name string, offset int) (int64, error) {
	syms, err := e.store.SymbolsByFile(file.ID)
	if err != nil {
		return 0, fmt.Errorf("engine: %w", err)
	}
	var id int64
	for _, s := range syms {
		if s.Kind != store.KindClass || s.StartByte >= offset {
			continue
		}
		if name == "" && s.ParentSymbolID != nil {
			continue
		}
		if name == "" || s.Name == name {
			id = s.ID
		}
	}
	return id, nil
}

func (e *Engine) moduleCandidates(module string) ([]candidate, error) {
	syms, err := e.store.ModuleSymbols(module)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	var cands []candidate
	for _, s := range syms {
		cands = append(cands, candidate{Completion: Completion{Name: s.Name, Kind: s.Kind, Module: s.Module}})
	}
	subs, err := e.store.Submodules(module)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	for _, name := range subs {
		cands = append(cands, candidate{Completion: Completion{Name: name, Kind: KindModule, Module: module + "." + name}})
	}
	return cands, nil
}

func (e *Engine) classCandidates(classID int64) ([]candidate, error) {
	children, err := e.store.SymbolChildren(classID)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	var module string
	if len(children) > 0 {
		f, err := e.store.FileByID(children[0].FileID)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		if f != nil {
			module = f.Module
		}
	}
	var cands []candidate
	for _, c := range children {
		cands = append(cands, candidate{Completion: Completion{Name: c.Name, Kind: c.Kind, Module: module}})
	}
	return cands, nil
}

func (e *Engine) memberCandidates() ([]candidate, error) {
	names, err := e.store.MemberNames()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	cands := make([]candidate, 0, len(names))
	for _, name := range names {
		cands = append(cands, candidate{Completion: Completion{Name: name, Kind: KindMember}})
	}
	return cands, nil
}

// resolveModule turns a possibly relative import source into an absolute
// module name as seen from file.
func resolveModule(file *store.File, source string) string {
	dots := len(source) - len(strings.TrimLeft(source, "."))
	if dots == 0 {
		return source
	}
	pkg := strings.Split(file.Module, ".")
	if file.Module == "" {
		pkg = nil
	}
	if !isPackageInit(file.Path) && len(pkg) > 0 {
		pkg = pkg[:len(pkg)-1]
	}
	for i := 1; i < dots && len(pkg) > 0; i++ {
		pkg = pkg[:len(pkg)-1]
	}
	return joinModule(strings.Join(pkg, "."), source[dots:])
}

func isPackageInit(path string) bool {
	base := path[strings.LastIndexAny(path, `/\`)+1:]
	return strings.HasPrefix(base, "__init__.")
}

func joinModule(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	}
	return parent + "." + child
}

func startsWithDigit(s string) bool {
	return s != "" && '0' <= s[0] && s[0] <= '9'
}

// rank filters cands to those matching prefix and orders them: prefix
// matches before other subsequence matches, names already in scope before
// ones needing an import, public before private before dunder, then by name.
// Duplicates of a (name, module) pair keep their best position.
func rank(cands []candidate, prefix string) []Completion {
	lower := strings.ToLower(prefix)
	type scored struct {
		candidate
		lowerName   string
		prefixMatch bool
		visibility  int
	}
	var matched []scored
	for _, c := range cands {
		ln := strings.ToLower(c.Name)
		if !isSubsequence(lower, ln) {
			continue
		}
		matched = append(matched, scored{
			candidate:   c,
			lowerName:   ln,
			prefixMatch: strings.HasPrefix(ln, lower),
			visibility:  visibilityRank(c.Name),
		})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.prefixMatch != b.prefixMatch {
			return a.prefixMatch
		}
		if a.autoImport != b.autoImport {
			return !a.autoImport
		}
		if a.visibility != b.visibility {
			return a.visibility < b.visibility
		}
		if a.lowerName != b.lowerName {
			return a.lowerName < b.lowerName
		}
		return a.Name < b.Name
	})

	type key struct{ name, module string }
	seen := make(map[key]bool, len(matched))
	out := make([]Completion, 0, len(matched))
	for _, m := range matched {
		k := key{m.Name, m.Module}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m.Completion)
	}
	return out
}

func isSubsequence(needle, haystack string) bool {
	i := 0
	for j := 0; j < len(haystack) && i < len(needle); j++ {
		if haystack[j] == needle[i] {
			i++
		}
	}
	return i == len(needle)
}

func visibilityRank(name string) int {
	switch store.VisibilityOf(name) {
	case store.VisibilityPublic:
		return 0
	case store.VisibilityPrivate:
		return 1
	default:
		return 2
	}
}
