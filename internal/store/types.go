package store

import "time"

type File struct {
	ID          int64
	Path        string
	Module      string
	Language    string
	Hash        string
	ThirdParty  bool
	LastIndexed time.Time
}

// Symbol is a name bound in a file. ScopeStart and ScopeEnd bound the byte
// range the name is visible in; nil means module scope.
type Symbol struct {
	ID             int64
	FileID         int64
	Name           string
	Kind           string
	Visibility     string
	StartByte      int
	EndByte        int
	ScopeStart     *int
	ScopeEnd       *int
	ParentSymbolID *int64
}

// ModuleSymbol is a Symbol together with the module of its file.
type ModuleSymbol struct {
	Symbol
	Module string
}

type Import struct {
	ID           int64
	FileID       int64
	Source       string
	ImportedName *string
	LocalAlias   *string
	Kind         string
	StartByte    int
	EndByte      int
}

// Symbol kinds written by the extraction script.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindVariable  = "variable"
	KindParameter = "parameter"
	KindMethod    = "method"
	KindAttribute = "attribute"
)

// Import kinds: `import a.b [as c]`, `from a import b [as c]` and
// `from a import *`.
const (
	ImportModule   = "module"
	ImportFrom     = "from"
	ImportWildcard = "wildcard"
)

// Visibility of a name, derived from its leading underscores.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityDunder  = "dunder"
)
