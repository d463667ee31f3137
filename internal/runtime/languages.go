package runtime

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Python is the language recorded for .py and .pyi files, which share a
// grammar and an extraction script.
const Python = "python"

// LanguageForFile reports the language of path from its extension.
func LanguageForFile(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyi":
		return Python, true
	}
	return "", false
}

// Grammar returns the tree-sitter grammar for lang.
func Grammar(lang string) (*sitter.Language, bool) {
	if lang != Python {
		return nil, false
	}
	return python.GetLanguage(), true
}
