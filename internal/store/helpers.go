package store

import "strings"

// memberKinds are the kinds only reachable through attribute access.
var memberKinds = []string{KindMethod, KindAttribute}

// placeholderList returns "?,?,?" for n placeholders.
func placeholderList(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// stringsToArgs converts []string to []any for use with database/sql.
func stringsToArgs(ss []string) []any {
	args := make([]any, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

// VisibilityOf classifies a Python name by its leading underscores.
func VisibilityOf(name string) string {
	switch {
	case strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && len(name) > 4:
		return VisibilityDunder
	case strings.HasPrefix(name, "_"):
		return VisibilityPrivate
	default:
		return VisibilityPublic
	}
}
