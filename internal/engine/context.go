package engine

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/compeval/internal/runtime"
)

// cursorContext is what the completion query needs to know about the source
// around an offset.
type cursorContext struct {
	// suppressed is set inside comments and string literals.
	suppressed bool

	// prefix is the partial identifier ending at the offset.
	prefix string

	// scopeOffset is the offset used to decide which function scopes
	// enclose the cursor.
	scopeOffset int

	// attribute is set when the prefix follows a '.'. receiver is the
	// dotted name before the dot, empty when it is not a plain name.
	attribute bool
	receiver  string

	// className is the class whose method encloses the offset, and selfName
	// that method's first parameter.
	className string
	selfName  string

	// importOffset is where an added import line goes. importNewline is set
	// when that position is the end of a file with no trailing newline.
	importOffset  int
	importNewline bool
}

// analyze parses src and describes the position offset within it. It
// tolerates syntax errors; partially typed code is the normal case.
func analyze(ctx context.Context, src []byte, offset int) (*cursorContext, error) {
	lang, _ := runtime.Grammar(runtime.Python)
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("engine: parse: %w", err)
	}
	defer tree.Close()
	root := tree.RootNode()

	cc := &cursorContext{}
	if inCommentOrString(src, offset) {
		cc.suppressed = true
		return cc, nil
	}
	path := pathAt(root, uint32(offset))

	start := offset
	for start > 0 && isIdentByte(src[start-1]) {
		start--
	}
	cc.prefix = string(src[start:offset])
	cc.scopeOffset = scopeOffset(src, offset)

	if start > 0 && src[start-1] == '.' {
		cc.attribute = true
		end := start - 1
		r := end
		for r > 0 && (isIdentByte(src[r-1]) || src[r-1] == '.') {
			r--
		}
		cc.receiver = string(bytes.Trim(src[r:end], "."))
	}

	cc.className, cc.selfName = enclosingMethod(path, src)
	cc.importOffset, cc.importNewline = importInsertion(root, src)
	return cc, nil
}

// pathAt returns the chain of nodes from root down to the deepest node whose
// range contains offset. A node ending exactly at offset counts as
// containing it, so the token just typed is found.
func pathAt(root *sitter.Node, offset uint32) []*sitter.Node {
	path := []*sitter.Node{root}
	n := root
	for {
		var next *sitter.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.StartByte() < offset && offset <= c.EndByte() {
				next = c
				break
			}
		}
		if next == nil {
			return path
		}
		path = append(path, next)
		n = next
	}
}

// literal is an open string on the scanner stack. A literal with no quote is
// an f-string interpolation, whose contents are code.
type literal struct {
	quote  byte
	triple bool
	format bool
	braces int
}

// inCommentOrString reports whether offset sits inside a comment or a string
// literal, including one not closed yet. Tree-sitter folds an unterminated
// string into an ERROR node, so src is scanned lexically up to offset.
// Expressions interpolated into an f-string are code.
func inCommentOrString(src []byte, offset int) bool {
	var stack []*literal
	i := 0
	for i < offset {
		c := src[i]
		var top *literal
		if n := len(stack); n > 0 {
			top = stack[n-1]
		}

		if top != nil && top.quote != 0 {
			switch {
			case c == '\\':
				i += 2
			case top.format && c == '{' && i+1 < len(src) && src[i+1] == '{':
				i += 2
			case top.format && c == '{':
				stack = append(stack, &literal{})
				i++
			case c == top.quote && (!top.triple || closesTriple(src, i, c)):
				stack = stack[:len(stack)-1]
				if top.triple {
					i += 3
				} else {
					i++
				}
			case c == '\n' && !top.triple:
				stack = stack[:len(stack)-1]
				i++
			default:
				i++
			}
			continue
		}

		switch {
		case c == '#' && top == nil:
			nl := bytes.IndexByte(src[i:], '\n')
			if nl < 0 || i+nl >= offset {
				return true
			}
			i += nl
		case c == '"' || c == '\'':
			lit := &literal{quote: c, format: isFormatPrefix(src, i)}
			if closesTriple(src, i, c) {
				lit.triple = true
				i += 3
			} else {
				i++
			}
			stack = append(stack, lit)
		case top != nil && c == '{':
			top.braces++
			i++
		case top != nil && c == '}':
			if top.braces == 0 {
				stack = stack[:len(stack)-1]
			} else {
				top.braces--
			}
			i++
		default:
			i++
		}
	}
	return len(stack) > 0 && stack[len(stack)-1].quote != 0
}

func closesTriple(src []byte, i int, q byte) bool {
	return i+2 < len(src) && src[i+1] == q && src[i+2] == q
}

// isFormatPrefix reports whether the quote at i is preceded by a string
// prefix containing f, such as f, rf or Fr.
func isFormatPrefix(src []byte, i int) bool {
	k := i
	for k > 0 && i-k < 2 && bytes.IndexByte([]byte("rRbBfFuU"), src[k-1]) >= 0 {
		k--
	}
	if k > 0 && isIdentByte(src[k-1]) {
		return false
	}
	return bytes.ContainsAny(src[k:i], "fF")
}

// scopeOffset moves offset back over trailing blanks when the cursor follows
// code on its line, or sits on an indented blank line. A function's range
// ends at its last token, so "return |" and an indented empty line below the
// body are otherwise outside it.
func scopeOffset(src []byte, offset int) int {
	q := offset
	for q > 0 && (src[q-1] == ' ' || src[q-1] == '\t') {
		q--
	}
	if q == offset || (q > 0 && src[q-1] != '\n') {
		return q
	}
	for q > 0 && (src[q-1] == ' ' || src[q-1] == '\t' || src[q-1] == '\n' || src[q-1] == '\r') {
		q--
	}
	return q
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 0x80 ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// enclosingMethod finds the innermost function on path and, when it is
// defined directly in a class body, returns the class name and the
// function's first parameter.
func enclosingMethod(path []*sitter.Node, src []byte) (className, selfName string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].Type() != "function_definition" {
			continue
		}
		fn := path[i]
		cls := fn.Parent()
		for cls != nil && (cls.Type() == "decorated_definition" || cls.Type() == "block") {
			cls = cls.Parent()
		}
		if cls == nil || cls.Type() != "class_definition" {
			return "", ""
		}
		if name := cls.ChildByFieldName("name"); name != nil {
			className = name.Content(src)
		}
		if params := fn.ChildByFieldName("parameters"); params != nil && params.NamedChildCount() > 0 {
			if p := params.NamedChild(0); p.Type() == "identifier" {
				selfName = p.Content(src)
			} else if p.Type() == "typed_parameter" && p.NamedChildCount() > 0 {
				selfName = p.NamedChild(0).Content(src)
			}
		}
		return className, selfName
	}
	return "", ""
}

// importInsertion returns the offset of the line after the module's leading
// run of imports, or after its docstring when it has no imports, or 0.
func importInsertion(root *sitter.Node, src []byte) (int, bool) {
	after := -1
	first := true
	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Type() {
		case "comment":
			continue
		case "import_statement", "import_from_statement", "future_import_statement":
			after = int(stmt.EndByte())
			first = false
			continue
		case "expression_statement":
			if first && stmt.NamedChildCount() == 1 && stmt.NamedChild(0).Type() == "string" {
				first = false
				after = int(stmt.EndByte())
				continue
			}
		}
		break
	}
	if after < 0 {
		return 0, false
	}
	nl := bytes.IndexByte(src[after:], '\n')
	if nl < 0 {
		return len(src), true
	}
	return after + nl + 1, false
}
