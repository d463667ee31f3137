package runtime

import (
	"context"
	"os"
	"sync"

	"github.com/risor-io/risor/object"
	sitter "github.com/smacker/go-tree-sitter"
)

// trees keeps the source of every tree parsed during a script run, keyed by
// root node, so node_text can slice it. Nodes do not link back to their
// tree, so lookups climb to the root first.
type trees struct {
	mu      sync.Mutex
	sources map[*sitter.Node][]byte
}

func newTrees() *trees {
	return &trees{sources: make(map[*sitter.Node][]byte)}
}

func (t *trees) add(tree *sitter.Tree, src []byte) {
	t.mu.Lock()
	t.sources[tree.RootNode()] = src
	t.mu.Unlock()
}

func (t *trees) source(n *sitter.Node) ([]byte, bool) {
	for n.Parent() != nil {
		n = n.Parent()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	src, ok := t.sources[n]
	return src, ok
}

// forget drops every remembered source.
func (t *trees) forget() {
	t.mu.Lock()
	clear(t.sources)
	t.mu.Unlock()
}

// parseBuiltin is parse(path) -> Tree. The grammar follows the file
// extension. Syntax errors still yield a tree.
func (t *trees) parseBuiltin() *object.Builtin {
	return object.NewBuiltin("parse", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse", 1, len(args))
		}
		p, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse: path must be a string, got %s", args[0].Type())
		}
		lang, ok := LanguageForFile(p.Value())
		if !ok {
			return object.Errorf("parse: no grammar for %s", p.Value())
		}
		grammar, _ := Grammar(lang)
		src, err := os.ReadFile(p.Value())
		if err != nil {
			return object.Errorf("parse: %v", err)
		}

		parser := sitter.NewParser()
		defer parser.Close()
		parser.SetLanguage(grammar)
		tree, err := parser.ParseCtx(ctx, nil, src)
		if err != nil {
			return object.Errorf("parse: %s: %v", p.Value(), err)
		}
		t.add(tree, src)
		return proxy("parse", tree)
	})
}

// textBuiltin is node_text(node) -> string. Scripts cannot hand the source
// bytes to Node.Content themselves.
func (t *trees) textBuiltin() *object.Builtin {
	return object.NewBuiltin("node_text", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("node_text", 1, len(args))
		}
		n, errObj := nodeArg("node_text", args[0])
		if errObj != nil {
			return errObj
		}
		src, ok := t.source(n)
		if !ok {
			return object.Errorf("node_text: node does not belong to a parsed tree")
		}
		return object.NewString(n.Content(src))
	})
}

// node_field(node, name) -> Node or nil. A missing field is Risor nil, not a
// proxied nil pointer.
var nodeFieldBuiltin = object.NewBuiltin("node_field", func(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 2 {
		return object.NewArgsError("node_field", 2, len(args))
	}
	n, errObj := nodeArg("node_field", args[0])
	if errObj != nil {
		return errObj
	}
	name, ok := args[1].(*object.String)
	if !ok {
		return object.Errorf("node_field: field name must be a string, got %s", args[1].Type())
	}
	child := n.ChildByFieldName(name.Value())
	if child == nil {
		return object.Nil
	}
	return proxy("node_field", child)
})

// node_children(node) -> [Node], the named children only.
var nodeChildrenBuiltin = object.NewBuiltin("node_children", func(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 1 {
		return object.NewArgsError("node_children", 1, len(args))
	}
	n, errObj := nodeArg("node_children", args[0])
	if errObj != nil {
		return errObj
	}
	count := int(n.NamedChildCount())
	items := make([]object.Object, 0, count)
	for i := range count {
		p := proxy("node_children", n.NamedChild(i))
		if _, failed := p.(*object.Error); failed {
			return p
		}
		items = append(items, p)
	}
	return object.NewList(items)
})

func nodeArg(fn string, arg object.Object) (*sitter.Node, object.Object) {
	p, ok := arg.(*object.Proxy)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %s", fn, arg.Type())
	}
	n, ok := p.Interface().(*sitter.Node)
	if !ok {
		return nil, object.Errorf("%s: expected a node, got %T", fn, p.Interface())
	}
	return n, nil
}

func proxy(fn string, v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("%s: %v", fn, err)
	}
	return p
}
