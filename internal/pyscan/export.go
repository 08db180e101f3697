package pyscan

import (
	sitter "github.com/smacker/go-tree-sitter"

	"pyclean/internal/parser"
)

// ExportModel is the resolved shape of a file's __all__ list. Plain
// assignment replaces the working set (last write wins); augmented
// assignment, append and extend accumulate. Any contribution that is not a
// literal string collection makes the whole model unresolvable.
type ExportModel struct {
	ops        []exportOp
	seen       bool
	resolvable bool
}

type exportOp struct {
	replace bool
	names   []string
}

// CollectExports gathers every __all__ mutation under root in source order.
func CollectExports(root *sitter.Node, source []byte) *ExportModel {
	m := &ExportModel{resolvable: true}
	parser.Visit(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case parser.TypeAssignment:
			m.collectAssign(n, source)
		case parser.TypeAugmentedAssignment:
			m.collectAugAssign(n, source)
		case parser.TypeCall:
			m.collectCall(n, source)
		case parser.TypeImport, parser.TypeImportFrom, parser.TypeFutureImport:
			return false
		}
		return true
	})
	return m
}

// Declared reports whether the file mutates __all__ at all.
func (m *ExportModel) Declared() bool {
	return m.seen
}

// Resolvable reports whether every contribution was a literal string
// collection. An unresolvable model forces conservative handling of the
// whole file.
func (m *ExportModel) Resolvable() bool {
	return m.resolvable
}

// Resolve replays the mutations in order and returns the final export set.
func (m *ExportModel) Resolve() map[string]struct{} {
	names := make(map[string]struct{})
	for _, op := range m.ops {
		if op.replace {
			names = make(map[string]struct{}, len(op.names))
		}
		for _, name := range op.names {
			names[name] = struct{}{}
		}
	}
	return names
}

func (m *ExportModel) collectAssign(n *sitter.Node, source []byte) {
	if !isDunderAll(n.ChildByFieldName("left"), source) {
		return
	}
	m.seen = true
	m.add(exportOp{replace: true}, n.ChildByFieldName("right"), source)
}

func (m *ExportModel) collectAugAssign(n *sitter.Node, source []byte) {
	if !isDunderAll(n.ChildByFieldName("left"), source) {
		return
	}
	m.seen = true
	m.add(exportOp{}, n.ChildByFieldName("right"), source)
}

// collectCall handles __all__.append(x) and __all__.extend(xs).
func (m *ExportModel) collectCall(n *sitter.Node, source []byte) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != parser.TypeAttribute {
		return
	}
	if !isDunderAll(fn.ChildByFieldName("object"), source) {
		return
	}

	method := parser.Text(fn.ChildByFieldName("attribute"), source)
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	arg := args.NamedChild(0)

	switch method {
	case "append":
		m.seen = true
		if value, ok := parser.StringLiteralValue(arg, source); ok {
			m.ops = append(m.ops, exportOp{names: []string{value}})
		} else {
			m.resolvable = false
		}
	case "extend":
		m.seen = true
		m.add(exportOp{}, arg, source)
	}
}

func (m *ExportModel) add(op exportOp, value *sitter.Node, source []byte) {
	names, ok := literalNameList(value, source)
	if !ok {
		m.resolvable = false
		return
	}
	op.names = names
	m.ops = append(m.ops, op)
}

func isDunderAll(n *sitter.Node, source []byte) bool {
	return n != nil && n.Type() == parser.TypeIdentifier && parser.Text(n, source) == "__all__"
}

// literalNameList extracts the strings of a literal list/tuple/set
// expression. Anything else, including comprehensions and name references,
// is unresolvable.
func literalNameList(n *sitter.Node, source []byte) ([]string, bool) {
	if n == nil {
		return nil, false
	}

	switch n.Type() {
	case parser.TypeList, parser.TypeTuple, parser.TypeSet:
	default:
		return nil, false
	}

	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == parser.TypeComment {
			continue
		}
		value, ok := parser.StringLiteralValue(child, source)
		if !ok {
			return nil, false
		}
		names = append(names, value)
	}
	return names, true
}
