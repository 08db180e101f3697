package pyscan

import (
	"context"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"pyclean/internal/parser"
)

// maxStringDepth bounds recursion into nested-quoted annotations like
// "List['Foo']".
const maxStringDepth = 5

var typeCommentRe = regexp.MustCompile(`^#\s*type:\s*(.+?)\s*$`)

// Scan inventories every syntactic use of a name under root, excluding the
// import statements themselves. The search is flat and file-granular by
// design: no lexical scoping is applied.
func Scan(ctx context.Context, root *sitter.Node, source []byte) *Usage {
	s := &scanner{ctx: ctx, source: source, usage: NewUsage()}
	s.walk(root, FormDirect, 0)

	exports := CollectExports(root, source)
	s.usage.ExportsDeclared = exports.Declared()
	s.usage.ExportsUnresolvable = !exports.Resolvable()
	for name := range exports.Resolve() {
		s.usage.addName(name, FormExportEntry, 0, 0)
	}

	return s.usage
}

type scanner struct {
	ctx    context.Context
	source []byte
	usage  *Usage
}

func (s *scanner) walk(n *sitter.Node, form UsageForm, depth int) {
	if n == nil {
		return
	}

	switch n.Type() {
	case parser.TypeImport, parser.TypeImportFrom, parser.TypeFutureImport:
		// Imports bind names; they do not use them.
		return
	case parser.TypeIdentifier:
		s.recordIdentifier(n, form)
		return
	case parser.TypeComment:
		s.scanTypeComment(n, depth)
		return
	case parser.TypeString, parser.TypeConcatenatedString:
		// Inside a re-parsed fragment a string is a nested quoted type,
		// as in "List['Inner']".
		if form != FormDirect {
			if value, ok := parser.StringLiteralValue(n, s.source); ok {
				s.parseFragment(value, form, depth+1)
			}
			return
		}
	case parser.TypeCall:
		s.scanCall(n, depth)
	case parser.TypeClassDef:
		s.scanGenericBases(n, depth)
	case parser.TypeAssignment, parser.TypeFunctionDef, parser.TypeTypedParameter, parser.TypeTypedDefault:
		s.scanAnnotation(n, depth)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.walk(n.NamedChild(i), form, depth)
	}
}

// recordIdentifier classifies one identifier occurrence. Binding positions
// (parameter names, def/class names, keyword-argument names) are not uses.
func (s *scanner) recordIdentifier(n *sitter.Node, form UsageForm) {
	parent := n.Parent()
	if parent == nil {
		s.usage.addName(parser.Text(n, s.source), form, n.StartByte(), n.EndByte())
		return
	}

	switch parent.Type() {
	case parser.TypeAttribute:
		if attr := parent.ChildByFieldName("attribute"); attr != nil && sameNode(attr, n) {
			s.usage.addAttr(parser.Text(n, s.source), n.StartByte(), n.EndByte())
			return
		}
	case parser.TypeKeywordArgument, parser.TypeFunctionDef, parser.TypeClassDef:
		if name := parent.ChildByFieldName("name"); name != nil && sameNode(name, n) {
			return
		}
	case "parameters", "lambda_parameters":
		return
	case "default_parameter":
		if name := parent.ChildByFieldName("name"); name != nil && sameNode(name, n) {
			return
		}
	case parser.TypeTypedParameter:
		if t := parent.ChildByFieldName("type"); t == nil || !within(n, t) {
			return
		}
	case parser.TypeTypedDefault:
		if name := parent.ChildByFieldName("name"); name != nil && sameNode(name, n) {
			return
		}
	case parser.TypeGlobal, "nonlocal_statement":
		return
	}

	s.usage.addName(parser.Text(n, s.source), form, n.StartByte(), n.EndByte())
}

// scanAnnotation re-parses string-valued type annotations as expression
// fragments, so `x: "models.User"` counts as a use of models.
func (s *scanner) scanAnnotation(n *sitter.Node, depth int) {
	var annotation *sitter.Node
	switch n.Type() {
	case parser.TypeAssignment, parser.TypeTypedParameter, parser.TypeTypedDefault:
		annotation = n.ChildByFieldName("type")
	case parser.TypeFunctionDef:
		annotation = n.ChildByFieldName("return_type")
	}
	if annotation == nil {
		return
	}

	s.scanStringExpr(annotation, FormQuotedAnnotation, depth)
}

// scanStringExpr walks an expression looking for string literals to
// re-parse. Non-string parts of the expression are covered by the normal
// identifier walk.
func (s *scanner) scanStringExpr(n *sitter.Node, form UsageForm, depth int) {
	if n == nil || depth > maxStringDepth {
		return
	}

	switch n.Type() {
	case parser.TypeString, parser.TypeConcatenatedString:
		if value, ok := parser.StringLiteralValue(n, s.source); ok {
			s.parseFragment(value, form, depth+1)
		}
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		s.scanStringExpr(n.NamedChild(i), form, depth)
	}
}

// parseFragment parses text as an expression fragment and records every
// identifier in it. Unparsable fragments are ignored.
func (s *scanner) parseFragment(text string, form UsageForm, depth int) {
	if strings.TrimSpace(text) == "" {
		return
	}

	fragment := []byte(text)
	root, err := parser.ParseFragment(s.ctx, fragment)
	if err != nil {
		return
	}

	// Node offsets inside the fragment tree index the fragment bytes, not
	// the enclosing file.
	sub := &scanner{ctx: s.ctx, source: fragment, usage: s.usage}
	sub.walk(root, form, depth)
}

// scanCall handles the recognized typing calls whose string arguments are
// really type expressions: cast("T", v) and TypeVar("T", bound="U").
func (s *scanner) scanCall(n *sitter.Node, depth int) {
	name := parser.CallName(n, s.source)
	args := n.ChildByFieldName("arguments")
	if name == "" || args == nil {
		return
	}

	switch {
	case name == "cast" || strings.HasSuffix(name, ".cast"):
		if first := firstPositional(args); first != nil {
			s.scanStringExpr(first, FormCastLiteral, depth)
		}
	case name == "TypeVar" || strings.HasSuffix(name, ".TypeVar"):
		s.scanTypeVarArgs(args, depth)
	}
}

// scanTypeVarArgs records constraint strings (positional after the name)
// and the bound= keyword of a TypeVar declaration.
func (s *scanner) scanTypeVarArgs(args *sitter.Node, depth int) {
	positional := 0
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		if child.Type() == parser.TypeComment {
			continue
		}
		if child.Type() == parser.TypeKeywordArgument {
			key := parser.Text(child.ChildByFieldName("name"), s.source)
			if key == "bound" {
				s.scanStringExpr(child.ChildByFieldName("value"), FormTypeVarLiteral, depth)
			}
			continue
		}
		positional++
		if positional > 1 {
			// The first positional is the variable's own name.
			s.scanStringExpr(child, FormTypeVarLiteral, depth)
		}
	}
}

func firstPositional(args *sitter.Node) *sitter.Node {
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		switch child.Type() {
		case parser.TypeKeywordArgument, parser.TypeComment:
			continue
		}
		return child
	}
	return nil
}

// Generic base classes whose subscript strings are type expressions.
var genericBases = map[string]struct{}{
	"Generic":  {},
	"Protocol": {},
}

// scanGenericBases records strings inside Generic[...] / Protocol[...]
// superclass subscripts.
func (s *scanner) scanGenericBases(classDef *sitter.Node, depth int) {
	supers := classDef.ChildByFieldName("superclasses")
	if supers == nil {
		return
	}

	for i := 0; i < int(supers.NamedChildCount()); i++ {
		sub := supers.NamedChild(i)
		if sub.Type() != parser.TypeSubscript {
			continue
		}
		base := parser.Text(sub.ChildByFieldName("value"), s.source)
		if !isGenericBase(base) {
			continue
		}
		for j := 0; j < int(sub.NamedChildCount()); j++ {
			child := sub.NamedChild(j)
			if v := sub.ChildByFieldName("value"); v != nil && sameNode(v, child) {
				continue
			}
			s.scanStringExpr(child, FormGenericBase, depth)
		}
	}
}

func isGenericBase(name string) bool {
	if _, ok := genericBases[name]; ok {
		return true
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		_, ok := genericBases[name[i+1:]]
		return ok
	}
	return false
}

// scanTypeComment parses `# type: ...` comments, both trailing variable
// comments and signature-level `(args) -> ret` forms. `# type: ignore` is
// not a type expression.
func (s *scanner) scanTypeComment(n *sitter.Node, depth int) {
	m := typeCommentRe.FindStringSubmatch(parser.Text(n, s.source))
	if m == nil {
		return
	}
	expr := m[1]
	if strings.HasPrefix(expr, "ignore") {
		return
	}

	if left, right, ok := strings.Cut(expr, "->"); ok {
		s.parseFragment(strings.TrimSpace(left), FormTypeComment, depth)
		s.parseFragment(strings.TrimSpace(right), FormTypeComment, depth)
		return
	}
	s.parseFragment(expr, FormTypeComment, depth)
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func within(n, outer *sitter.Node) bool {
	return n.StartByte() >= outer.StartByte() && n.EndByte() <= outer.EndByte()
}
