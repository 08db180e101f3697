package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Python grammar node types the cleaner consumes.
const (
	TypeModule              = "module"
	TypeImport              = "import_statement"
	TypeImportFrom          = "import_from_statement"
	TypeFutureImport        = "future_import_statement"
	TypeAliasedImport       = "aliased_import"
	TypeWildcardImport      = "wildcard_import"
	TypeDottedName          = "dotted_name"
	TypeRelativeImport      = "relative_import"
	TypeImportPrefix        = "import_prefix"
	TypeIdentifier          = "identifier"
	TypeAttribute           = "attribute"
	TypeComment             = "comment"
	TypeString              = "string"
	TypeConcatenatedString  = "concatenated_string"
	TypeCall                = "call"
	TypeSubscript           = "subscript"
	TypeAssignment          = "assignment"
	TypeAugmentedAssignment = "augmented_assignment"
	TypeExpressionStatement = "expression_statement"
	TypeTry                 = "try_statement"
	TypeExceptClause        = "except_clause"
	TypeElseClause          = "else_clause"
	TypeFinallyClause       = "finally_clause"
	TypeBlock               = "block"
	TypeTuple               = "tuple"
	TypeList                = "list"
	TypeSet                 = "set"
	TypeFunctionDef         = "function_definition"
	TypeClassDef            = "class_definition"
	TypeDecoratedDef        = "decorated_definition"
	TypeTypedParameter      = "typed_parameter"
	TypeTypedDefault        = "typed_default_parameter"
	TypeArgumentList        = "argument_list"
	TypeKeywordArgument     = "keyword_argument"
	TypePass                = "pass_statement"
	TypeGlobal              = "global_statement"
	TypeError               = "ERROR"
)

// IsImport reports whether n is any import statement form.
func IsImport(n *sitter.Node) bool {
	switch n.Type() {
	case TypeImport, TypeImportFrom, TypeFutureImport:
		return true
	}
	return false
}

// IsDefinition reports whether n is a def, class, or decorated definition.
func IsDefinition(n *sitter.Node) bool {
	switch n.Type() {
	case TypeFunctionDef, TypeClassDef, TypeDecoratedDef:
		return true
	}
	return false
}

// Text returns the source text covered by n.
func Text(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}

// StringLiteralValue decodes a Python string literal node to its inner text.
// Byte literals and f-strings are rejected: their contents are not plain
// annotation text. Returns false when the node is not a decodable literal.
func StringLiteralValue(n *sitter.Node, source []byte) (string, bool) {
	if n == nil {
		return "", false
	}

	if n.Type() == TypeConcatenatedString {
		var sb strings.Builder
		for i := 0; i < int(n.NamedChildCount()); i++ {
			part, ok := StringLiteralValue(n.NamedChild(i), source)
			if !ok {
				return "", false
			}
			sb.WriteString(part)
		}
		return sb.String(), true
	}

	if n.Type() != TypeString {
		return "", false
	}

	return decodeStringLiteral(Text(n, source))
}

// decodeStringLiteral strips the prefix and quotes from a literal's source
// text. Escape sequences are left as-is: annotation fragments never depend
// on them.
func decodeStringLiteral(text string) (string, bool) {
	i := 0
	for i < len(text) {
		c := text[i]
		if c == '\'' || c == '"' {
			break
		}
		switch c {
		case 'b', 'B', 'f', 'F':
			// Bytes and f-strings are not plain text.
			return "", false
		case 'r', 'R', 'u', 'U':
			i++
		default:
			return "", false
		}
	}
	if i >= len(text) {
		return "", false
	}

	body := text[i:]
	for _, quote := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(body, quote) && strings.HasSuffix(body, quote) && len(body) >= 2*len(quote) {
			return body[len(quote) : len(body)-len(quote)], true
		}
	}

	return "", false
}

// AttributeRoot returns the leftmost identifier of an attribute chain such
// as a.b.c, or nil when the chain does not start with a plain name.
func AttributeRoot(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == TypeAttribute {
		n = n.ChildByFieldName("object")
	}
	if n != nil && n.Type() == TypeIdentifier {
		return n
	}
	return nil
}

// CallName returns the dotted name of a call's function expression:
// "cast" for cast(...), "typing.cast" for typing.cast(...). Empty when the
// callee is not a plain name or attribute chain.
func CallName(n *sitter.Node, source []byte) string {
	if n == nil || n.Type() != TypeCall {
		return ""
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	switch fn.Type() {
	case TypeIdentifier:
		return Text(fn, source)
	case TypeAttribute:
		if AttributeRoot(fn) == nil {
			return ""
		}
		return Text(fn, source)
	}
	return ""
}
