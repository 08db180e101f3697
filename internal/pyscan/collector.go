package pyscan

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	pyerrors "pyclean/internal/errors"
	"pyclean/internal/parser"
)

// Import-failure exception names that make a try/except cluster a fallback
// group.
var importExceptions = map[string]struct{}{
	"ImportError":         {},
	"ImportWarning":       {},
	"ModuleNotFoundError": {},
}

var (
	skipImportRe = regexp.MustCompile(`(?i)#\s*((noqa\s*:*)|(nopycln\s*:\s*import))`)
	skipFileRe   = regexp.MustCompile(`(?i)#\s*nopycln\s*:\s*file`)
)

// Collection is the collector's inventory of one file.
type Collection struct {
	Statements []*Statement

	// FileSkip is set when the file-wide skip marker is present; no other
	// component runs in that case.
	FileSkip bool
}

// Collect inventories every import statement under root.
//
// It returns an UnsupportedSyntax error for the forms the rewriter cannot
// handle safely: semicolon-joined imports and guarded blocks inlined after
// the colon.
func Collect(root *sitter.Node, source []byte, lines *parser.Lines) (*Collection, error) {
	col := &Collection{}

	if fileSkipMarked(root, source) {
		col.FileSkip = true
		return col, nil
	}

	var unsupported *pyerrors.CleanError
	parser.Visit(root, func(n *sitter.Node) bool {
		if unsupported != nil {
			return false
		}
		switch n.Type() {
		case parser.TypeImport, parser.TypeImportFrom, parser.TypeFutureImport:
			if err := checkStatementSupported(n, lines); err != nil {
				unsupported = err
				return false
			}
			col.Statements = append(col.Statements, collectStatement(len(col.Statements), n, source, lines))
			return false
		case parser.TypeTry:
			if err := checkInlineBlocks(n); err != nil {
				unsupported = err
			}
		}
		return true
	})
	if unsupported != nil {
		return nil, unsupported
	}

	linkFallbackGroups(root, col, source)
	return col, nil
}

// fileSkipMarked scans comment text for the file-wide skip marker.
func fileSkipMarked(root *sitter.Node, source []byte) bool {
	found := false
	parser.VisitAll(root, func(n *sitter.Node) bool {
		if found {
			return false
		}
		if n.Type() == parser.TypeComment && skipFileRe.MatchString(parser.Text(n, source)) {
			found = true
			return false
		}
		return true
	})
	return found
}

// checkStatementSupported rejects semicolon-joined import statements: the
// physical-line surgery the rewriter performs assumes one statement per line.
func checkStatementSupported(n *sitter.Node, lines *parser.Lines) *pyerrors.CleanError {
	startRow := int(n.StartPoint().Row)
	endRow := int(n.EndPoint().Row)
	for row := startRow; row <= endRow; row++ {
		text := lines.Text(row)
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if strings.ContainsRune(text, ';') {
			return pyerrors.New(pyerrors.UnsupportedSyntax,
				"semicolon-joined import statements are not supported", nil).
				WithLocation("", startRow+1, int(n.StartPoint().Column))
		}
	}
	return nil
}

// checkInlineBlocks rejects guarded blocks written on the header line
// (`try: import a`), whose removal would leave an empty header.
func checkInlineBlocks(try *sitter.Node) *pyerrors.CleanError {
	for i := 0; i < int(try.ChildCount()); i++ {
		child := try.Child(i)
		var block *sitter.Node
		switch child.Type() {
		case parser.TypeBlock:
			block = child
		case parser.TypeExceptClause, parser.TypeElseClause, parser.TypeFinallyClause:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if c := child.NamedChild(j); c.Type() == parser.TypeBlock {
					block = c
				}
			}
			if block != nil && block.StartPoint().Row == child.StartPoint().Row {
				return inlineBlockError(child)
			}
			continue
		default:
			continue
		}
		if block != nil && block.StartPoint().Row == try.StartPoint().Row {
			return inlineBlockError(try)
		}
	}
	return nil
}

func inlineBlockError(n *sitter.Node) *pyerrors.CleanError {
	return pyerrors.New(pyerrors.UnsupportedSyntax,
		"single-line guarded blocks are not supported", nil).
		WithLocation("", int(n.StartPoint().Row)+1, int(n.StartPoint().Column))
}

func collectStatement(id int, n *sitter.Node, source []byte, lines *parser.Lines) *Statement {
	stmt := &Statement{
		ID:        id,
		Node:      n,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartRow:  int(n.StartPoint().Row),
		EndRow:    int(n.EndPoint().Row),
	}

	text := parser.Text(n, source)
	stmt.Multiline = stmt.EndRow > stmt.StartRow
	stmt.Parenthesized = strings.Contains(text, "(")
	stmt.Backslash = strings.Contains(text, "\\\n") || strings.Contains(text, "\\\r\n")
	stmt.TrailingComma = hasTrailingComma(text)
	stmt.Indent = string(source[lines.Start(stmt.StartRow):stmt.StartByte])
	stmt.ExplicitSkip = skipImportRe.MatchString(lines.Text(stmt.EndRow))

	switch n.Type() {
	case parser.TypeImport:
		collectPlainBindings(stmt, n, source)
	case parser.TypeFutureImport:
		stmt.IsFrom = true
		stmt.Module = "__future__"
		stmt.Future = true
	case parser.TypeImportFrom:
		collectFromBindings(stmt, n, source)
	}

	return stmt
}

func collectPlainBindings(stmt *Statement, n *sitter.Node, source []byte) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case parser.TypeDottedName:
			full := parser.Text(child, source)
			stmt.Bindings = append(stmt.Bindings, &Binding{
				Name:       rootOf(full),
				Imported:   full,
				Kind:       PlainImport,
				Dotted:     strings.Contains(full, "."),
				StartByte:  child.StartByte(),
				EndByte:    child.EndByte(),
				LogicalKey: full,
			})
		case parser.TypeAliasedImport:
			name := parser.Text(child.ChildByFieldName("name"), source)
			alias := parser.Text(child.ChildByFieldName("alias"), source)
			stmt.Bindings = append(stmt.Bindings, &Binding{
				Name:       alias,
				Imported:   name,
				Alias:      alias,
				Kind:       PlainImport,
				StartByte:  child.StartByte(),
				EndByte:    child.EndByte(),
				LogicalKey: name,
			})
		}
	}
}

func collectFromBindings(stmt *Statement, n *sitter.Node, source []byte) {
	stmt.IsFrom = true

	moduleNode := n.ChildByFieldName("module_name")
	if moduleNode != nil {
		stmt.Module = parser.Text(moduleNode, source)
		stmt.Level = leadingDots(stmt.Module)
	}
	if stmt.Module == "__future__" {
		stmt.Future = true
		return
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}
		switch child.Type() {
		case parser.TypeWildcardImport:
			stmt.Star = true
			stmt.Bindings = append(stmt.Bindings, &Binding{
				Name:       "*",
				Imported:   "*",
				Kind:       StarImport,
				StartByte:  child.StartByte(),
				EndByte:    child.EndByte(),
				LogicalKey: stmt.Module + ".*",
			})
		case parser.TypeDottedName, parser.TypeIdentifier:
			name := parser.Text(child, source)
			stmt.Bindings = append(stmt.Bindings, &Binding{
				Name:       name,
				Imported:   name,
				Kind:       FromImport,
				StartByte:  child.StartByte(),
				EndByte:    child.EndByte(),
				LogicalKey: stmt.Module + "." + name,
			})
		case parser.TypeAliasedImport:
			name := parser.Text(child.ChildByFieldName("name"), source)
			alias := parser.Text(child.ChildByFieldName("alias"), source)
			stmt.Bindings = append(stmt.Bindings, &Binding{
				Name:       alias,
				Imported:   name,
				Alias:      alias,
				Kind:       FromImport,
				StartByte:  child.StartByte(),
				EndByte:    child.EndByte(),
				LogicalKey: stmt.Module + "." + name,
			})
		}
	}
}

// hasTrailingComma checks whether the last name of a parenthesized clause
// carries a comma, skipping whitespace and comment lines before the ')'.
func hasTrailingComma(text string) bool {
	close := strings.LastIndexByte(text, ')')
	if close < 0 {
		return false
	}
	inner := text[:close]
	for _, line := range reversedLines(inner) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if i := strings.IndexByte(trimmed, '#'); i >= 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}
		return strings.HasSuffix(trimmed, ",")
	}
	return false
}

func reversedLines(text string) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for i := len(lines) - 1; i >= 0; i-- {
		out = append(out, lines[i])
	}
	return out
}

func leadingDots(module string) int {
	n := 0
	for n < len(module) && module[n] == '.' {
		n++
	}
	return n
}

func rootOf(dotted string) string {
	if i := strings.IndexByte(dotted, '.'); i >= 0 {
		return dotted[:i]
	}
	return dotted
}

// linkFallbackGroups assigns a shared group to every import inside
// try/except clusters whose handlers catch an import-failure exception.
// Bindings with the same logical key across the branches are alternative
// implementations of one import: using any of them uses all of them.
func linkFallbackGroups(root *sitter.Node, col *Collection, source []byte) {
	group := 0
	parser.Visit(root, func(n *sitter.Node) bool {
		if n.Type() != parser.TypeTry {
			return true
		}

		var blocks []*sitter.Node
		matched := false
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case parser.TypeExceptClause:
				if handlesImportFailure(child, source) {
					matched = true
					if b := clauseBlock(child); b != nil {
						blocks = append(blocks, b)
					}
				}
			}
		}
		if !matched {
			return true
		}

		if body := n.ChildByFieldName("body"); body != nil {
			blocks = append(blocks, body)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if child := n.Child(i); child.Type() == parser.TypeElseClause {
				if b := clauseBlock(child); b != nil {
					blocks = append(blocks, b)
				}
			}
		}

		group++
		for _, block := range blocks {
			for _, stmt := range col.Statements {
				if stmt.StartByte >= block.StartByte() && stmt.EndByte <= block.EndByte() {
					for _, b := range stmt.Bindings {
						b.FallbackGroup = group
					}
				}
			}
		}
		return true
	})
}

func clauseBlock(clause *sitter.Node) *sitter.Node {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		if c := clause.NamedChild(i); c.Type() == parser.TypeBlock {
			return c
		}
	}
	return nil
}

// handlesImportFailure checks an except clause's exception expression for
// one of the recognized import-failure kinds, by name or tuple membership.
func handlesImportFailure(clause *sitter.Node, source []byte) bool {
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		child := clause.NamedChild(i)
		if child.Type() == parser.TypeBlock {
			return false
		}
		switch child.Type() {
		case parser.TypeIdentifier:
			if _, ok := importExceptions[parser.Text(child, source)]; ok {
				return true
			}
		case parser.TypeTuple:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				elt := child.NamedChild(j)
				if elt.Type() != parser.TypeIdentifier {
					continue
				}
				if _, ok := importExceptions[parser.Text(elt, source)]; ok {
					return true
				}
			}
		}
		// Only the exception expression matters; the as-target does not.
		return false
	}
	return false
}
