package refactor

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"pyclean/internal/parser"
	"pyclean/internal/pyscan"
)

// RewriteInput carries one file's text and the merged decisions over it.
type RewriteInput struct {
	Source    []byte
	Lines     *parser.Lines
	Newline   string
	Decisions []*Decision
}

type edit struct {
	start, end int
	text       string
}

// Rewrite applies the decisions to the original bytes. Every edit is
// computed into the returned buffer; untouched regions are copied
// byte-for-byte.
func Rewrite(in RewriteInput) []byte {
	var edits []edit

	removals := removalsByBlock(in.Decisions)
	prevEnd := 0
	for _, d := range in.Decisions {
		switch d.State {
		case Remove:
			e := removalEdit(in, d, removals)
			if e.start < prevEnd {
				e.start = prevEnd
			}
			edits = append(edits, e)
			prevEnd = e.end
		case PartialKeep:
			e := edit{
				start: int(d.Stmt.StartByte),
				end:   int(d.Stmt.EndByte),
				text:  rebuildStatement(in, d),
			}
			edits = append(edits, e)
			prevEnd = e.end
		default:
			prevEnd = int(d.Stmt.EndByte)
		}
	}

	return applyEdits(in.Source, edits)
}

// removalsByBlock groups the fully removed statements by their enclosing
// compound-statement block, keyed by the block's start byte. Statements at
// module level are not grouped: an empty module is valid.
func removalsByBlock(decisions []*Decision) map[uint32][]*Decision {
	blocks := make(map[uint32][]*Decision)
	for _, d := range decisions {
		if d.State != Remove {
			continue
		}
		if block := enclosingBlock(d.Stmt.Node); block != nil {
			blocks[block.StartByte()] = append(blocks[block.StartByte()], d)
		}
	}
	return blocks
}

func enclosingBlock(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	if p := n.Parent(); p != nil && p.Type() == parser.TypeBlock {
		return p
	}
	return nil
}

// removalEdit deletes the statement's physical lines plus any comment-only
// lines directly attached above it. When the removal empties the enclosing
// block, the first removed statement is replaced by a placeholder instead,
// keeping the block structurally valid.
func removalEdit(in RewriteInput, d *Decision, removals map[uint32][]*Decision) edit {
	stmt := d.Stmt

	firstRow := stmt.StartRow
	for firstRow > 0 &&
		in.Lines.IsCommentOnly(firstRow-1) &&
		in.Lines.Indent(firstRow-1) == stmt.Indent {
		firstRow--
	}

	e := edit{
		start: in.Lines.Start(firstRow),
		end:   in.Lines.End(stmt.EndRow),
	}

	if block := enclosingBlock(stmt.Node); block != nil && blockEmpties(block, removals[block.StartByte()]) {
		if first := removals[block.StartByte()][0]; first.Stmt == stmt {
			e.text = stmt.Indent + "pass" + in.Newline
		}
	}
	return e
}

// blockEmpties reports whether removing the given statements leaves the
// block with no statements at all. An existing placeholder or docstring
// counts as a remaining statement and is reused instead of duplicated.
func blockEmpties(block *sitter.Node, removed []*Decision) bool {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		child := block.NamedChild(i)
		if child.Type() == parser.TypeComment {
			continue
		}
		if !containsRemoved(removed, child) {
			return false
		}
	}
	return true
}

func containsRemoved(removed []*Decision, n *sitter.Node) bool {
	for _, d := range removed {
		if d.Stmt.StartByte == n.StartByte() && d.Stmt.EndByte == n.EndByte() {
			return true
		}
	}
	return false
}

// rebuildStatement reassembles a partially kept clause in its original
// style: the header text is reused verbatim, surviving names keep their
// exact original alias spelling, and the continuation and trailing-comma
// styles are preserved.
func rebuildStatement(in RewriteInput, d *Decision) string {
	stmt := d.Stmt

	names := d.ExpandNames
	if !d.Expand {
		names = make([]string, 0, len(d.Kept))
		for _, b := range d.Kept {
			names = append(names, string(in.Source[b.StartByte:b.EndByte]))
		}
	}

	header := string(in.Source[stmt.StartByte:firstBindingStart(stmt)])

	switch {
	case stmt.Parenthesized && stmt.Multiline:
		itemIndent := ""
		if i := strings.LastIndex(header, "\n"); i >= 0 {
			itemIndent = header[i+1:]
		}
		sep := "," + in.Newline + itemIndent
		tail := in.Newline + in.Lines.Indent(stmt.EndRow) + ")"
		if stmt.TrailingComma {
			tail = "," + tail
		}
		return header + strings.Join(names, sep) + tail

	case stmt.Backslash && stmt.Multiline:
		contIndent := in.Lines.Indent(stmt.StartRow + 1)
		sep := ", \\" + in.Newline + contIndent
		return header + strings.Join(names, sep)

	case stmt.Parenthesized:
		return header + strings.Join(names, ", ") + ")"

	default:
		return header + strings.Join(names, ", ")
	}
}

func firstBindingStart(stmt *pyscan.Statement) uint32 {
	first := stmt.EndByte
	for _, b := range stmt.Bindings {
		if b.StartByte < first {
			first = b.StartByte
		}
	}
	return first
}

func applyEdits(source []byte, edits []edit) []byte {
	if len(edits) == 0 {
		return source
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	out := make([]byte, 0, len(source))
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		out = append(out, source[pos:e.start]...)
		out = append(out, e.text...)
		pos = e.end
	}
	out = append(out, source[pos:]...)
	return out
}
