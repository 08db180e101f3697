package parser

import "bytes"

// Lines indexes source bytes by physical line for span arithmetic.
type Lines struct {
	source []byte
	starts []int // byte offset of each line start
}

// NewLines builds the line index for source.
func NewLines(source []byte) *Lines {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{source: source, starts: starts}
}

// Count returns the number of physical lines.
func (l *Lines) Count() int {
	return len(l.starts)
}

// Start returns the byte offset where row (0-based) begins.
func (l *Lines) Start(row int) int {
	if row < 0 || row >= len(l.starts) {
		return len(l.source)
	}
	return l.starts[row]
}

// End returns the byte offset one past row's trailing newline, i.e. the
// start of the next row.
func (l *Lines) End(row int) int {
	if row+1 < len(l.starts) {
		return l.starts[row+1]
	}
	return len(l.source)
}

// Text returns row's text without its newline.
func (l *Lines) Text(row int) string {
	start, end := l.Start(row), l.End(row)
	return string(bytes.TrimRight(l.source[start:end], "\r\n"))
}

// RowOf returns the row containing the given byte offset.
func (l *Lines) RowOf(offset int) int {
	lo, hi := 0, len(l.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if l.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Indent returns the leading whitespace of row.
func (l *Lines) Indent(row int) string {
	text := l.Text(row)
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' && text[i] != '\t' {
			return text[:i]
		}
	}
	return text
}

// IsBlank reports whether row contains only whitespace.
func (l *Lines) IsBlank(row int) bool {
	text := l.Text(row)
	for i := 0; i < len(text); i++ {
		if text[i] != ' ' && text[i] != '\t' {
			return false
		}
	}
	return true
}

// IsCommentOnly reports whether row contains only a comment.
func (l *Lines) IsCommentOnly(row int) bool {
	text := l.Text(row)
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ' ', '\t':
		case '#':
			return true
		default:
			return false
		}
	}
	return false
}
