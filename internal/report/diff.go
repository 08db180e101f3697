package report

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const diffContext = 3

type diffLine struct {
	op   byte // ' ', '-', '+'
	text string
}

// UnifiedDiff renders a unified diff between the original and modified text
// of one file, in the usual ---/+++/@@ format.
func UnifiedDiff(path string, original, modified []byte) string {
	if string(original) == string(modified) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(string(original), string(modified))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	lines := flattenDiffs(diffs)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n", path)
	fmt.Fprintf(&sb, "+++ %s\n", path)
	writeHunks(&sb, lines)
	return sb.String()
}

func flattenDiffs(diffs []diffmatchpatch.Diff) []diffLine {
	var lines []diffLine
	for _, d := range diffs {
		op := byte(' ')
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = '-'
		case diffmatchpatch.DiffInsert:
			op = '+'
		}
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text != "" {
			lines = append(lines, diffLine{op: op, text: ""})
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			lines = append(lines, diffLine{op: op, text: strings.TrimSuffix(line, "\r")})
		}
	}
	return lines
}

// writeHunks groups the changed lines into hunks with diffContext lines of
// surrounding context.
func writeHunks(sb *strings.Builder, lines []diffLine) {
	n := len(lines)
	i := 0
	aLine, bLine := 1, 1

	for i < n {
		if lines[i].op == ' ' {
			aLine++
			bLine++
			i++
			continue
		}

		// Found a change; open a hunk that starts diffContext lines back.
		start := i - diffContext
		if start < 0 {
			start = 0
		}
		aStart := aLine - (i - start)
		bStart := bLine - (i - start)

		end := i
		gap := 0
		for j := i; j < n; j++ {
			if lines[j].op == ' ' {
				gap++
				if gap > 2*diffContext {
					break
				}
			} else {
				gap = 0
				end = j + 1
			}
		}
		stop := end + diffContext
		if stop > n {
			stop = n
		}

		var aCount, bCount int
		var body strings.Builder
		for j := start; j < stop; j++ {
			switch lines[j].op {
			case ' ':
				aCount++
				bCount++
			case '-':
				aCount++
			case '+':
				bCount++
			}
			body.WriteByte(lines[j].op)
			body.WriteString(lines[j].text)
			body.WriteByte('\n')
		}

		fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", aStart, aCount, bStart, bCount)
		sb.WriteString(body.String())

		for j := i; j < stop; j++ {
			switch lines[j].op {
			case ' ':
				aLine++
				bLine++
			case '-':
				aLine++
			case '+':
				bLine++
			}
		}
		i = stop
	}
}
