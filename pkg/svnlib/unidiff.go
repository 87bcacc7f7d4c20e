package svnlib

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContextLines is the number of unchanged lines svn prints around a change.
const DefaultContextLines = 3

const (
	indexSeparator  = "==================================================================="
	noNewlineMarker = `\ No newline at end of file`
)

// SplitLines splits text into lines, keeping the terminating newline on each
// line. A final line without newline is kept as is.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}

	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	return lines
}

type lineOp struct {
	op   diffmatchpatch.Operation
	text string
}

// diffLines computes a line level edit script between two texts.
func diffLines(oldText, newText string) []lineOp {
	oldLines, newLines := SplitLines(oldText), SplitLines(newText)

	dmp := diffmatchpatch.New()
	src, dst, _ := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffCleanupMerge(dmp.DiffMainRunes(src, dst, false))

	ops := make([]lineOp, 0, len(oldLines)+len(newLines))

	var oldPos, newPos int

	for _, d := range diffs {
		count := utf8.RuneCountInString(d.Text)

		for range count {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				ops = append(ops, lineOp{op: d.Type, text: newLines[newPos]})
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				ops = append(ops, lineOp{op: d.Type, text: oldLines[oldPos]})
				oldPos++
			case diffmatchpatch.DiffInsert:
				ops = append(ops, lineOp{op: d.Type, text: newLines[newPos]})
				newPos++
			}
		}
	}

	return ops
}

// LineOrigins maps every line of newText to the index of the oldText line it
// was kept from, or -1 when the line is new.
func LineOrigins(oldText, newText string) []int {
	var origins []int

	oldPos := 0

	for _, op := range diffLines(oldText, newText) {
		switch op.op {
		case diffmatchpatch.DiffEqual:
			origins = append(origins, oldPos)
			oldPos++
		case diffmatchpatch.DiffDelete:
			oldPos++
		case diffmatchpatch.DiffInsert:
			origins = append(origins, -1)
		}
	}

	return origins
}

// UnifiedDiff renders the change of one file in the format printed by svn diff.
// It returns an empty string when both texts are equal.
func UnifiedDiff(path, oldLabel, newLabel, oldText, newText string) string {
	if oldText == newText {
		return ""
	}

	ops := diffLines(oldText, newText)

	var sb strings.Builder

	fmt.Fprintf(&sb, "Index: %s\n%s\n", path, indexSeparator)
	fmt.Fprintf(&sb, "--- %s\t(%s)\n", path, oldLabel)
	fmt.Fprintf(&sb, "+++ %s\t(%s)\n", path, newLabel)

	for _, h := range buildHunks(ops, DefaultContextLines) {
		h.write(&sb, ops)
	}

	return sb.String()
}

type hunk struct {
	first, last        int
	oldStart, oldCount int
	newStart, newCount int
}

// buildHunks groups changed lines whose distance is at most twice the context.
func buildHunks(ops []lineOp, context int) []hunk {
	oldAt := make([]int, len(ops))
	newAt := make([]int, len(ops))

	oldLine, newLine := 1, 1

	for i, op := range ops {
		oldAt[i], newAt[i] = oldLine, newLine

		if op.op != diffmatchpatch.DiffInsert {
			oldLine++
		}

		if op.op != diffmatchpatch.DiffDelete {
			newLine++
		}
	}

	var hunks []hunk

	for i := 0; i < len(ops); i++ {
		if ops[i].op == diffmatchpatch.DiffEqual {
			continue
		}

		lastChange := i

		for j := i + 1; j < len(ops); j++ {
			if ops[j].op == diffmatchpatch.DiffEqual {
				continue
			}

			if j-lastChange-1 > 2*context {
				break
			}

			lastChange = j
		}

		h := hunk{first: max(0, i-context), last: min(len(ops)-1, lastChange+context)}

		for k := h.first; k <= h.last; k++ {
			if ops[k].op != diffmatchpatch.DiffInsert {
				h.oldCount++
			}

			if ops[k].op != diffmatchpatch.DiffDelete {
				h.newCount++
			}
		}

		h.oldStart, h.newStart = oldAt[h.first], newAt[h.first]
		if h.oldCount == 0 {
			h.oldStart--
		}

		if h.newCount == 0 {
			h.newStart--
		}

		hunks = append(hunks, h)
		i = lastChange
	}

	return hunks
}

func (h hunk) write(sb *strings.Builder, ops []lineOp) {
	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", h.oldStart, h.oldCount, h.newStart, h.newCount)

	for _, op := range ops[h.first : h.last+1] {
		prefix := " "

		switch op.op {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffEqual:
		}

		sb.WriteString(prefix)
		sb.WriteString(op.text)

		if !strings.HasSuffix(op.text, "\n") {
			sb.WriteString("\n" + noNewlineMarker + "\n")
		}
	}
}
