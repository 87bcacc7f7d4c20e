// Package scm answers the branch and attribution questions of the analysis
// pipeline for Subversion working copies: where a branch forked, which files
// and lines changed since, and who last touched every line.
package scm

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// ForkPoint is the revision and source paths a branch was copied from.
type ForkPoint struct {
	Commit     string
	References []string
}

func (f *ForkPoint) String() string {
	if f == nil {
		return "<none>"
	}

	return fmt.Sprintf("r%s from %s", f.Commit, strings.Join(f.References, ", "))
}

// PathSet is a set of local paths. A nil set means the answer could not be
// determined, an empty set means nothing changed.
type PathSet map[string]struct{}

// Add inserts p.
func (s PathSet) Add(p string) { s[p] = struct{}{} }

// Contains reports whether p is in the set.
func (s PathSet) Contains(p string) bool {
	_, ok := s[p]

	return ok
}

// Sorted returns the members in lexical order.
func (s PathSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}

	slices.Sort(out)

	return out
}

// LineSet is a set of 1-based line numbers.
type LineSet map[int]struct{}

// Add inserts line.
func (s LineSet) Add(line int) { s[line] = struct{}{} }

// Sorted returns the line numbers in ascending order.
func (s LineSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for l := range s {
		out = append(out, l)
	}

	slices.Sort(out)

	return out
}

// ChangedLineMap maps local paths to their changed line numbers. A path
// without entry has no changed lines.
type ChangedLineMap map[string]LineSet

// BlameResult holds one BlameLine per line of a file, in file order.
type BlameResult []svnlib.BlameLine

// InputFile is a file handed over by the analysis pipeline.
type InputFile struct {
	Path string
	// Lines counts lines the way the pipeline does: a trailing newline opens
	// a final empty line.
	Lines int
}

// NewInputFile reads path and counts its lines.
func NewInputFile(path string) (InputFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return InputFile{}, fmt.Errorf("read input file: %w", err)
	}

	return InputFile{Path: path, Lines: bytes.Count(content, []byte{'\n'}) + 1}, nil
}
