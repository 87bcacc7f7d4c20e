package svnlib_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

func TestSplitLines(t *testing.T) {
	t.Parallel()

	assert.Nil(t, svnlib.SplitLines(""))
	assert.Equal(t, []string{"a\n", "b"}, svnlib.SplitLines("a\nb"))
	assert.Equal(t, []string{"a\n", "\n"}, svnlib.SplitLines("a\n\n"))
}

func TestLineOrigins(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{0, -1, 1}, svnlib.LineOrigins("a\nc\n", "a\nb\nc\n"))
	assert.Equal(t, []int{-1, -1}, svnlib.LineOrigins("", "x\ny\n"))
	assert.Empty(t, svnlib.LineOrigins("x\n", ""))
}

func TestUnifiedDiff_Equal(t *testing.T) {
	t.Parallel()

	assert.Empty(t, svnlib.UnifiedDiff("a.txt", "revision 1", "working copy", "x\n", "x\n"))
}

func TestUnifiedDiff_SingleHunk(t *testing.T) {
	t.Parallel()

	got := svnlib.UnifiedDiff("a.txt", "revision 4", "working copy", "1\n2\n3\n", "1\nX\n3\n")

	want := "Index: a.txt\n" +
		"===================================================================\n" +
		"--- a.txt\t(revision 4)\n" +
		"+++ a.txt\t(working copy)\n" +
		"@@ -1,3 +1,3 @@\n" +
		" 1\n" +
		"-2\n" +
		"+X\n" +
		" 3\n"

	assert.Equal(t, want, got)
}

func TestUnifiedDiff_SeparateHunks(t *testing.T) {
	t.Parallel()

	old := "1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n"
	cur := "A\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\nB\n"

	got := svnlib.UnifiedDiff("f", "revision 1", "working copy", old, cur)

	assert.Contains(t, got, "@@ -1,4 +1,4 @@\n-1\n+A\n 2\n 3\n 4\n")
	assert.Contains(t, got, "@@ -9,4 +9,4 @@\n 9\n 10\n 11\n-12\n+B\n")
}

func TestUnifiedDiff_NewFileAndNoNewline(t *testing.T) {
	t.Parallel()

	got := svnlib.UnifiedDiff("n.txt", "nonexistent", "working copy", "", "a\nb")

	assert.Contains(t, got, "@@ -0,0 +1,2 @@\n+a\n+b\n\\ No newline at end of file\n")
}
