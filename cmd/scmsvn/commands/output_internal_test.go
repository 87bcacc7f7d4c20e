package commands //nolint:testpackage // Tests need access to the internal renderers.

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

func TestLineRanges(t *testing.T) {
	t.Parallel()

	assert.Empty(t, lineRanges(nil))
	assert.Equal(t, "4", lineRanges([]int{4}))
	assert.Equal(t, "2-3, 11-13", lineRanges([]int{2, 3, 11, 12, 13}))
	assert.Equal(t, "1, 3, 5-6", lineRanges([]int{1, 3, 5, 6}))
}

func TestPlural(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1 file", plural(1, "file"))
	assert.Equal(t, "0 files", plural(0, "file"))
	assert.Equal(t, "1,200 files", plural(1200, "file"))
}

func TestPrinter_BlameText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := newPrinter(&buf, FormatText)
	p.now = func() time.Time { return now }

	files := []scm.InputFile{{Path: "a.txt", Lines: 2}, {Path: "dirty.txt", Lines: 1}}
	results := map[string]scm.BlameResult{
		"a.txt": {
			{Revision: "7", Author: "bob", Date: now.Add(-3 * 24 * time.Hour)},
			svnlib.BlameLine{},
		},
	}

	require.NoError(t, p.blame(files, results))

	out := buf.String()
	assert.Contains(t, out, "r7")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "3 days ago")
	assert.Contains(t, out, "dirty.txt: skipped")
}

func TestPrinter_ChangedLinesUnknown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, newPrinter(&buf, FormatJSON).changedLines("/wc", nil))
	assert.Equal(t, "null\n", buf.String())
}
