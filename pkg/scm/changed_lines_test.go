package scm_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib/svntest"
)

var originalDocument = strings.Join([]string{
	"Alpha line one",
	"Bravo line two, which carries a trailing clause",
	"Charlie line three",
	"Delta line four",
	"Echo line five",
	"Foxtrot line six",
	"Golf line seven",
	"Hotel line eight",
	"India line nine",
	"Juliet line ten",
	"Kilo line eleven",
}, "\n") + "\n"

var editedDocument = strings.Join([]string{
	"Alpha line one",
	"Bravo line two",
	"",
	"Charlie line three",
	"Delta line four",
	"Echo line five",
	"Foxtrot line six",
	"Golf line seven",
	"Hotel line eight",
	"India line nine",
	"Juliet line ten.",
	"Kilo line eleven.",
	"which carries a trailing clause",
}, "\n") + "\n"

// documentBranch commits originalDocument on trunk and checks out a fresh branch b2.
func documentBranch(t *testing.T) (*scm.ChangedLinesExtractor, *svntest.Repository, *svntest.WorkingCopy) {
	t.Helper()

	repo, trunk := branchedRepo(t)
	commitFile(t, trunk, "doc.txt", originalDocument)
	createBranch(t, repo, "b2")

	return scm.NewChangedLinesExtractor(newConfig(repo)), repo, checkout(t, repo, "/branches/b2")
}

func TestChangedLines_EditedDocument(t *testing.T) {
	t.Parallel()

	extractor, repo, wc := documentBranch(t)
	commitFile(t, wc, "doc.txt", editedDocument)

	doc := wc.Path("doc.txt")

	lines, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{doc: {}})
	require.NoError(t, err)
	require.Contains(t, lines, doc)
	assert.Equal(t, []int{2, 3, 11, 12, 13}, lines[doc].Sorted())

	requireSessionsClosed(t, repo)
}

func TestChangedLines_UncommittedEditsCount(t *testing.T) {
	t.Parallel()

	extractor, _, wc := documentBranch(t)
	require.NoError(t, wc.WriteFile("doc.txt", editedDocument))

	doc := wc.Path("doc.txt")

	lines, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{doc: {}})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 11, 12, 13}, lines[doc].Sorted())
}

func TestChangedLines_OnlyCandidatesReported(t *testing.T) {
	t.Parallel()

	extractor, _, wc := documentBranch(t)
	commitFile(t, wc, "doc.txt", editedDocument)
	commitFile(t, wc, "other.txt", "one\ntwo\n")
	appendFile(t, wc, "keep.txt", "keep 2\n")

	other := wc.Path("other.txt")
	keep := wc.Path("keep.txt")
	untouched := wc.Path("src.txt")

	lines, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{other: {}, keep: {}, untouched: {}})
	require.NoError(t, err)

	assert.Len(t, lines, 2)
	assert.NotContains(t, lines, wc.Path("doc.txt"))
	assert.NotContains(t, lines, untouched)
	assert.Equal(t, []int{1, 2}, lines[other].Sorted())
	assert.Equal(t, []int{3}, lines[keep].Sorted())
}

func TestChangedLines_DeletionOnlyFileHasEmptySet(t *testing.T) {
	t.Parallel()

	extractor, _, wc := documentBranch(t)
	commitFile(t, wc, "src.txt", "src 1\n")

	src := wc.Path("src.txt")

	lines, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{src: {}})
	require.NoError(t, err)
	require.Contains(t, lines, src)
	assert.Empty(t, lines[src])
}

func TestChangedLines_TrunkHasNoForkPoint(t *testing.T) {
	t.Parallel()

	repo, trunk := branchedRepo(t)
	appendFile(t, trunk, "keep.txt", "more\n")

	keep := trunk.Path("keep.txt")

	lines, err := scm.NewChangedLinesExtractor(newConfig(repo)).ChangedLines(context.Background(), trunk.Dir(), scm.PathSet{keep: {}})
	require.NoError(t, err)
	require.NotNil(t, lines)
	assert.Empty(t, lines)
}

func TestChangedLines_NotAWorkingCopyIsUnknown(t *testing.T) {
	t.Parallel()

	repo, _ := branchedRepo(t)
	dir := t.TempDir()

	lines, err := scm.NewChangedLinesExtractor(newConfig(repo)).ChangedLines(context.Background(), dir, scm.PathSet{filepath.Join(dir, "a.txt"): {}})
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestChangedLines_BackendErrorPropagates(t *testing.T) {
	t.Parallel()

	extractor, repo, wc := documentBranch(t)
	repo.FailOn(wc.Dir(), errBackend)

	_, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{})
	require.ErrorIs(t, err, errBackend)
}

func TestChangedLines_BaselineIsBranchCreation(t *testing.T) {
	t.Parallel()

	extractor, _, wc := documentBranch(t)

	// Two commits on the branch: both must count against the fork revision.
	commitFile(t, wc, "doc.txt", strings.Replace(originalDocument, "Alpha line one", "Alpha line 1", 1))
	rev := appendFile(t, wc, "doc.txt", "Lima line twelve\n")
	require.Greater(t, rev, svnlib.Revision(10))

	doc := wc.Path("doc.txt")

	lines, err := extractor.ChangedLines(context.Background(), wc.Dir(), scm.PathSet{doc: {}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 12}, lines[doc].Sorted())
}
