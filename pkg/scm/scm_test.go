package scm_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib/svntest"
)

func newConfig(repo *svntest.Repository) scm.Config {
	return scm.Config{
		Sessions: repo.Open,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func checkout(t *testing.T, repo *svntest.Repository, repoDir string) *svntest.WorkingCopy {
	t.Helper()

	wc, err := repo.Checkout(filepath.Join(t.TempDir(), filepath.Base(repoDir)), repoDir)
	require.NoError(t, err)

	return wc
}

// commitFile writes content to name, schedules it when new and commits.
func commitFile(t *testing.T, wc *svntest.WorkingCopy, name, content string) svnlib.Revision {
	t.Helper()

	_, statErr := os.Stat(wc.Path(name))
	require.NoError(t, wc.WriteFile(name, content))

	if errors.Is(statErr, os.ErrNotExist) {
		require.NoError(t, wc.Add(name))
	}

	return commit(t, wc, "edit "+name)
}

func appendFile(t *testing.T, wc *svntest.WorkingCopy, name, content string) svnlib.Revision {
	t.Helper()

	require.NoError(t, wc.AppendFile(name, content))

	return commit(t, wc, "append to "+name)
}

func deleteFile(t *testing.T, wc *svntest.WorkingCopy, name string) svnlib.Revision {
	t.Helper()

	require.NoError(t, wc.Delete(name))

	return commit(t, wc, "delete "+name)
}

func commit(t *testing.T, wc *svntest.WorkingCopy, message string) svnlib.Revision {
	t.Helper()

	rev, err := wc.Commit(message)
	require.NoError(t, err)

	return rev
}

func createBranch(t *testing.T, repo *svntest.Repository, name string) svnlib.Revision {
	t.Helper()

	rev, err := repo.CreateBranch(name)
	require.NoError(t, err)

	return rev
}

func requireSessionsClosed(t *testing.T, repo *svntest.Repository) {
	t.Helper()

	opened, closed := repo.Sessions()
	require.Positive(t, opened)
	require.Equal(t, opened, closed, "every opened session must be closed")
}

// branchedRepo commits three trunk revisions (r3..r5), branches b1 from
// trunk (r6) and commits twice more on trunk (r7, r8).
func branchedRepo(t *testing.T) (*svntest.Repository, *svntest.WorkingCopy) {
	t.Helper()

	repo := svntest.NewStandardLayout()
	trunk := checkout(t, repo, "/trunk")

	commitFile(t, trunk, "keep.txt", "keep 1\n")
	commitFile(t, trunk, "old.txt", "old 1\n")
	commitFile(t, trunk, "src.txt", "src 1\nsrc 2\n")
	require.Equal(t, svnlib.Revision(6), createBranch(t, repo, "b1"))
	commitFile(t, trunk, "keep.txt", "keep 1\ntrunk only\n")
	commitFile(t, trunk, "trunk.txt", "trunk\n")

	return repo, trunk
}

var errBackend = errors.New("backend exploded")
