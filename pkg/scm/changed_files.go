package scm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// BranchChangeClassifier lists the files added or modified on a branch since it forked.
type BranchChangeClassifier struct {
	cfg Config
}

// NewBranchChangeClassifier creates a classifier.
func NewBranchChangeClassifier(cfg Config) *BranchChangeClassifier {
	return &BranchChangeClassifier{cfg: cfg.withDefaults()}
}

// ChangedFiles returns the local paths of files added or modified since the
// branch of root was copied. It returns nil without error when root is not a
// working copy or does not exist.
func (c *BranchChangeClassifier) ChangedFiles(ctx context.Context, root string) (PathSet, error) {
	ctx, op := startOperation(ctx, c.cfg, "changed_files", root)

	changed, err := withSession(ctx, c.cfg, func(client svnlib.Client) (PathSet, error) {
		return classifyBranch(ctx, client, root)
	})

	if isSoftFailure(err) {
		c.cfg.Logger.WarnContext(ctx, "cannot list changed files", "path", root, "error", err)
		op.end(statusUnknown, nil)

		return nil, nil
	}

	op.end(resultStatus(len(changed), err), err)

	return changed, err
}

// classification is the fold state of a branch walk.
type classification struct {
	changed PathSet
	removed PathSet
}

func classifyBranch(ctx context.Context, client svnlib.Client, root string) (PathSet, error) {
	info, err := client.Info(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("info of %s: %w", root, err)
	}

	base, err := basePath(info)
	if err != nil {
		return nil, err
	}

	opts := svnlib.LogOptions{Paths: []string{root}, StopOnCopy: true, DiscoverChangedPaths: true}
	init := classification{changed: PathSet{}, removed: PathSet{}}

	state, err := svnlib.Walk(ctx, client, opts, init, func(s classification, entry svnlib.LogEntry) classification {
		return s.apply(entry, root, base)
	})
	if err != nil {
		return nil, fmt.Errorf("changed files of %s: %w", root, err)
	}

	return state.changed, nil
}

// apply folds one commit. Commits arrive newest first, so a deletion seen
// earlier hides any older addition or modification of the same path.
func (s classification) apply(entry svnlib.LogEntry, root, base string) classification {
	for _, change := range entry.ChangedPaths {
		if change.Kind != svnlib.NodeFile {
			continue
		}

		local, ok := localPath(root, base, change.Path)
		if !ok {
			continue
		}

		switch change.Action {
		case svnlib.ChangeDeleted:
			s.removed.Add(local)
		case svnlib.ChangeAdded, svnlib.ChangeModified, svnlib.ChangeReplaced:
			if !s.removed.Contains(local) {
				s.changed.Add(local)
			}
		}
	}

	return s
}

// basePath returns the repository path of the working copy root, e.g. "/branches/b1".
func basePath(info svnlib.Info) (string, error) {
	rel, ok := strings.CutPrefix(info.URL, info.RepositoryRoot)
	if !ok {
		return "", fmt.Errorf("%w: url %q is outside repository %q", ErrForeignURL, info.URL, info.RepositoryRoot)
	}

	decoded, err := url.PathUnescape(rel)
	if err != nil {
		return "", fmt.Errorf("decode url %q: %w", info.URL, err)
	}

	return "/" + strings.Trim(decoded, "/"), nil
}

// localPath maps a repository path below base onto the working copy at root.
func localPath(root, base, repoPath string) (string, bool) {
	if base == "/" {
		return filepath.Join(root, filepath.FromSlash(repoPath)), true
	}

	if repoPath == base {
		return root, true
	}

	rel, ok := strings.CutPrefix(repoPath, base+"/")
	if !ok {
		return "", false
	}

	return filepath.Join(root, filepath.FromSlash(rel)), true
}

func isSoftFailure(err error) bool {
	return errors.Is(err, svnlib.ErrNotWorkingCopy) || errors.Is(err, svnlib.ErrNotFound)
}

func resultStatus(size int, err error) string {
	switch {
	case err != nil:
		return statusError
	case size == 0:
		return statusEmpty
	default:
		return statusOK
	}
}
