package svntest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

const (
	adminDir = ".svn"
	dirPerm  = 0o755
	filePerm = 0o644
)

type scheduledAdd struct {
	copyFrom    string
	copyFromRev svnlib.Revision
}

// WorkingCopy is a checkout of a repository directory into a local directory.
// Local edits are plain file writes; Add, Delete and Copy schedule tree changes
// that Commit turns into a revision.
type WorkingCopy struct {
	repo     *Repository
	dir      string
	url      string
	base     svnlib.Revision
	pristine map[string]*node
	added    map[string]scheduledAdd
	deleted  map[string]bool
}

// Checkout writes the HEAD content of repoDir into dir and registers the working copy.
func (r *Repository) Checkout(dir, repoDir string) (*WorkingCopy, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	repoDir = path.Clean("/" + repoDir)

	n, err := r.lookup(repoDir, r.head())
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	if n.kind != svnlib.NodeDir {
		return nil, fmt.Errorf("checkout %s: %w", repoDir, ErrUnsupported)
	}

	err = os.MkdirAll(filepath.Join(abs, adminDir), dirPerm)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	wc := &WorkingCopy{repo: r, dir: abs, url: repoDir}

	err = wc.update(r.head())
	if err != nil {
		return nil, err
	}

	r.wcs[abs] = wc

	return wc, nil
}

// Dir returns the local root of the working copy.
func (wc *WorkingCopy) Dir() string { return wc.dir }

// Path returns the local path of a working copy relative name.
func (wc *WorkingCopy) Path(name string) string {
	return filepath.Join(wc.dir, filepath.FromSlash(name))
}

// Revision returns the revision the working copy is based on.
func (wc *WorkingCopy) Revision() svnlib.Revision {
	wc.repo.mu.Lock()
	defer wc.repo.mu.Unlock()

	return wc.base
}

// WriteFile creates or overwrites a file on disk without scheduling it.
func (wc *WorkingCopy) WriteFile(name, content string) error {
	p := wc.Path(name)

	err := os.MkdirAll(filepath.Dir(p), dirPerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	err = os.WriteFile(p, []byte(content), filePerm)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}

// AppendFile appends content to a file on disk.
func (wc *WorkingCopy) AppendFile(name, content string) error {
	f, err := os.OpenFile(wc.Path(name), os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("append %s: %w", name, err)
	}

	_, err = f.WriteString(content)

	return errors.Join(err, f.Close())
}

// Add schedules a file that exists on disk for addition.
func (wc *WorkingCopy) Add(name string) error {
	wc.repo.mu.Lock()
	defer wc.repo.mu.Unlock()

	name = path.Clean(name)

	_, err := os.Stat(wc.Path(name))
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	if _, versioned := wc.pristine[name]; versioned && !wc.deleted[name] {
		return fmt.Errorf("add %s: %w", name, ErrExists)
	}

	wc.added[name] = scheduledAdd{copyFromRev: svnlib.NoRevision}

	return nil
}

// Delete removes a versioned file from disk and schedules its deletion.
func (wc *WorkingCopy) Delete(name string) error {
	wc.repo.mu.Lock()
	defer wc.repo.mu.Unlock()

	name = path.Clean(name)

	if _, ok := wc.added[name]; ok {
		delete(wc.added, name)
	} else if _, ok := wc.pristine[name]; ok {
		wc.deleted[name] = true
	} else {
		return fmt.Errorf("delete %s: %w", name, svnlib.ErrNotFound)
	}

	err := os.Remove(wc.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	return nil
}

// Copy copies a versioned file with history and schedules the target for addition.
func (wc *WorkingCopy) Copy(src, dst string) error {
	wc.repo.mu.Lock()
	defer wc.repo.mu.Unlock()

	src, dst = path.Clean(src), path.Clean(dst)

	n, ok := wc.pristine[src]
	if !ok || n.kind != svnlib.NodeFile {
		return fmt.Errorf("copy %s: %w", src, svnlib.ErrNotFound)
	}

	content, err := os.ReadFile(wc.Path(src))
	if err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}

	err = os.WriteFile(wc.Path(dst), content, filePerm)
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}

	wc.added[dst] = scheduledAdd{copyFrom: wc.repoPath(src), copyFromRev: wc.base}

	return nil
}

// Commit sends all scheduled and local changes as one revision and brings the
// working copy to that revision. Without changes it returns the current revision.
func (wc *WorkingCopy) Commit(message string) (svnlib.Revision, error) {
	r := wc.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	changes, nodes, err := wc.collect(r.head() + 1)
	if err != nil {
		return 0, err
	}

	if len(changes) == 0 {
		return wc.base, nil
	}

	rev := r.commit(message, changes, func(next map[string]*node) {
		for p, n := range nodes {
			if n == nil {
				delete(next, p)

				continue
			}

			next[p] = n
		}
	})

	err = wc.update(rev)
	if err != nil {
		return 0, err
	}

	return rev, nil
}

// Update brings the working copy to HEAD. Local edits are overwritten.
func (wc *WorkingCopy) Update() error {
	wc.repo.mu.Lock()
	defer wc.repo.mu.Unlock()

	return wc.update(wc.repo.head())
}

// collect computes the changed paths and new nodes of a pending commit. Callers hold mu.
func (wc *WorkingCopy) collect(rev svnlib.Revision) ([]svnlib.ChangedPath, map[string]*node, error) {
	r := wc.repo
	tree := r.revs[r.head()].tree
	line := svnlib.BlameLine{Revision: rev.String(), Author: r.author, Date: epoch.Add(time.Duration(rev) * time.Hour)}

	var changes []svnlib.ChangedPath

	nodes := make(map[string]*node)

	for name := range wc.deleted {
		p := wc.repoPath(name)
		changes = append(changes, svnlib.ChangedPath{Path: p, Action: svnlib.ChangeDeleted, Kind: wc.pristine[name].kind, CopyFromRev: svnlib.NoRevision})
		nodes[p] = nil
	}

	for name, add := range wc.added {
		content, err := os.ReadFile(wc.Path(name))
		if err != nil {
			return nil, nil, fmt.Errorf("commit %s: %w", name, err)
		}

		p := wc.repoPath(name)
		change := svnlib.ChangedPath{Path: p, Action: svnlib.ChangeAdded, Kind: svnlib.NodeFile, CopyFromRev: svnlib.NoRevision}

		var prev *node
		if add.copyFrom != "" {
			change.CopyFromPath, change.CopyFromRev = add.copyFrom, add.copyFromRev
			prev = r.revs[add.copyFromRev].tree[add.copyFrom]
		}

		if wc.deleted[name] {
			change.Action = svnlib.ChangeReplaced
		}

		changes = append(changes, change)
		nodes[p] = &node{kind: svnlib.NodeFile, text: string(content), blame: attribute(prev, string(content), line)}

		for dir := path.Dir(p); dir != wc.url && dir != "/"; dir = path.Dir(dir) {
			if _, ok := tree[dir]; ok {
				break
			}

			if _, ok := nodes[dir]; !ok {
				changes = append(changes, svnlib.ChangedPath{Path: dir, Action: svnlib.ChangeAdded, Kind: svnlib.NodeDir, CopyFromRev: svnlib.NoRevision})
				nodes[dir] = &node{kind: svnlib.NodeDir}
			}
		}
	}

	for name, n := range wc.pristine {
		if n.kind != svnlib.NodeFile || wc.deleted[name] {
			continue
		}

		if _, readded := wc.added[name]; readded {
			continue
		}

		content, err := os.ReadFile(wc.Path(name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}

		if err != nil {
			return nil, nil, fmt.Errorf("commit %s: %w", name, err)
		}

		if string(content) == n.text {
			continue
		}

		p := wc.repoPath(name)
		changes = append(changes, svnlib.ChangedPath{Path: p, Action: svnlib.ChangeModified, Kind: svnlib.NodeFile, CopyFromRev: svnlib.NoRevision})
		nodes[p] = &node{kind: svnlib.NodeFile, text: string(content), blame: attribute(n, string(content), line)}
	}

	return changes, nodes, nil
}

// update rewrites the working copy from the repository at rev. Callers hold mu.
func (wc *WorkingCopy) update(rev svnlib.Revision) error {
	tree := wc.repo.revs[rev].tree
	pristine := make(map[string]*node)

	for p, n := range tree {
		if !strings.HasPrefix(p, wc.url+"/") {
			continue
		}

		name := strings.TrimPrefix(p, wc.url+"/")
		pristine[name] = n
	}

	for name := range wc.pristine {
		if _, kept := pristine[name]; kept {
			continue
		}

		err := os.RemoveAll(wc.Path(name))
		if err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
	}

	names := make([]string, 0, len(pristine))
	for name := range pristine {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		n := pristine[name]

		var err error
		if n.kind == svnlib.NodeDir {
			err = os.MkdirAll(wc.Path(name), dirPerm)
		} else {
			err = wc.WriteFile(name, n.text)
		}

		if err != nil {
			return fmt.Errorf("update %s: %w", name, err)
		}
	}

	wc.base = rev
	wc.pristine = pristine
	wc.added = make(map[string]scheduledAdd)
	wc.deleted = make(map[string]bool)

	return nil
}

func (wc *WorkingCopy) repoPath(name string) string {
	if name == "" || name == "." {
		return wc.url
	}

	return path.Join(wc.url, name)
}
