// Package svntest provides an in-memory Subversion repository with working
// copies checked out to disk. It implements svnlib.Client so code built on the
// client can be exercised without an svn installation.
package svntest

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// RootURL is the repository root URL reported by Info.
const RootURL = "file:///svntest"

// Errors returned by repository operations.
var (
	ErrExists      = errors.New("svntest: path already exists")
	ErrNoParent    = errors.New("svntest: parent directory does not exist")
	ErrUnsupported = errors.New("svntest: operation not supported")
)

var epoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

type node struct {
	kind  svnlib.NodeKind
	text  string
	blame []svnlib.BlameLine
}

type revision struct {
	entry svnlib.LogEntry
	tree  map[string]*node
}

// Repository is a versioned tree of files and directories addressed by
// repository paths such as "/trunk/a.txt".
type Repository struct {
	mu      sync.Mutex
	revs    []*revision
	wcs     map[string]*WorkingCopy
	author  string
	faults  map[string]error
	openErr error
	opened  atomic.Int64
	closed  atomic.Int64
	live    atomic.Int64
	maxLive atomic.Int64
}

// New creates a repository whose revision 0 holds an empty root directory.
func New() *Repository {
	root := &revision{
		entry: svnlib.LogEntry{Revision: 0, Date: epoch},
		tree:  map[string]*node{"/": {kind: svnlib.NodeDir}},
	}

	return &Repository{
		revs:   []*revision{root},
		wcs:    make(map[string]*WorkingCopy),
		author: "svntest",
		faults: make(map[string]error),
	}
}

// NewStandardLayout creates a repository with /trunk (r1) and /branches (r2).
func NewStandardLayout() *Repository {
	repo := New()

	for _, dir := range []string{"/trunk", "/branches"} {
		_, err := repo.Mkdir(dir)
		if err != nil {
			panic(err)
		}
	}

	return repo
}

// SetAuthor sets the author recorded for subsequent commits.
func (r *Repository) SetAuthor(author string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.author = author
}

// Head returns the youngest revision.
func (r *Repository) Head() svnlib.Revision {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.head()
}

func (r *Repository) head() svnlib.Revision {
	return svnlib.Revision(len(r.revs) - 1)
}

// Mkdir creates a directory in a new revision.
func (r *Repository) Mkdir(dir string) (svnlib.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dir = path.Clean(dir)
	tree := r.revs[r.head()].tree

	if _, ok := tree[dir]; ok {
		return 0, fmt.Errorf("mkdir %s: %w", dir, ErrExists)
	}

	if parent, ok := tree[path.Dir(dir)]; !ok || parent.kind != svnlib.NodeDir {
		return 0, fmt.Errorf("mkdir %s: %w", dir, ErrNoParent)
	}

	change := svnlib.ChangedPath{Path: dir, Action: svnlib.ChangeAdded, Kind: svnlib.NodeDir, CopyFromRev: svnlib.NoRevision}

	return r.commit("mkdir "+dir, []svnlib.ChangedPath{change}, func(next map[string]*node) {
		next[dir] = &node{kind: svnlib.NodeDir}
	}), nil
}

// Copy copies src at HEAD to dst in a new revision.
func (r *Repository) Copy(src, dst, message string) (svnlib.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, dst = path.Clean(src), path.Clean(dst)
	head := r.head()
	tree := r.revs[head].tree

	srcNode, ok := tree[src]
	if !ok {
		return 0, fmt.Errorf("copy %s: %w", src, svnlib.ErrNotFound)
	}

	if _, exists := tree[dst]; exists {
		return 0, fmt.Errorf("copy to %s: %w", dst, ErrExists)
	}

	if _, parent := tree[path.Dir(dst)]; !parent {
		return 0, fmt.Errorf("copy to %s: %w", dst, ErrNoParent)
	}

	change := svnlib.ChangedPath{
		Path:         dst,
		Action:       svnlib.ChangeAdded,
		Kind:         srcNode.kind,
		CopyFromPath: src,
		CopyFromRev:  head,
	}

	return r.commit(message, []svnlib.ChangedPath{change}, func(next map[string]*node) {
		for p, n := range tree {
			if p == src || strings.HasPrefix(p, src+"/") {
				next[dst+strings.TrimPrefix(p, src)] = n
			}
		}
	}), nil
}

// CreateBranch copies /trunk to /branches/<name>.
func (r *Repository) CreateBranch(name string) (svnlib.Revision, error) {
	return r.CreateBranchFrom("trunk", name)
}

// CreateBranchFrom copies /<src> to /branches/<name>.
func (r *Repository) CreateBranchFrom(src, name string) (svnlib.Revision, error) {
	return r.Copy("/"+strings.Trim(src, "/"), "/branches/"+name, "Create branch "+name)
}

// Cat returns the content of a file at a revision.
func (r *Repository) Cat(file string, rev svnlib.Revision) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.lookup(path.Clean(file), rev)
	if err != nil {
		return "", err
	}

	return n.text, nil
}

// FailOn makes every client operation on the local path fail with err.
func (r *Repository) FailOn(localPath string, err error) {
	if abs, absErr := filepath.Abs(localPath); absErr == nil {
		localPath = abs
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.faults[localPath] = err
}

// Sessions returns how many client sessions were opened and closed.
func (r *Repository) Sessions() (opened, closed int64) {
	return r.opened.Load(), r.closed.Load()
}

// MaxConcurrentAnnotations returns the highest number of overlapping Annotate calls.
func (r *Repository) MaxConcurrentAnnotations() int64 {
	return r.maxLive.Load()
}

func (r *Repository) lookup(p string, rev svnlib.Revision) (*node, error) {
	if rev < 0 || rev > r.head() {
		return nil, fmt.Errorf("revision %s: %w", rev, svnlib.ErrNotFound)
	}

	n, ok := r.revs[rev].tree[p]
	if !ok {
		return nil, fmt.Errorf("%s@%s: %w", p, rev, svnlib.ErrNotFound)
	}

	return n, nil
}

// commit records a new revision built from HEAD by apply. Callers hold mu.
func (r *Repository) commit(message string, changes []svnlib.ChangedPath, apply func(next map[string]*node)) svnlib.Revision {
	head := r.head()
	next := make(map[string]*node, len(r.revs[head].tree))

	for p, n := range r.revs[head].tree {
		next[p] = n
	}

	apply(next)

	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })

	rev := head + 1
	r.revs = append(r.revs, &revision{
		entry: svnlib.LogEntry{
			Revision:     rev,
			Author:       r.author,
			Date:         epoch.Add(time.Duration(rev) * time.Hour),
			Message:      message,
			ChangedPaths: changes,
		},
		tree: next,
	})

	return rev
}

// attribute computes the blame of text given the blame of the previous content.
func attribute(prev *node, text string, line svnlib.BlameLine) []svnlib.BlameLine {
	oldText := ""
	if prev != nil {
		oldText = prev.text
	}

	origins := svnlib.LineOrigins(oldText, text)
	blame := make([]svnlib.BlameLine, len(origins))

	for i, origin := range origins {
		if origin >= 0 && prev != nil && origin < len(prev.blame) {
			blame[i] = prev.blame[origin]
		} else {
			blame[i] = line
		}
	}

	return blame
}
