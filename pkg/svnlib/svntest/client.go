package svntest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// ErrSessionClosed is returned by a session used after Close.
var ErrSessionClosed = errors.New("svntest: session closed")

// Session is a client session against a Repository. Paths are local paths
// inside one of the repository's working copies.
type Session struct {
	repo   *Repository
	closed atomic.Bool
}

var _ svnlib.Client = (*Session)(nil)

// Open starts a session. It fails with the error set by FailOpen, if any.
func (r *Repository) Open(ctx context.Context) (svnlib.Client, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	openErr := r.openErr
	r.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}

	r.opened.Add(1)

	return &Session{repo: r}, nil
}

// FailOpen makes subsequent Open calls fail with err. A nil err clears it.
func (r *Repository) FailOpen(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.openErr = err
}

// Close ends the session. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.repo.closed.Add(1)
	}

	return nil
}

// Status reports the local state of a working copy item.
func (s *Session) Status(ctx context.Context, localPath string) (svnlib.Status, error) {
	r := s.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	wc, name, err := s.resolve(ctx, localPath)
	if err != nil {
		return svnlib.Status{}, err
	}

	unversioned := svnlib.Status{Kind: svnlib.StatusUnversioned, Revision: svnlib.NoRevision}

	switch {
	case name == ".":
		return svnlib.Status{Kind: svnlib.StatusClean, Revision: wc.base}, nil
	case wc.deleted[name]:
		return svnlib.Status{Kind: svnlib.StatusDeleted, Revision: wc.base}, nil
	}

	if _, ok := wc.added[name]; ok {
		return svnlib.Status{Kind: svnlib.StatusAdded, Revision: svnlib.NoRevision}, nil
	}

	n, ok := wc.pristine[name]
	if !ok {
		return unversioned, nil
	}

	if n.kind == svnlib.NodeDir {
		return svnlib.Status{Kind: svnlib.StatusClean, Revision: wc.base}, nil
	}

	content, err := os.ReadFile(wc.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return svnlib.Status{}, fmt.Errorf("status %s: %w", name, err)
	}

	if err != nil || string(content) != n.text {
		return svnlib.Status{Kind: svnlib.StatusModified, Revision: wc.base}, nil
	}

	return svnlib.Status{Kind: svnlib.StatusClean, Revision: wc.base}, nil
}

// Info reports the URL of a working copy item.
func (s *Session) Info(ctx context.Context, localPath string) (svnlib.Info, error) {
	r := s.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	wc, name, err := s.resolve(ctx, localPath)
	if err != nil {
		return svnlib.Info{}, err
	}

	kind := svnlib.NodeDir

	if name != "." {
		n, ok := wc.pristine[name]
		if !ok {
			return svnlib.Info{}, fmt.Errorf("info %s: %w", name, svnlib.ErrNotFound)
		}

		kind = n.kind
	}

	return svnlib.Info{
		URL:            RootURL + wc.repoPath(name),
		RepositoryRoot: RootURL,
		Revision:       wc.base,
		Kind:           kind,
	}, nil
}

// Log delivers the history of the first path in opts, newest first. Copies are
// followed unless opts.StopOnCopy is set.
func (s *Session) Log(ctx context.Context, opts svnlib.LogOptions, handler func(svnlib.LogEntry) error) error {
	if len(opts.Paths) != 1 {
		return fmt.Errorf("log of %d paths: %w", len(opts.Paths), ErrUnsupported)
	}

	entries, err := s.history(ctx, opts)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		err = ctx.Err()
		if err != nil {
			return err
		}

		err = handler(entry)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) history(ctx context.Context, opts svnlib.LogOptions) ([]svnlib.LogEntry, error) {
	r := s.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	wc, name, err := s.resolve(ctx, opts.Paths[0])
	if err != nil {
		return nil, err
	}

	start, err := r.concrete(opts.Start, wc.base)
	if err != nil {
		return nil, err
	}

	end := opts.End
	if end == svnlib.RevisionUnspecified {
		end = 1
	}

	end, err = r.concrete(end, wc.base)
	if err != nil {
		return nil, err
	}

	if start < end {
		return nil, fmt.Errorf("log %s:%s: %w", start, end, ErrUnsupported)
	}

	var entries []svnlib.LogEntry

	target := wc.repoPath(name)

	for rev := start; rev >= end && rev > 0; rev-- {
		if opts.Limit > 0 && len(entries) >= opts.Limit {
			break
		}

		if _, exists := r.revs[rev].tree[target]; !exists {
			break
		}

		entry := r.revs[rev].entry
		touched, origin := touches(entry.ChangedPaths, target)

		if touched {
			if opts.DiscoverChangedPaths {
				entry.ChangedPaths = append([]svnlib.ChangedPath(nil), entry.ChangedPaths...)
			} else {
				entry.ChangedPaths = nil
			}

			entries = append(entries, entry)
		}

		if origin == nil {
			continue
		}

		if !origin.IsCopy() || opts.StopOnCopy {
			break
		}

		target = origin.CopyFromPath + strings.TrimPrefix(target, origin.Path)
		rev = origin.CopyFromRev + 1
	}

	return entries, nil
}

// touches reports whether a commit changed target or anything below it, and
// returns the change that created target, if the commit did.
func touches(changes []svnlib.ChangedPath, target string) (bool, *svnlib.ChangedPath) {
	var (
		touched bool
		origin  *svnlib.ChangedPath
	)

	for i := range changes {
		c := &changes[i]

		if c.Path == target || strings.HasPrefix(c.Path, target+"/") {
			touched = true
		}

		created := c.Action == svnlib.ChangeAdded || c.Action == svnlib.ChangeReplaced
		if created && (c.Path == target || c.Path == "/" || strings.HasPrefix(target, c.Path+"/")) {
			touched = true

			if origin == nil || len(c.Path) > len(origin.Path) {
				origin = c
			}
		}
	}

	return touched, origin
}

// Diff compares the repository content at opts.From with the working files.
func (s *Session) Diff(ctx context.Context, localPath string, opts svnlib.DiffOptions) (string, error) {
	r := s.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	wc, name, err := s.resolve(ctx, localPath)
	if err != nil {
		return "", err
	}

	if opts.To != svnlib.RevisionWorking && opts.To != svnlib.RevisionUnspecified {
		return "", fmt.Errorf("diff to %s: %w", opts.To, ErrUnsupported)
	}

	from, err := r.concrete(opts.From, wc.base)
	if err != nil {
		return "", err
	}

	var sb strings.Builder

	for _, file := range wc.diffTargets(r.revs[from].tree, name, opts.Depth) {
		oldLabel := "revision " + from.String()

		old, inRepo := r.revs[from].tree[wc.repoPath(file)]
		if !inRepo {
			oldLabel = "nonexistent"
			old = &node{}
		}

		current := ""

		if !wc.deleted[file] {
			content, readErr := os.ReadFile(wc.Path(file))
			if readErr != nil && !errors.Is(readErr, fs.ErrNotExist) {
				return "", fmt.Errorf("diff %s: %w", file, readErr)
			}

			current = string(content)
		}

		sb.WriteString(svnlib.UnifiedDiff(wc.Path(file), oldLabel, "working copy", old.text, current))
	}

	return sb.String(), nil
}

// diffTargets lists the files below name that exist in the old tree or are
// versioned in the working copy. Callers hold mu.
func (wc *WorkingCopy) diffTargets(oldTree map[string]*node, name string, depth svnlib.Depth) []string {
	seen := make(map[string]bool)

	within := func(file string) bool {
		if name == "." || file == name {
			return true
		}

		if !strings.HasPrefix(file, name+"/") {
			return false
		}

		switch depth {
		case svnlib.DepthEmpty:
			return false
		case svnlib.DepthFiles, svnlib.DepthImmediates:
			return !strings.Contains(strings.TrimPrefix(file, name+"/"), "/")
		default:
			return true
		}
	}

	prefix := wc.url + "/"

	for p, n := range oldTree {
		if n.kind == svnlib.NodeFile && strings.HasPrefix(p, prefix) {
			file := strings.TrimPrefix(p, prefix)
			seen[file] = within(file)
		}
	}

	for file, n := range wc.pristine {
		if n.kind == svnlib.NodeFile && !wc.deleted[file] {
			seen[file] = within(file)
		}
	}

	for file := range wc.added {
		seen[file] = within(file)
	}

	files := make([]string, 0, len(seen))

	for file, ok := range seen {
		if ok {
			files = append(files, file)
		}
	}

	sort.Strings(files)

	return files
}

// Annotate delivers the pristine blame of a versioned file. Like svn, no line
// is reported for the empty remainder after a final newline.
func (s *Session) Annotate(ctx context.Context, localPath string, _ svnlib.AnnotateOptions, handler func(svnlib.BlameLine) error) error {
	r := s.repo

	live := r.live.Add(1)
	defer r.live.Add(-1)

	for {
		peak := r.maxLive.Load()
		if live <= peak || r.maxLive.CompareAndSwap(peak, live) {
			break
		}
	}

	blame, err := s.pristineBlame(ctx, localPath)
	if err != nil {
		return err
	}

	for _, line := range blame {
		err = ctx.Err()
		if err != nil {
			return err
		}

		err = handler(line)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Session) pristineBlame(ctx context.Context, localPath string) ([]svnlib.BlameLine, error) {
	r := s.repo

	r.mu.Lock()
	defer r.mu.Unlock()

	wc, name, err := s.resolve(ctx, localPath)
	if err != nil {
		return nil, err
	}

	n, ok := wc.pristine[name]
	if !ok || n.kind != svnlib.NodeFile {
		return nil, fmt.Errorf("blame %s: %w", name, svnlib.ErrNotFound)
	}

	return append([]svnlib.BlameLine(nil), n.blame...), nil
}

// resolve finds the working copy holding localPath and the slash separated
// name inside it. Callers hold mu.
func (s *Session) resolve(ctx context.Context, localPath string) (*WorkingCopy, string, error) {
	if s.closed.Load() {
		return nil, "", ErrSessionClosed
	}

	err := ctx.Err()
	if err != nil {
		return nil, "", err
	}

	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", localPath, err)
	}

	if fault, ok := s.repo.faults[abs]; ok {
		return nil, "", fault
	}

	var (
		best *WorkingCopy
		rel  string
	)

	for dir, wc := range s.repo.wcs {
		r, relErr := filepath.Rel(dir, abs)
		if relErr != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
			continue
		}

		if best == nil || len(dir) > len(best.dir) {
			best, rel = wc, r
		}
	}

	if best == nil {
		return nil, "", fmt.Errorf("%s: %w", localPath, svnlib.ErrNotWorkingCopy)
	}

	return best, path.Clean(filepath.ToSlash(rel)), nil
}

// concrete maps symbolic revisions onto numbers. Callers hold mu.
func (r *Repository) concrete(rev, base svnlib.Revision) (svnlib.Revision, error) {
	switch rev {
	case svnlib.RevisionUnspecified, svnlib.RevisionBase, svnlib.RevisionWorking:
		return base, nil
	case svnlib.RevisionHead:
		return r.head(), nil
	}

	if rev < 0 || rev > r.head() {
		return 0, fmt.Errorf("no such revision %s: %w", rev, svnlib.ErrNotFound)
	}

	return rev, nil
}
