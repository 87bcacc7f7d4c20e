package scm

import (
	"context"
	"os"
	"path/filepath"
)

// ProviderKey identifies the Subversion provider.
const ProviderKey = "svn"

const adminDirName = ".svn"

// ChangeDetector is the capability every SCM provider offers.
type ChangeDetector interface {
	Key() string
	Supports(dir string) bool
	Blame(ctx context.Context, files []InputFile) (map[string]BlameResult, error)
}

// BranchAware is implemented by providers that can compare a branch with its origin.
type BranchAware interface {
	ChangeDetector
	ResolveForkPoint(ctx context.Context, path string) (*ForkPoint, error)
	ChangedFiles(ctx context.Context, root string) (PathSet, error)
	ChangedLines(ctx context.Context, root string, candidates PathSet) (ChangedLineMap, error)
}

// AsBranchAware probes d for branch comparison support.
func AsBranchAware(d ChangeDetector) (BranchAware, bool) {
	ba, ok := d.(BranchAware)

	return ba, ok
}

// Provider is the Subversion change detector.
type Provider struct {
	forks  *ForkPointResolver
	files  *BranchChangeClassifier
	lines  *ChangedLinesExtractor
	blamer *BlameOrchestrator
}

var _ BranchAware = (*Provider)(nil)

// NewProvider creates a provider whose components share cfg.
func NewProvider(cfg Config) *Provider {
	cfg = cfg.withDefaults()

	return &Provider{
		forks:  NewForkPointResolver(cfg),
		files:  NewBranchChangeClassifier(cfg),
		lines:  NewChangedLinesExtractor(cfg),
		blamer: NewBlameOrchestrator(cfg),
	}
}

// Key returns ProviderKey.
func (p *Provider) Key() string { return ProviderKey }

// Supports reports whether dir or one of its ancestors holds a .svn directory.
func (p *Provider) Supports(dir string) bool {
	_, ok := FindWorkingCopyRoot(dir)

	return ok
}

// FindWorkingCopyRoot returns the nearest directory at or above dir that holds
// a .svn directory.
func FindWorkingCopyRoot(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}

	for {
		info, statErr := os.Stat(filepath.Join(abs, adminDirName))
		if statErr == nil && info.IsDir() {
			return abs, true
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}

		abs = parent
	}
}

// Blame delegates to the BlameOrchestrator.
func (p *Provider) Blame(ctx context.Context, files []InputFile) (map[string]BlameResult, error) {
	return p.blamer.Blame(ctx, files)
}

// ResolveForkPoint delegates to the ForkPointResolver.
func (p *Provider) ResolveForkPoint(ctx context.Context, path string) (*ForkPoint, error) {
	return p.forks.Find(ctx, path)
}

// ChangedFiles delegates to the BranchChangeClassifier.
func (p *Provider) ChangedFiles(ctx context.Context, root string) (PathSet, error) {
	return p.files.ChangedFiles(ctx, root)
}

// ChangedLines delegates to the ChangedLinesExtractor.
func (p *Provider) ChangedLines(ctx context.Context, root string, candidates PathSet) (ChangedLineMap, error) {
	return p.lines.ChangedLines(ctx, root, candidates)
}
