package scm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// ForkPointResolver finds the revision and path a working copy's branch was copied from.
type ForkPointResolver struct {
	cfg Config
}

// NewForkPointResolver creates a resolver.
func NewForkPointResolver(cfg Config) *ForkPointResolver {
	return &ForkPointResolver{cfg: cfg.withDefaults()}
}

// Find returns the fork point of location, or nil when its lineage has no
// copy origin (trunk). Errors come only from the backend.
func (r *ForkPointResolver) Find(ctx context.Context, location string) (*ForkPoint, error) {
	ctx, op := startOperation(ctx, r.cfg, "fork_point", location)

	fp, err := withSession(ctx, r.cfg, func(client svnlib.Client) (*ForkPoint, error) {
		return resolveForkPoint(ctx, client, r.cfg.Logger, location)
	})

	switch {
	case err != nil:
		op.end(statusError, err)
	case fp == nil:
		op.end(statusEmpty, nil)
	default:
		op.end(statusOK, nil)
	}

	return fp, err
}

func resolveForkPoint(ctx context.Context, client svnlib.Client, logger *slog.Logger, location string) (*ForkPoint, error) {
	st, err := client.Status(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("status of %s: %w", location, err)
	}

	started := time.Now()

	last, err := svnlib.WalkToCopy(ctx, client, location, st.Revision)
	if err != nil {
		return nil, fmt.Errorf("fork point of %s: %w", location, err)
	}

	logger.DebugContext(ctx, "walked history to copy origin",
		"path", location, "entries", last.Visited, "duration", time.Since(started))

	// Only the first changed path is consulted: it is the branch root itself.
	change, ok := last.FirstChange()
	if !ok || !change.IsCopy() {
		return nil, nil //nolint:nilnil // nil means no fork point.
	}

	refs := make([]string, 0, 1)
	if change.CopyFromPath != "" {
		refs = append(refs, change.CopyFromPath)
	}

	return &ForkPoint{Commit: change.CopyFromRev.String(), References: refs}, nil
}
