package scm

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/scmsvn/pkg/observability"
	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

// BlameOrchestrator attributes every line of a batch of files to the revision
// that last changed it.
type BlameOrchestrator struct {
	cfg Config
}

// NewBlameOrchestrator creates an orchestrator.
func NewBlameOrchestrator(cfg Config) *BlameOrchestrator {
	return &BlameOrchestrator{cfg: cfg.withDefaults()}
}

// blameSlot is written once by the task that owns the file.
type blameSlot struct {
	result BlameResult
	done   bool
}

// Blame returns one result per file that is versioned and has no local
// edits; other files are skipped without error. The first failing file
// aborts the batch and its error is returned.
func (b *BlameOrchestrator) Blame(ctx context.Context, files []InputFile) (map[string]BlameResult, error) {
	ctx, op := startOperation(ctx, b.cfg, "blame", "")

	results, err := withSession(ctx, b.cfg, func(client svnlib.Client) (map[string]BlameResult, error) {
		return b.blameAll(ctx, client, files)
	})

	op.end(resultStatus(len(results), err), err)

	return results, err
}

func (b *BlameOrchestrator) blameAll(ctx context.Context, client svnlib.Client, files []InputFile) (map[string]BlameResult, error) {
	slots := make([]blameSlot, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	for i, file := range files {
		g.Go(func() error {
			result, outcome, err := b.blameFile(gctx, client, file)
			b.cfg.Metrics.RecordBlamed(gctx, outcome)

			if err != nil {
				return err
			}

			if outcome == observability.BlameOutcomeBlamed {
				slots[i] = blameSlot{result: result, done: true}
			}

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}

	results := make(map[string]BlameResult, len(files))

	for i, slot := range slots {
		if slot.done {
			results[files[i].Path] = slot.result
		}
	}

	b.cfg.Logger.DebugContext(ctx, "blame batch done", "files", len(files), "blamed", len(results))

	return results, nil
}

func (b *BlameOrchestrator) blameFile(ctx context.Context, client svnlib.Client, file InputFile) (BlameResult, string, error) {
	st, err := client.Status(ctx, file.Path)
	if errors.Is(err, svnlib.ErrNotFound) {
		st = svnlib.Status{Kind: svnlib.StatusUnversioned, Revision: svnlib.NoRevision}
	} else if err != nil {
		return nil, observability.BlameOutcomeFailed, fmt.Errorf("status of %s: %w", file.Path, err)
	}

	switch {
	case !st.Versioned():
		b.cfg.Logger.DebugContext(ctx, "skipping unversioned file", "path", file.Path)

		return nil, observability.BlameOutcomeUnversioned, nil
	case st.Kind != svnlib.StatusClean:
		b.cfg.Logger.DebugContext(ctx, "skipping locally modified file", "path", file.Path, "status", st.Kind)

		return nil, observability.BlameOutcomeModified, nil
	}

	to := svnlib.RevisionBase
	if st.Revision.IsValid() {
		to = st.Revision
	}

	opts := svnlib.AnnotateOptions{From: 1, To: to, IgnoreWhitespace: true, IgnoreEOL: true}
	lines := make(BlameResult, 0, file.Lines)

	err = client.Annotate(ctx, file.Path, opts, func(line svnlib.BlameLine) error {
		lines = append(lines, line)

		return nil
	})
	if err != nil {
		return nil, observability.BlameOutcomeFailed, fmt.Errorf("blame %s: %w", file.Path, err)
	}

	// svn reports nothing for the empty line after a final newline.
	if len(lines) > 0 && len(lines) == file.Lines-1 {
		lines = append(lines, lines[len(lines)-1])
	}

	return lines, observability.BlameOutcomeBlamed, nil
}
