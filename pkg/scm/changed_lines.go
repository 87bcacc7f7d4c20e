package scm

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/Sumatoshi-tech/scmsvn/pkg/svnlib"
)

const indexSeparatorPrefix = "======="

// ChangedLinesExtractor computes the changed line numbers of files since the branch forked.
type ChangedLinesExtractor struct {
	cfg Config
}

// NewChangedLinesExtractor creates an extractor.
func NewChangedLinesExtractor(cfg Config) *ChangedLinesExtractor {
	return &ChangedLinesExtractor{cfg: cfg.withDefaults()}
}

// ChangedLines returns the lines of candidates that differ between the fork
// revision and the working copy at root. Files outside candidates never
// appear. It returns nil without error when root is not a working copy, and
// an empty map when root has no fork point.
func (e *ChangedLinesExtractor) ChangedLines(ctx context.Context, root string, candidates PathSet) (ChangedLineMap, error) {
	ctx, op := startOperation(ctx, e.cfg, "changed_lines", root)

	lines, err := withSession(ctx, e.cfg, func(client svnlib.Client) (ChangedLineMap, error) {
		return extractChangedLines(ctx, client, root, candidates)
	})

	if isSoftFailure(err) {
		e.cfg.Logger.WarnContext(ctx, "cannot compute changed lines", "path", root, "error", err)
		op.end(statusUnknown, nil)

		return nil, nil
	}

	op.end(resultStatus(len(lines), err), err)

	return lines, err
}

func extractChangedLines(ctx context.Context, client svnlib.Client, root string, candidates PathSet) (ChangedLineMap, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	last, err := svnlib.WalkToCopy(ctx, client, abs, svnlib.NoRevision)
	if err != nil {
		return nil, fmt.Errorf("changed lines of %s: %w", root, err)
	}

	origin, ok := last.FirstChange()
	if !ok || !origin.IsCopy() {
		return ChangedLineMap{}, nil
	}

	text, err := client.Diff(ctx, abs, svnlib.DiffOptions{
		From:             last.Entry.Revision,
		To:               svnlib.RevisionWorking,
		Depth:            svnlib.DepthInfinity,
		IgnoreProperties: true,
	})
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", root, err)
	}

	return parseChangedLines([]byte(text), abs, candidates)
}

// parseChangedLines collects the new-side line numbers of inserted lines for
// every file of a unified diff that is in candidates.
func parseChangedLines(text []byte, root string, candidates PathSet) (ChangedLineMap, error) {
	wanted := make(map[string]string, len(candidates))

	for p := range candidates {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}

		wanted[abs] = p
	}

	files, err := diff.ParseMultiFileDiff(stripHeaderLabels(text))
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	result := ChangedLineMap{}

	for _, fd := range files {
		name := fd.NewName
		if !filepath.IsAbs(name) {
			name = filepath.Join(root, filepath.FromSlash(name))
		}

		key, ok := wanted[filepath.Clean(name)]
		if !ok {
			continue
		}

		set := result[key]
		if set == nil {
			set = LineSet{}
			result[key] = set
		}

		for _, h := range fd.Hunks {
			addedLines(h, set)
		}
	}

	return result, nil
}

// addedLines adds the new-file numbers of the '+' lines of a hunk.
func addedLines(h *diff.Hunk, set LineSet) {
	line := int(h.NewStartLine)

	for _, body := range bytes.Split(bytes.TrimSuffix(h.Body, []byte{'\n'}), []byte{'\n'}) {
		// Some tools trim the single space of empty context lines.
		if len(body) == 0 {
			line++

			continue
		}

		switch body[0] {
		case '+':
			set.Add(line)
			line++
		case ' ':
			line++
		}
	}
}

// stripHeaderLabels removes the "\t(revision N)" and "\t(working copy)"
// suffixes svn writes after the file names of the ---/+++ header lines.
func stripHeaderLabels(text []byte) []byte {
	lines := strings.Split(string(text), "\n")
	header := false

	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, indexSeparatorPrefix):
			header = true
		case header && (strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ")):
			if at := strings.LastIndex(line, "\t("); at >= 0 && strings.HasSuffix(line, ")") {
				lines[i] = line[:at]
			}

			header = strings.HasPrefix(line, "--- ")
		default:
			header = false
		}
	}

	return []byte(strings.Join(lines, "\n"))
}
