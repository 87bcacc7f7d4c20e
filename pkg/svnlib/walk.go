package svnlib

import (
	"context"
	"fmt"
)

// Walk folds the history stream selected by opts into a single state value.
// The fold sees entries in delivery order, newest first.
func Walk[S any](ctx context.Context, client Client, opts LogOptions, init S, fold func(S, LogEntry) S) (S, error) {
	state := init

	err := client.Log(ctx, opts, func(entry LogEntry) error {
		state = fold(state, entry)

		return nil
	})
	if err != nil {
		return init, fmt.Errorf("walk history: %w", err)
	}

	return state, nil
}

// LastEntry is a fold state keeping the oldest entry visited and a count of entries.
type LastEntry struct {
	Entry   *LogEntry
	Visited int64
}

// KeepLast is the fold function for LastEntry.
func KeepLast(state LastEntry, entry LogEntry) LastEntry {
	return LastEntry{Entry: &entry, Visited: state.Visited + 1}
}

// FirstChange returns the first changed path of the retained entry.
func (l LastEntry) FirstChange() (ChangedPath, bool) {
	if l.Entry == nil || len(l.Entry.ChangedPaths) == 0 {
		return ChangedPath{}, false
	}

	return l.Entry.ChangedPaths[0], true
}

// WalkToCopy walks the history of path down to the commit that created it,
// stopping at the copy origin.
func WalkToCopy(ctx context.Context, client Client, path string, start Revision) (LastEntry, error) {
	opts := LogOptions{
		Paths:                []string{path},
		Start:                start,
		End:                  1,
		StopOnCopy:           true,
		DiscoverChangedPaths: true,
	}

	if !start.IsValid() {
		opts.Start = RevisionUnspecified
		opts.End = RevisionUnspecified
	}

	return Walk(ctx, client, opts, LastEntry{}, KeepLast)
}
