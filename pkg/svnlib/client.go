package svnlib

import "context"

// Depth limits how far an operation recurses below its target.
type Depth int

const (
	// DepthInfinity recurses into all descendants.
	DepthInfinity Depth = iota
	// DepthEmpty only covers the target itself.
	DepthEmpty
	// DepthFiles covers the target and its file children.
	DepthFiles
	// DepthImmediates covers the target and all its direct children.
	DepthImmediates
)

func (d Depth) String() string {
	switch d {
	case DepthEmpty:
		return "empty"
	case DepthFiles:
		return "files"
	case DepthImmediates:
		return "immediates"
	default:
		return "infinity"
	}
}

// LogOptions configures a history walk.
type LogOptions struct {
	// Paths are the local paths whose history is walked.
	Paths []string
	// Start is the newest revision; RevisionUnspecified means the working revision.
	Start Revision
	// End is the oldest revision; RevisionUnspecified means revision 1.
	End Revision
	// StopOnCopy halts the walk at the commit that created the path by copy.
	StopOnCopy bool
	// DiscoverChangedPaths fills LogEntry.ChangedPaths.
	DiscoverChangedPaths bool
	// Limit caps the number of entries; values <= 0 mean unbounded.
	Limit int
}

// DiffOptions configures a diff against the working copy.
type DiffOptions struct {
	From             Revision
	To               Revision
	Depth            Depth
	IgnoreProperties bool
}

// AnnotateOptions configures a blame query.
type AnnotateOptions struct {
	From             Revision
	To               Revision
	IgnoreWhitespace bool
	IgnoreEOL        bool
}

// Client is a session against a Subversion backend.
// Log entries are delivered newest first.
// Implementations must be safe for concurrent use; Close releases the session.
type Client interface {
	Status(ctx context.Context, path string) (Status, error)
	Info(ctx context.Context, path string) (Info, error)
	Log(ctx context.Context, opts LogOptions, handler func(LogEntry) error) error
	Diff(ctx context.Context, path string, opts DiffOptions) (string, error)
	Annotate(ctx context.Context, path string, opts AnnotateOptions, handler func(BlameLine) error) error
	Close() error
}
