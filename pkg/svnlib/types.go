// Package svnlib wraps the Subversion client operations used by the scm package:
// status, info, log, diff and annotate.
package svnlib

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Sentinel errors reported by Client implementations.
var (
	// ErrNotFound means the requested path or revision does not exist.
	ErrNotFound = errors.New("svn: path not found")
	// ErrNotWorkingCopy means the path is not inside a Subversion working copy.
	ErrNotWorkingCopy = errors.New("svn: not a working copy")
)

// Revision is a Subversion revision number.
type Revision int64

// Symbolic and sentinel revisions.
const (
	// NoRevision marks an absent revision, e.g. a change that is not a copy.
	NoRevision Revision = -1
	// RevisionUnspecified lets the backend pick its default.
	RevisionUnspecified Revision = 0
	// RevisionHead is the latest revision in the repository.
	RevisionHead Revision = -2
	// RevisionBase is the pristine revision of a working copy item.
	RevisionBase Revision = -3
	// RevisionWorking is the working copy content including local edits.
	RevisionWorking Revision = -4
)

// IsValid reports whether r is a concrete revision number.
func (r Revision) IsValid() bool { return r > 0 }

func (r Revision) String() string {
	switch r {
	case NoRevision:
		return "none"
	case RevisionUnspecified:
		return "unspecified"
	case RevisionHead:
		return "HEAD"
	case RevisionBase:
		return "BASE"
	case RevisionWorking:
		return "WORKING"
	default:
		return strconv.FormatInt(int64(r), 10)
	}
}

// ChangeKind is the action recorded for a path in a commit.
type ChangeKind int

const (
	// ChangeModified means the path content or properties changed.
	ChangeModified ChangeKind = iota
	// ChangeAdded means the path was created, possibly as a copy.
	ChangeAdded
	// ChangeDeleted means the path was removed.
	ChangeDeleted
	// ChangeReplaced means the path was deleted and re-added in the same commit.
	ChangeReplaced
)

// ParseChangeKind converts the single-letter svn action code.
func ParseChangeKind(code string) (ChangeKind, error) {
	switch code {
	case "M":
		return ChangeModified, nil
	case "A":
		return ChangeAdded, nil
	case "D":
		return ChangeDeleted, nil
	case "R":
		return ChangeReplaced, nil
	default:
		return 0, fmt.Errorf("unknown change action %q", code)
	}
}

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "A"
	case ChangeDeleted:
		return "D"
	case ChangeReplaced:
		return "R"
	default:
		return "M"
	}
}

// NodeKind tells files and directories apart.
type NodeKind int

const (
	// NodeUnknown is reported by old servers that do not send the node kind.
	NodeUnknown NodeKind = iota
	// NodeFile is a versioned file.
	NodeFile
	// NodeDir is a versioned directory.
	NodeDir
)

// ParseNodeKind converts the svn kind attribute.
func ParseNodeKind(kind string) NodeKind {
	switch kind {
	case "file":
		return NodeFile
	case "dir":
		return NodeDir
	default:
		return NodeUnknown
	}
}

func (k NodeKind) String() string {
	switch k {
	case NodeFile:
		return "file"
	case NodeDir:
		return "dir"
	default:
		return "unknown"
	}
}

// ChangedPath is one path touched by a commit.
type ChangedPath struct {
	Path         string
	Action       ChangeKind
	Kind         NodeKind
	CopyFromPath string
	CopyFromRev  Revision
}

// IsCopy reports whether the change records a copy source.
func (c ChangedPath) IsCopy() bool {
	return c.CopyFromRev != NoRevision
}

// LogEntry is one commit delivered by a history walk.
type LogEntry struct {
	Revision     Revision
	Author       string
	Date         time.Time
	Message      string
	ChangedPaths []ChangedPath
}

// StatusKind classifies the local state of a working copy item.
type StatusKind int

const (
	// StatusClean means the item matches its pristine revision.
	StatusClean StatusKind = iota
	// StatusModified means the item carries local edits.
	StatusModified
	// StatusAdded means the item is scheduled for addition.
	StatusAdded
	// StatusDeleted means the item is scheduled for deletion.
	StatusDeleted
	// StatusUnversioned means the item is not under version control or does not exist.
	StatusUnversioned
)

func (k StatusKind) String() string {
	switch k {
	case StatusClean:
		return "normal"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	default:
		return "unversioned"
	}
}

// Status is the typed result of a status query.
type Status struct {
	Kind     StatusKind
	Revision Revision
}

// Versioned reports whether the item is known to version control.
func (s Status) Versioned() bool {
	return s.Kind != StatusUnversioned
}

// Info holds the repository coordinates of a working copy item.
type Info struct {
	URL            string
	RepositoryRoot string
	Revision       Revision
	Kind           NodeKind
}

// BlameLine attributes one line of a file.
type BlameLine struct {
	Revision string
	Author   string
	Date     time.Time
}
