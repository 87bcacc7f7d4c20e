package svnlib

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Error codes printed by svn that map onto the package sentinels.
var (
	notWorkingCopyCodes = []string{"E155007", "W155007", "E155036"}
	notFoundCodes       = []string{"W155010", "E155010", "E200009", "E170000", "E160013", "E200005"}
)

const ignoreWhitespaceFlag = "--ignore-all-space"

// CLIClient implements Client on top of the svn command-line client.
// Each client owns a private configuration directory so credentials are
// neither read from nor cached into the user's profile.
type CLIClient struct {
	runner    Runner
	auth      Auth
	configDir string
}

// NewCLIClient opens a session. Close must be called to remove the session directory.
func NewCLIClient(runner Runner, auth Auth) (*CLIClient, error) {
	dir, err := os.MkdirTemp("", "scmsvn-session-")
	if err != nil {
		return nil, fmt.Errorf("create session config dir: %w", err)
	}

	return &CLIClient{runner: runner, auth: auth, configDir: dir}, nil
}

// Close removes the session configuration directory.
func (c *CLIClient) Close() error {
	if c.configDir == "" {
		return nil
	}

	err := os.RemoveAll(c.configDir)
	c.configDir = ""

	if err != nil {
		return fmt.Errorf("remove session config dir: %w", err)
	}

	return nil
}

// Status returns the content status of path. Missing and unversioned paths
// yield StatusUnversioned without error.
func (c *CLIClient) Status(ctx context.Context, path string) (Status, error) {
	out, err := c.run(ctx, "status", "--xml", "--verbose", "--depth", "empty", path)
	if errors.Is(err, ErrNotFound) {
		return Status{Kind: StatusUnversioned, Revision: NoRevision}, nil
	}

	if err != nil {
		return Status{}, err
	}

	var doc statusXML

	err = xml.Unmarshal(out, &doc)
	if err != nil {
		return Status{}, fmt.Errorf("parse status of %s: %w", path, err)
	}

	for _, target := range doc.Targets {
		if len(target.Entries) == 0 {
			continue
		}

		wc := target.Entries[0].WCStatus

		return Status{Kind: statusKind(wc.Item), Revision: parseRevision(wc.Revision)}, nil
	}

	return Status{Kind: StatusUnversioned, Revision: NoRevision}, nil
}

// Info returns the repository coordinates of path.
func (c *CLIClient) Info(ctx context.Context, path string) (Info, error) {
	out, err := c.run(ctx, "info", "--xml", path)
	if err != nil {
		return Info{}, err
	}

	var doc infoXML

	err = xml.Unmarshal(out, &doc)
	if err != nil {
		return Info{}, fmt.Errorf("parse info of %s: %w", path, err)
	}

	if len(doc.Entries) == 0 {
		return Info{}, fmt.Errorf("info of %s: %w", path, ErrNotFound)
	}

	entry := doc.Entries[0]

	return Info{
		URL:            entry.URL,
		RepositoryRoot: entry.Repository.Root,
		Revision:       parseRevision(entry.Revision),
		Kind:           ParseNodeKind(entry.Kind),
	}, nil
}

// Log streams log entries newest first.
func (c *CLIClient) Log(ctx context.Context, opts LogOptions, handler func(LogEntry) error) error {
	args := []string{"log", "--xml"}

	if opts.DiscoverChangedPaths {
		args = append(args, "--verbose")
	}

	if opts.StopOnCopy {
		args = append(args, "--stop-on-copy")
	}

	if rng := logRange(opts.Start, opts.End); rng != "" {
		args = append(args, "--revision", rng)
	}

	if opts.Limit > 0 {
		args = append(args, "--limit", strconv.Itoa(opts.Limit))
	}

	args = append(args, opts.Paths...)

	out, err := c.run(ctx, args...)
	if err != nil {
		return err
	}

	return decodeLog(bytes.NewReader(out), handler)
}

// Diff returns the unified diff of path between opts.From and opts.To.
func (c *CLIClient) Diff(ctx context.Context, path string, opts DiffOptions) (string, error) {
	args := []string{"diff", "--internal-diff", "--depth", opts.Depth.String()}

	rng := revisionArg(opts.From)
	if opts.To != RevisionWorking && opts.To != RevisionUnspecified {
		rng += ":" + revisionArg(opts.To)
	}

	args = append(args, "--revision", rng)

	if opts.IgnoreProperties {
		args = append(args, "--ignore-properties")
	}

	args = append(args, path)

	out, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}

	return string(out), nil
}

// Annotate streams one BlameLine per line of path.
func (c *CLIClient) Annotate(ctx context.Context, path string, opts AnnotateOptions, handler func(BlameLine) error) error {
	args := []string{"blame", "--xml", "--revision", revisionArg(opts.From) + ":" + revisionArg(opts.To)}

	var extensions []string
	if opts.IgnoreWhitespace {
		extensions = append(extensions, ignoreWhitespaceFlag)
	}

	if opts.IgnoreEOL {
		extensions = append(extensions, "--ignore-eol-style")
	}

	if len(extensions) > 0 {
		args = append(args, "--extensions", strings.Join(extensions, " "))
	}

	args = append(args, path)

	out, err := c.run(ctx, args...)
	if err != nil {
		return err
	}

	var doc blameXML

	err = xml.Unmarshal(out, &doc)
	if err != nil {
		return fmt.Errorf("parse blame of %s: %w", path, err)
	}

	for _, target := range doc.Targets {
		for _, entry := range target.Entries {
			line, lineErr := entry.blameLine()
			if lineErr != nil {
				return fmt.Errorf("parse blame of %s: %w", path, lineErr)
			}

			err = handler(line)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (c *CLIClient) run(ctx context.Context, args ...string) ([]byte, error) {
	full := make([]string, 0, len(args)+8)
	full = append(full, args[0], "--non-interactive", "--no-auth-cache")

	if c.configDir != "" {
		full = append(full, "--config-dir", c.configDir)
	}

	full = append(full, c.auth.Args()...)
	full = append(full, args[1:]...)

	out, err := c.runner.Run(ctx, Invocation{Args: full, Env: c.auth.Env(), Stdin: c.auth.Stdin()})
	if err != nil {
		return nil, c.classify(err)
	}

	return out, nil
}

// classify maps svn error codes onto the package sentinels.
func (c *CLIClient) classify(err error) error {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return err
	}

	cmdErr.Stderr = c.auth.Redact(cmdErr.Stderr)

	switch {
	case containsAny(cmdErr.Stderr, notWorkingCopyCodes):
		return fmt.Errorf("%w: %w", ErrNotWorkingCopy, cmdErr)
	case containsAny(cmdErr.Stderr, notFoundCodes):
		return fmt.Errorf("%w: %w", ErrNotFound, cmdErr)
	default:
		return cmdErr
	}
}

func containsAny(s string, codes []string) bool {
	for _, code := range codes {
		if strings.Contains(s, code) {
			return true
		}
	}

	return false
}

func revisionArg(r Revision) string {
	switch r {
	case RevisionUnspecified, RevisionBase, RevisionWorking:
		return "BASE"
	default:
		return r.String()
	}
}

func logRange(start, end Revision) string {
	if start == RevisionUnspecified && end == RevisionUnspecified {
		return ""
	}

	if end == RevisionUnspecified {
		end = 1
	}

	return revisionArg(start) + ":" + revisionArg(end)
}

func parseRevision(s string) Revision {
	if s == "" {
		return NoRevision
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return NoRevision
	}

	return Revision(n)
}

func statusKind(item string) StatusKind {
	switch item {
	case "normal":
		return StatusClean
	case "added":
		return StatusAdded
	case "deleted":
		return StatusDeleted
	case "unversioned", "ignored", "none", "external":
		return StatusUnversioned
	default:
		// modified, replaced, conflicted, missing, obstructed, incomplete.
		return StatusModified
	}
}

// decodeLog streams logentry elements so large histories are not held twice.
func decodeLog(r io.Reader, handler func(LogEntry) error) error {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("parse log: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "logentry" {
			continue
		}

		var raw logEntryXML

		err = dec.DecodeElement(&raw, &start)
		if err != nil {
			return fmt.Errorf("parse log entry: %w", err)
		}

		entry, err := raw.logEntry()
		if err != nil {
			return err
		}

		err = handler(entry)
		if err != nil {
			return err
		}
	}
}

type statusXML struct {
	Targets []struct {
		Path    string `xml:"path,attr"`
		Entries []struct {
			Path     string `xml:"path,attr"`
			WCStatus struct {
				Item     string `xml:"item,attr"`
				Revision string `xml:"revision,attr"`
			} `xml:"wc-status"`
		} `xml:"entry"`
	} `xml:"target"`
}

type infoXML struct {
	Entries []struct {
		Kind       string `xml:"kind,attr"`
		Revision   string `xml:"revision,attr"`
		URL        string `xml:"url"`
		Repository struct {
			Root string `xml:"root"`
		} `xml:"repository"`
	} `xml:"entry"`
}

type logEntryXML struct {
	Revision string `xml:"revision,attr"`
	Author   string `xml:"author"`
	Date     string `xml:"date"`
	Message  string `xml:"msg"`
	Paths    []struct {
		Action       string `xml:"action,attr"`
		Kind         string `xml:"kind,attr"`
		CopyFromPath string `xml:"copyfrom-path,attr"`
		CopyFromRev  string `xml:"copyfrom-rev,attr"`
		Path         string `xml:",chardata"`
	} `xml:"paths>path"`
}

func (l logEntryXML) logEntry() (LogEntry, error) {
	entry := LogEntry{
		Revision: parseRevision(l.Revision),
		Author:   l.Author,
		Message:  l.Message,
	}

	if l.Date != "" {
		date, err := time.Parse(time.RFC3339Nano, l.Date)
		if err != nil {
			return LogEntry{}, fmt.Errorf("parse date of r%s: %w", l.Revision, err)
		}

		entry.Date = date
	}

	for _, p := range l.Paths {
		action, err := ParseChangeKind(p.Action)
		if err != nil {
			return LogEntry{}, fmt.Errorf("r%s: %w", l.Revision, err)
		}

		entry.ChangedPaths = append(entry.ChangedPaths, ChangedPath{
			Path:         strings.TrimSpace(p.Path),
			Action:       action,
			Kind:         ParseNodeKind(p.Kind),
			CopyFromPath: p.CopyFromPath,
			CopyFromRev:  parseRevision(p.CopyFromRev),
		})
	}

	return entry, nil
}

type blameXML struct {
	Targets []struct {
		Entries []blameEntryXML `xml:"entry"`
	} `xml:"target"`
}

type blameEntryXML struct {
	Commit *struct {
		Revision string `xml:"revision,attr"`
		Author   string `xml:"author"`
		Date     string `xml:"date"`
	} `xml:"commit"`
}

func (b blameEntryXML) blameLine() (BlameLine, error) {
	// Lines with local modifications carry no commit element.
	if b.Commit == nil {
		return BlameLine{}, nil
	}

	line := BlameLine{Revision: b.Commit.Revision, Author: b.Commit.Author}

	if b.Commit.Date != "" {
		date, err := time.Parse(time.RFC3339Nano, b.Commit.Date)
		if err != nil {
			return BlameLine{}, fmt.Errorf("parse date of r%s: %w", b.Commit.Revision, err)
		}

		line.Date = date
	}

	return line, nil
}
