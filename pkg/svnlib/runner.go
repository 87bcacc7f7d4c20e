package svnlib

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
)

const defaultBinary = "svn"

var (
	safeArg       = regexp.MustCompile(`^[a-z][a-z-]*$`)
	credentialURL = regexp.MustCompile(`([a-z+]+://)[^\s@/]+@`)
)

// Invocation is one svn command line. Stdin is written to the process and
// carries the password, so it never shows up in the process arguments.
type Invocation struct {
	Args  []string
	Env   []string
	Stdin string
}

// Runner executes one svn command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, inv Invocation) ([]byte, error)
}

// CommandError is returned when the svn process exits with a failure.
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("svn %s: %s", e.Command, e.Stderr)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the svn binary found on PATH or at Binary.
type ExecRunner struct {
	Binary string
}

// NewExecRunner creates a runner for the given binary, defaulting to "svn".
func NewExecRunner(binary string) *ExecRunner {
	if strings.TrimSpace(binary) == "" {
		binary = defaultBinary
	}

	return &ExecRunner{Binary: binary}
}

// Run executes the command. Stderr is carried in the returned CommandError.
func (e *ExecRunner) Run(ctx context.Context, inv Invocation) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.Binary, inv.Args...)
	cmd.Env = append(os.Environ(), inv.Env...)
	// svn prints localized messages otherwise and error codes are what we match on.
	cmd.Env = append(cmd.Env, "LC_ALL=C")

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if inv.Stdin != "" {
		cmd.Stdin = strings.NewReader(inv.Stdin)
	}

	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}

		return nil, &CommandError{Command: sanitizeArgs(inv.Args), Stderr: redactURLs(msg), Err: err}
	}

	return stdout.Bytes(), nil
}

// sanitizeArgs keeps the leading subcommand tokens and drops anything that could be a path or secret.
func sanitizeArgs(args []string) string {
	for _, arg := range args {
		if safeArg.MatchString(arg) {
			return arg
		}
	}

	return "<redacted>"
}

func redactURLs(s string) string {
	return credentialURL.ReplaceAllString(s, "${1}"+redacted+"@")
}
