// Package commands implements the scmsvn subcommands.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for an unsupported --format value.
var ErrUnknownFormat = errors.New("unknown output format")

// Deps are the collaborators a command tree runs with. Zero values select
// the svn binary and the process stdout.
type Deps struct {
	Sessions scm.SessionFactory
	Stdout   io.Writer
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	verbose    bool
	format     string
	noColor    bool
}

// NewRootCommand builds the scmsvn command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}

	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "scmsvn",
		Short: "Subversion branch and blame inspection",
		Long: `scmsvn answers branch questions about Subversion working copies.

Commands:
  fork-point     Revision and path the branch was copied from
  changed-files  Files added or modified since the fork point
  changed-lines  Lines changed since the fork point
  blame          Last revision, author and date of every line`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.format {
			case FormatText, FormatJSON, FormatYAML:
			default:
				return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.format)
			}

			if opts.noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}

			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ./.scmsvn.yaml or ~/.scmsvn.yaml)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.StringVarP(&opts.format, "format", "f", FormatText, "output format: text, json or yaml")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newForkPointCommand(deps, opts),
		newChangedFilesCommand(deps, opts),
		newChangedLinesCommand(deps, opts),
		newBlameCommand(deps, opts),
		newVersionCommand(deps),
	)

	return rootCmd
}
