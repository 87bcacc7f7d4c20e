package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
	"github.com/Sumatoshi-tech/scmsvn/pkg/version"
)

const defaultRoot = "."

func newForkPointCommand(deps Deps, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fork-point [path]",
		Short: "Show the revision and path the branch was copied from",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			location := argOrDefault(args)

			return run(cmd, deps, opts, func(ctx context.Context, a *app) error {
				fp, err := a.provider.ResolveForkPoint(ctx, location)
				if err != nil {
					return err
				}

				return a.out.forkPoint(location, fp)
			})
		},
	}
}

func newChangedFilesCommand(deps Deps, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changed-files [root]",
		Short: "List files added or modified since the branch forked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := workingCopyRoot(argOrDefault(args))

			return run(cmd, deps, opts, func(ctx context.Context, a *app) error {
				files, err := a.provider.ChangedFiles(ctx, root)
				if err != nil {
					return err
				}

				return a.out.changedFiles(root, files)
			})
		},
	}
}

func newChangedLinesCommand(deps Deps, opts *globalOptions) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "changed-lines [root]",
		Short: "Show the lines changed since the branch forked",
		Long: `Show the lines changed since the branch forked.

Without --file every file reported by changed-files is inspected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := workingCopyRoot(argOrDefault(args))

			return run(cmd, deps, opts, func(ctx context.Context, a *app) error {
				candidates, err := candidateFiles(ctx, a, root, files)
				if err != nil {
					return err
				}

				if candidates == nil {
					return a.out.changedLines(root, nil)
				}

				lines, err := a.provider.ChangedLines(ctx, root, candidates)
				if err != nil {
					return err
				}

				return a.out.changedLines(root, lines)
			})
		},
	}

	cmd.Flags().StringSliceVar(&files, "file", nil, "restrict to these files (repeatable)")

	return cmd
}

func candidateFiles(ctx context.Context, a *app, root string, files []string) (scm.PathSet, error) {
	if len(files) == 0 {
		return a.provider.ChangedFiles(ctx, root)
	}

	set := make(scm.PathSet, len(files))
	for _, f := range files {
		set.Add(f)
	}

	return set, nil
}

func newBlameCommand(deps Deps, opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blame <file>...",
		Short: "Show the last revision, author and date of every line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]scm.InputFile, 0, len(args))

			for _, path := range args {
				input, err := scm.NewInputFile(path)
				if err != nil {
					return err
				}

				inputs = append(inputs, input)
			}

			return run(cmd, deps, opts, func(ctx context.Context, a *app) error {
				results, err := a.provider.Blame(ctx, inputs)
				if err != nil {
					return err
				}

				return a.out.blame(inputs, results)
			})
		},
	}
}

func newVersionCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(deps.Stdout, version.String())
		},
	}
}

func argOrDefault(args []string) string {
	if len(args) == 0 {
		return defaultRoot
	}

	return args[0]
}

// workingCopyRoot climbs to the enclosing working copy root, if any.
func workingCopyRoot(dir string) string {
	root, ok := scm.FindWorkingCopyRoot(dir)
	if !ok {
		return dir
	}

	return root
}
