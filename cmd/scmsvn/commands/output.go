package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/scmsvn/pkg/scm"
)

const yamlIndent = 2

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format string
	// now anchors relative dates.
	now func() time.Time
}

func newPrinter(w io.Writer, format string) *printer {
	return &printer{w: w, format: format, now: time.Now}
}

// structured writes v as JSON or YAML and reports whether it did.
func (p *printer) structured(v any) (bool, error) {
	switch p.format {
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")

		err := enc.Encode(v)
		if err != nil {
			return true, fmt.Errorf("encode json: %w", err)
		}

		return true, nil
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(yamlIndent)

		err := enc.Encode(v)
		if err != nil {
			return true, fmt.Errorf("encode yaml: %w", err)
		}

		return true, enc.Close()
	}

	return false, nil
}

// forkPointView is the serialized form of a fork point.
type forkPointView struct {
	Commit     string   `json:"commit"     yaml:"commit"`
	References []string `json:"references" yaml:"references"`
}

func (p *printer) forkPoint(location string, fp *scm.ForkPoint) error {
	var view *forkPointView
	if fp != nil {
		view = &forkPointView{Commit: fp.Commit, References: fp.References}
	}

	done, err := p.structured(view)
	if done {
		return err
	}

	if fp == nil {
		color.New(color.FgYellow).Fprintf(p.w, "%s has no fork point\n", location)

		return nil
	}

	color.New(color.FgGreen).Fprintf(p.w, "%s forked at r%s from %s\n", location, fp.Commit, strings.Join(fp.References, ", "))

	return nil
}

func (p *printer) changedFiles(root string, files scm.PathSet) error {
	var view []string
	if files != nil {
		view = files.Sorted()
	}

	done, err := p.structured(view)
	if done {
		return err
	}

	if files == nil {
		color.New(color.FgYellow).Fprintf(p.w, "changed files of %s are unknown\n", root)

		return nil
	}

	for _, f := range view {
		fmt.Fprintln(p.w, f)
	}

	color.New(color.FgGreen).Fprintf(p.w, "%s changed since the fork point\n", plural(len(view), "file"))

	return nil
}

func (p *printer) changedLines(root string, lines scm.ChangedLineMap) error {
	var view map[string][]int
	if lines != nil {
		view = make(map[string][]int, len(lines))
		for path, set := range lines {
			view[path] = set.Sorted()
		}
	}

	done, err := p.structured(view)
	if done {
		return err
	}

	if lines == nil {
		color.New(color.FgYellow).Fprintf(p.w, "changed lines of %s are unknown\n", root)

		return nil
	}

	paths := make(scm.PathSet, len(view))
	for path := range view {
		paths.Add(path)
	}

	tbl := newTable()
	tbl.AppendHeader(table.Row{"File", "Lines", "Count"})

	total := 0

	for _, path := range paths.Sorted() {
		tbl.AppendRow(table.Row{path, lineRanges(view[path]), len(view[path])})
		total += len(view[path])
	}

	tbl.AppendFooter(table.Row{plural(len(view), "file"), "", total})
	fmt.Fprintln(p.w, tbl.Render())

	return nil
}

// blameLineView is the serialized form of one blamed line.
type blameLineView struct {
	Revision string    `json:"revision" yaml:"revision"`
	Author   string    `json:"author"   yaml:"author"`
	Date     time.Time `json:"date"     yaml:"date"`
}

func (p *printer) blame(files []scm.InputFile, results map[string]scm.BlameResult) error {
	view := make(map[string][]blameLineView, len(results))

	for path, result := range results {
		lines := make([]blameLineView, len(result))
		for i, l := range result {
			lines[i] = blameLineView{Revision: l.Revision, Author: l.Author, Date: l.Date}
		}

		view[path] = lines
	}

	done, err := p.structured(view)
	if done {
		return err
	}

	for _, file := range files {
		result, ok := results[file.Path]
		if !ok {
			color.New(color.FgYellow).Fprintf(p.w, "%s: skipped\n", file.Path)

			continue
		}

		color.New(color.Bold).Fprintf(p.w, "%s\n", file.Path)

		tbl := newTable()
		tbl.AppendHeader(table.Row{"Line", "Revision", "Author", "Date"})

		for i, l := range result {
			tbl.AppendRow(table.Row{i + 1, revisionLabel(l.Revision), l.Author, p.relative(l.Date)})
		}

		fmt.Fprintln(p.w, tbl.Render())
	}

	return nil
}

func (p *printer) relative(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return humanize.RelTime(t, p.now(), "ago", "from now")
}

func newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	return tbl
}

func revisionLabel(rev string) string {
	if rev == "" {
		return "-"
	}

	return "r" + rev
}

// lineRanges renders sorted line numbers compactly, e.g. "2-3, 11".
func lineRanges(lines []int) string {
	parts := make([]string, 0, len(lines))

	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}

		if i == j {
			parts = append(parts, strconv.Itoa(lines[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", lines[i], lines[j]))
		}

		i = j + 1
	}

	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}

	return humanize.Comma(int64(n)) + " " + noun + "s"
}
