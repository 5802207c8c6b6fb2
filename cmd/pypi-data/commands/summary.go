package commands

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/pypi-data/cli/pkg/scan"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
)

// writeSummary renders the outcome counts of a scan as a table.
func writeSummary(w io.Writer, summary scan.Summary, skipped int, elapsed time.Duration) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateHeader = false

	tw.AppendHeader(table.Row{"Outcome", "Jobs"})
	tw.AppendRow(table.Row{okColor.Sprint("ok"), humanize.Comma(int64(summary.Succeeded))})

	kinds := make([]scan.ErrorKind, 0, len(summary.ByKind))
	for kind := range summary.ByKind {
		kinds = append(kinds, kind)
	}

	slices.Sort(kinds)

	for _, kind := range kinds {
		tw.AppendRow(table.Row{failColor.Sprint(string(kind)), humanize.Comma(int64(summary.ByKind[kind]))})
	}

	if skipped > 0 {
		tw.AppendRow(table.Row{warnColor.Sprint("skipped repositories"), humanize.Comma(int64(skipped))})
	}

	tw.AppendFooter(table.Row{"total", humanize.Comma(int64(summary.Jobs))})
	tw.Render()

	fmt.Fprintf(w, "\npaths seen: %s, excluded: %s, elapsed: %s\n",
		humanize.Comma(summary.TotalSeen), humanize.Comma(summary.TotalExcluded),
		elapsed.Round(time.Millisecond))
}
