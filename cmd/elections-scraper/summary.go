package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"elections-scraper/internal/app"
)

func printSummary(w io.Writer, indexURL, outputPath string, stats *app.RunStats) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", ""})
	t.AppendRows([]table.Row{
		{"Index URL", indexURL},
		{"Output", outputPath},
		{"Precincts", stats.Precincts},
		{"Parties", stats.Parties},
		{"Written", stats.Written},
		{"Skipped", stats.Skipped},
	})
	if stats.Stored > 0 || stats.Unchanged > 0 {
		t.AppendRows([]table.Row{
			{"Stored", stats.Stored},
			{"Unchanged", stats.Unchanged},
		})
	}
	t.AppendFooter(table.Row{"Duration", stats.Duration.Round(time.Millisecond).String()})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
