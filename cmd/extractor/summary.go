package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"erisextract/database"
	"erisextract/pipeline"
)

var (
	okText   = color.New(color.FgGreen).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
	failText = color.New(color.FgRed, color.Bold).SprintFunc()
	headText = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// printReport renders the phases and table outcomes of a run.
func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintln(w, headText(fmt.Sprintf("\nRun %s", r.RunID)))
	fmt.Fprintf(w, "File: %s (upload %d, date %s)\n", r.File, r.UploadID, r.Date.Format(database.DateLayout))

	phases := tablewriter.NewWriter(w)
	phases.SetHeader([]string{"Phase", "Duration", "Status"})
	phases.SetAutoFormatHeaders(false)
	for _, p := range r.Phases {
		status := okText("ok")
		if p.Err != "" {
			status = failText(p.Err)
		}
		phases.Append([]string{string(p.Phase), p.Duration.Round(time.Millisecond).String(), status})
	}
	phases.Render()

	if len(r.Tables) > 0 {
		tables := tablewriter.NewWriter(w)
		tables.SetHeader([]string{"Table", "Records", "Inserted", "Skipped", "Dropped keys", "Status"})
		tables.SetAutoFormatHeaders(false)
		tables.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, t := range r.Tables {
			tables.Append([]string{
				t.Table,
				strconv.Itoa(t.Records),
				strconv.Itoa(t.Inserted),
				strconv.Itoa(t.Skipped),
				strings.Join(t.DroppedKeys, ", "),
				tableStatus(t),
			})
		}
		tables.Render()
	}

	fmt.Fprintf(w, "Station scores: %d  Registry rows: %d  Matched: %d  Duration: %s\n",
		r.Scores, r.RegistryRows, r.RegistryMatches, r.Duration.Round(time.Millisecond))
}

func tableStatus(t pipeline.TableOutcome) string {
	switch {
	case t.Err != "":
		return failText(t.Err)
	case len(t.DroppedKeys) > 0:
		return warnText("partial")
	case t.Created:
		return okText("ok")
	default:
		return warnText("not created")
	}
}

// printPurge renders the rows deleted per table.
func printPurge(w io.Writer, counts map[string]int64) {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Deleted"})
	table.SetAutoFormatHeaders(false)
	var total int64
	for _, name := range names {
		table.Append([]string{name, strconv.FormatInt(counts[name], 10)})
		total += counts[name]
	}
	table.SetFooter([]string{"Total", strconv.FormatInt(total, 10)})
	table.Render()
}
