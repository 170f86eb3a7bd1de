// Package output renders the final run report.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"allpairs/executor"

	"github.com/fatih/color"
)

// Formatter writes the run report as text or JSON.
type Formatter struct {
	jsonOutput bool
}

// NewFormatter creates a formatter. jsonOutput selects machine-readable
// output.
func NewFormatter(jsonOutput bool) *Formatter {
	return &Formatter{jsonOutput: jsonOutput}
}

// Write renders the report to w.
func (f *Formatter) Write(w io.Writer, report *executor.RunReport) error {
	if f.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return f.writeText(w, report)
}

func (f *Formatter) writeText(w io.Writer, report *executor.RunReport) error {
	fmt.Fprintf(w, "\n=== %s ===\n", report.Name)
	fmt.Fprintf(w, "Run ID:   %s\n", report.RunID)
	fmt.Fprintf(w, "Nodes:    %d\n", report.Nodes)
	fmt.Fprintf(w, "Rounds:   %d total, %d executed, %d resumed\n", report.Rounds, report.Executed, report.Resumed)
	fmt.Fprintf(w, "Duration: %v\n", report.EndTime.Sub(report.StartTime).Round(1e9))
	if report.Aborted {
		fmt.Fprintln(w, color.YellowString("Run aborted by operator"))
	}
	fmt.Fprintln(w)

	for _, summary := range report.Summaries {
		if summary.Resumed {
			fmt.Fprintf(w, "round %d: resumed (not executed)\n", summary.Round)
			continue
		}

		status := color.GreenString("all jobs completed")
		if !summary.Completed() {
			status = color.RedString("one or more jobs failed/timed out")
		}
		fmt.Fprintf(w, "round %d: %s (%d jobs, %d succeeded, %d failed, %d cached)\n",
			summary.Round, status, summary.TotalJobs, summary.Succeeded, summary.Failed, summary.Skipped)
		for _, path := range summary.LogPaths {
			fmt.Fprintf(w, "  %s\n", path)
		}
	}

	fmt.Fprintln(w)
	if report.Failed() {
		fmt.Fprintf(w, "Result: %s\n", color.RedString("FAIL"))
	} else {
		fmt.Fprintf(w, "Result: %s\n", color.GreenString("PASS"))
	}
	return nil
}
