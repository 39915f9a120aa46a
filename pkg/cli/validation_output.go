package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/bpe-tools/pluginlint/pkg/bundle"
	"github.com/bpe-tools/pluginlint/pkg/console"
	"github.com/bpe-tools/pluginlint/pkg/finding"
)

// FormatValidationError formats err for the terminal, keeping multi-line
// structure intact.
func FormatValidationError(err error) string {
	if err == nil {
		return ""
	}
	return console.FormatErrorMessage(err.Error())
}

// PrintValidationError prints err to stderr.
func PrintValidationError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, FormatValidationError(err))
}

// writeJSON writes the reports as one indented JSON array.
func writeJSON(w io.Writer, reports []*bundle.Report) error {
	if reports == nil {
		reports = []*bundle.Report{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}
	return nil
}

// renderReport writes one bundle's header and findings table.
func renderReport(w io.Writer, r *bundle.Report, showSuccess bool) {
	if r.Err != nil {
		fmt.Fprintln(w, console.FormatErrorMessage(fmt.Sprintf("%s: %v", r.Dir, r.Err)))
		return
	}

	if len(r.Descriptors) == 0 {
		fmt.Fprintln(w, console.FormatWarningMessage(r.Dir+": no plugin descriptor found"))
	}
	for _, d := range r.Descriptors {
		fmt.Fprintln(w, console.FormatInfoMessage(fmt.Sprintf("%s: %s %s (%s, %s)",
			r.Dir, d.Name, d.Version, d.Generation, d.ClassName)))
	}

	var rows [][]string
	for _, f := range r.Findings {
		if f.Severity == finding.Success && !showSuccess {
			continue
		}
		rows = append(rows, []string{
			console.FormatSeverity(f.Severity.String()),
			string(f.Category),
			f.Location.String(),
			f.Message,
		})
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, console.FormatSuccessMessage("no problems found"))
		fmt.Fprintln(w)
		return
	}
	fmt.Fprint(w, console.RenderTable(console.TableConfig{
		Headers: []string{"Severity", "Category", "Location", "Message"},
		Rows:    rows,
	}))
	fmt.Fprintln(w)
}

// renderSummary writes the per-bundle count table.
func renderSummary(w io.Writer, reports []*bundle.Report) {
	var total finding.Counts
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r.Err != nil {
			rows = append(rows, []string{r.Dir, "failed", "", "", ""})
			continue
		}
		c := r.Counts()
		total.Error += c.Error
		total.Warn += c.Warn
		total.Info += c.Info
		total.Success += c.Success
		rows = append(rows, countRow(r.Dir, c))
	}
	fmt.Fprint(w, console.RenderTable(console.TableConfig{
		Title:     "Summary",
		Headers:   []string{"Bundle", "Errors", "Warnings", "Info", "Passed"},
		Rows:      rows,
		ShowTotal: len(reports) > 1,
		TotalRow:  countRow("TOTAL", total),
	}))
}

func countRow(label string, c finding.Counts) []string {
	return []string{
		label,
		strconv.Itoa(c.Error),
		strconv.Itoa(c.Warn),
		strconv.Itoa(c.Info),
		strconv.Itoa(c.Success),
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

