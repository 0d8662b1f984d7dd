// Package report renders the run's progress and results for a person at a
// terminal. Nothing here feeds back into control flow.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ignite/audience-sync/internal/audience"
)

const rule = "=================================================="

// Console writes human-readable progress lines.
type Console struct {
	out     io.Writer
	printer *message.Printer
}

// NewConsole returns a reporter writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out, printer: message.NewPrinter(language.English)}
}

// Count formats n with thousands separators.
func (c *Console) Count(n int) string {
	return c.printer.Sprintf("%d", n)
}

// Stage announces the start of a step.
func (c *Console) Stage(msg string) {
	fmt.Fprintln(c.out, msg)
}

// Step prints an indented progress line within a stage.
func (c *Console) Step(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "  "+format+"\n", args...)
}

// Success prints a ✓ line.
func (c *Console) Success(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "✓ "+format+"\n", args...)
}

// Warn prints a ⚠ line.
func (c *Console) Warn(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "⚠ "+format+"\n", args...)
}

// Fail prints a ✗ line followed by indented hints.
func (c *Console) Fail(msg string, hints ...string) {
	fmt.Fprintf(c.out, "✗ %s\n", msg)
	for _, h := range hints {
		fmt.Fprintln(c.out, h)
	}
}

// Skipped reports excluded records, listing at most limit of them in input
// order.
func (c *Console) Skipped(skipped []audience.Skipped, limit int) {
	if len(skipped) == 0 {
		return
	}
	c.Warn("Warning: Skipped %s subscribers due to missing/invalid dates", c.Count(len(skipped)))

	shown := skipped
	if limit > 0 && len(skipped) > limit {
		shown = skipped[:limit]
		fmt.Fprintf(c.out, "  (Showing first %d of %s skipped)\n", limit, c.Count(len(skipped)))
	} else {
		fmt.Fprintln(c.out, "  Skipped records:")
	}
	for _, s := range shown {
		fmt.Fprintf(c.out, "    - %s: %s\n", s.Email, s.Reason)
	}
}

// Growth prints one line per year-over-year comparison.
func (c *Console) Growth(rates []audience.Growth) {
	fmt.Fprintln(c.out, "Year-over-year growth:")
	if len(rates) == 0 {
		fmt.Fprintln(c.out, "  (only one year of data, nothing to compare)")
		return
	}
	for _, g := range rates {
		fmt.Fprintf(c.out, "  %s: %s\n", g.Label(), g.Rate())
	}
}

// Pivot prints the month × year table with a totals row.
func (c *Console) Pivot(s audience.Summary) {
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range s.Pivot.Rows() {
		fmt.Fprintln(tw, "  "+strings.Join(row, "\t")+"\t")
	}
	total := []string{"Total"}
	for _, y := range s.Pivot.Years {
		total = append(total, c.Count(s.Totals[y]))
	}
	fmt.Fprintln(tw, "  "+strings.Join(total, "\t")+"\t")
	tw.Flush()
}

// Banner closes the run.
func (c *Console) Banner(title, runID string) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, rule)
	fmt.Fprintln(c.out, title)
	if runID != "" {
		fmt.Fprintf(c.out, "run %s\n", runID)
	}
	fmt.Fprintln(c.out, rule)
}

// NextSteps prints the manual follow-up after a successful sync.
func (c *Console) NextSteps(summaryWritten bool) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Next steps:")
	if summaryWritten {
		fmt.Fprintln(c.out, "1. Open the summary tab; it was rewritten by this run")
		fmt.Fprintln(c.out, "2. Refresh any pivot tables built on the raw data tab")
	} else {
		fmt.Fprintln(c.out, "1. Go to your pivot table tab")
		fmt.Fprintln(c.out, "2. Click Data > Refresh (or right-click > Refresh)")
		fmt.Fprintln(c.out, "3. Your year-over-year comparison should now be updated")
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Tip: Save this output for your records")
}
