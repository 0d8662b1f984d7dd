package audience

import (
	"fmt"
	"sort"
)

// NotAvailable is shown for a growth rate whose base year has no records.
const NotAvailable = "N/A"

// Pivot counts records per (month label, year). Months and Years are sorted
// ascending; "01-Jan" style labels sort chronologically as strings.
type Pivot struct {
	Months []string
	Years  []string
	counts map[string]map[string]int
}

// Count returns the cell for month × year; missing combinations are 0.
func (p Pivot) Count(month, year string) int {
	return p.counts[month][year]
}

// Rows returns the pivot as a table: header row ("Month", years...) then one
// row per month.
func (p Pivot) Rows() [][]string {
	rows := make([][]string, 0, len(p.Months)+1)
	header := append([]string{"Month"}, p.Years...)
	rows = append(rows, header)
	for _, m := range p.Months {
		row := make([]string, 0, len(p.Years)+1)
		row = append(row, m)
		for _, y := range p.Years {
			row = append(row, fmt.Sprintf("%d", p.Count(m, y)))
		}
		rows = append(rows, row)
	}
	return rows
}

// Growth is the change in total between two adjacent years present in the
// data.
type Growth struct {
	Year         string
	PreviousYear string
	Current      int
	Previous     int
	// Percent is meaningful only when Defined is true.
	Percent float64
	Defined bool
}

// Label returns "<year> vs <previous year>".
func (g Growth) Label() string {
	return g.Year + " vs " + g.PreviousYear
}

// Rate returns the percentage with one decimal and a % suffix, or N/A.
func (g Growth) Rate() string {
	if !g.Defined {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f%%", g.Percent)
}

// Summary is the derived year-over-year view of one run's records.
type Summary struct {
	Pivot  Pivot
	Totals map[string]int
	Growth []Growth
}

// Summarize groups records by month and year and derives totals and growth.
func Summarize(records []Record) Summary {
	counts := make(map[string]map[string]int)
	totals := make(map[string]int)
	months := make(map[string]struct{})

	for _, r := range records {
		if counts[r.MonthOnly] == nil {
			counts[r.MonthOnly] = make(map[string]int)
		}
		counts[r.MonthOnly][r.Year]++
		totals[r.Year]++
		months[r.MonthOnly] = struct{}{}
	}

	pivot := Pivot{
		Months: sortedKeys(months),
		Years:  sortedYears(totals),
		counts: counts,
	}

	return Summary{
		Pivot:  pivot,
		Totals: totals,
		Growth: GrowthRates(totals),
	}
}

// GrowthRates compares each year with the previous year present in totals,
// in ascending order. A zero previous total yields an undefined rate.
func GrowthRates(totals map[string]int) []Growth {
	years := sortedYears(totals)
	if len(years) < 2 {
		return nil
	}

	rates := make([]Growth, 0, len(years)-1)
	for i := 1; i < len(years); i++ {
		prev, cur := years[i-1], years[i]
		g := Growth{
			Year:         cur,
			PreviousYear: prev,
			Current:      totals[cur],
			Previous:     totals[prev],
		}
		if g.Previous != 0 {
			g.Percent = float64(g.Current-g.Previous) / float64(g.Previous) * 100
			g.Defined = true
		}
		rates = append(rates, g)
	}
	return rates
}

// Rows returns totals and growth rates as sheet rows, appended after the
// pivot when the summary tab is written.
func (s Summary) Rows() [][]string {
	rows := s.Pivot.Rows()

	total := []string{"Total"}
	for _, y := range s.Pivot.Years {
		total = append(total, fmt.Sprintf("%d", s.Totals[y]))
	}
	rows = append(rows, total)

	if len(s.Growth) > 0 {
		rows = append(rows, []string{})
		rows = append(rows, []string{"Comparison", "Growth"})
		for _, g := range s.Growth {
			rows = append(rows, []string{g.Label(), g.Rate()})
		}
	}
	return rows
}

func sortedYears(totals map[string]int) []string {
	years := make([]string, 0, len(totals))
	for y := range totals {
		years = append(years, y)
	}
	sort.Strings(years)
	return years
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
