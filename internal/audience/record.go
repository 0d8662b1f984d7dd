// Package audience turns raw subscriber records into normalized rows and
// derives the month-by-year growth summary from them.
package audience

import (
	"sort"
	"strings"
	"time"
)

// Opt-in timestamps are ISO-8601 with an explicit offset. Both offset forms
// ("+00:00" and "+0000") are accepted; nothing else is repaired.
var optinLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05Z0700",
}

// Output layouts for the derived fields.
const (
	displayLayout   = "01/02/2006 15:04"
	sortDateLayout  = "2006-01"
	monthOnlyLayout = "01-Jan"
	yearLayout      = "2006"
)

// Skip reasons
const (
	ReasonNoTimestamp     = "no opt-in timestamp"
	ReasonNoEmail         = "no email address"
	reasonInvalidTimePrfx = "invalid date format: "
)

// Raw is the minimum a subscriber source must provide.
type Raw struct {
	Email        string
	TimestampOpt string
}

// Record is one normalized subscriber row. Fields are derived once from the
// parsed opt-in instant and never change.
type Record struct {
	Email     string
	OptinTime string // MM/DD/YYYY HH:MM
	SortDate  string // YYYY-MM
	MonthOnly string // MM-Mon
	Year      string // YYYY

	optinAt time.Time
}

// OptinAt returns the parsed opt-in instant.
func (r Record) OptinAt() time.Time { return r.optinAt }

// Row returns the record in sheet column order.
func (r Record) Row() []string {
	return []string{r.Email, r.OptinTime, r.SortDate, r.MonthOnly, r.Year}
}

// Header is the column header written above the rows.
var Header = []string{"Email", "Opt-in Time", "Sort Date", "Month Only", "Year"}

// Skipped is a record excluded from aggregation.
type Skipped struct {
	Email  string
	Reason string
}

// ParseOptin parses an opt-in timestamp in one of the accepted layouts.
func ParseOptin(value string) (time.Time, bool) {
	// time.Parse takes fractional seconds even when the layout has none.
	// The offset must follow the seconds directly.
	if len(value) < 20 || !strings.ContainsRune("+-Z", rune(value[19])) {
		return time.Time{}, false
	}
	for _, layout := range optinLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize converts one raw record. Exactly one of the results is set.
func Normalize(raw Raw) (*Record, *Skipped) {
	email := strings.TrimSpace(raw.Email)
	if email == "" {
		return nil, &Skipped{Email: raw.Email, Reason: ReasonNoEmail}
	}
	if raw.TimestampOpt == "" {
		return nil, &Skipped{Email: email, Reason: ReasonNoTimestamp}
	}

	t, ok := ParseOptin(raw.TimestampOpt)
	if !ok {
		return nil, &Skipped{Email: email, Reason: reasonInvalidTimePrfx + raw.TimestampOpt}
	}

	return &Record{
		Email:     email,
		OptinTime: t.Format(displayLayout),
		SortDate:  t.Format(sortDateLayout),
		MonthOnly: t.Format(monthOnlyLayout),
		Year:      t.Format(yearLayout),
		optinAt:   t,
	}, nil
}

// NormalizeAll processes every raw record once, preserving input order in
// both outputs.
func NormalizeAll(raws []Raw) ([]Record, []Skipped) {
	records := make([]Record, 0, len(raws))
	var skipped []Skipped
	for _, raw := range raws {
		rec, skip := Normalize(raw)
		if skip != nil {
			skipped = append(skipped, *skip)
			continue
		}
		records = append(records, *rec)
	}
	return records, skipped
}

// SortByOptin orders records by opt-in instant, ascending. Ties keep their
// input order.
func SortByOptin(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].optinAt.Before(records[j].optinAt)
	})
}
