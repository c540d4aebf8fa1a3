// Package daterange selects records whose timestamp falls inside an
// inclusive, day-granular range. The end day is inclusive up to
// 23:59:59.999 in the range's location.
package daterange

import (
	"fmt"
	"log"
	"strings"
	"time"

	"salonpos/backend/internal/domain"
)

const DayLayout = "2006-01-02"

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var localLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	DayLayout,
}

type Range struct {
	Start time.Time
	End   time.Time
	loc   *time.Location
}

// Parse builds a range from two calendar dates. Full timestamps are accepted
// too and truncated to their day. A nil location means UTC.
func Parse(start string, end string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	startDay, err := parseDay(start, loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid start date %q", domain.ErrValidation, start)
	}
	endDay, err := parseDay(end, loc)
	if err != nil {
		return Range{}, fmt.Errorf("%w: invalid end date %q", domain.ErrValidation, end)
	}
	if endDay.Before(startDay) {
		return Range{}, fmt.Errorf("%w: end date %q is before start date %q", domain.ErrValidation, end, start)
	}

	return Range{
		Start: startDay,
		End:   endDay.AddDate(0, 0, 1).Add(-time.Millisecond),
		loc:   loc,
	}, nil
}

// Day returns the range covering a single calendar day.
func Day(day time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return Range{Start: start, End: start.AddDate(0, 0, 1).Add(-time.Millisecond), loc: loc}
}

func (r Range) Location() *time.Location {
	if r.loc == nil {
		return time.UTC
	}
	return r.loc
}

func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Includes parses a record timestamp and reports whether it is in range.
// Unparseable timestamps are logged and treated as out of range.
func (r Range) Includes(stamp string) bool {
	t, err := ParseTimestamp(stamp, r.Location())
	if err != nil {
		log.Printf("[daterange] WARN: skipping record with invalid timestamp %q: %v", stamp, err)
		return false
	}
	return r.Contains(t)
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DayLayout), r.End.Format(DayLayout))
}

// ParseTimestamp accepts RFC 3339 timestamps and a few zone-less forms, the
// latter being read in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	t, err := ParseTimestamp(raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

// Select keeps the records that pass keep (when non-nil) and whose stamp is
// inside r. Records with malformed timestamps are skipped, never fatal.
func Select[T any](records []T, r Range, stamp func(T) string, keep func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		if r.Includes(stamp(rec)) {
			out = append(out, rec)
		}
	}
	return out
}

// Sales returns the active sales dated inside r.
func Sales(sales []domain.Sale, r Range) []domain.Sale {
	return Select(sales, r, func(s domain.Sale) string { return s.Date }, func(s domain.Sale) bool {
		return s.Status == domain.StatusActive
	})
}

// Expenses returns the active expenses dated inside r.
func Expenses(expenses []domain.Expense, r Range) []domain.Expense {
	return Select(expenses, r, func(e domain.Expense) string { return e.Date }, func(e domain.Expense) bool {
		return e.Status == domain.StatusActive
	})
}

// Credits returns the non-cancelled credits created inside r.
func Credits(credits []domain.Credit, r Range) []domain.Credit {
	return Select(credits, r, func(c domain.Credit) string { return c.CreatedAt }, func(c domain.Credit) bool {
		return c.Status != domain.StatusCancelled
	})
}

// FilterSales is the string-boundary entry point used by reports. A bad
// boundary yields an empty result and a warning.
func FilterSales(sales []domain.Sale, startDate string, endDate string, loc *time.Location) []domain.Sale {
	r, err := Parse(startDate, endDate, loc)
	if err != nil {
		log.Printf("[daterange] WARN: invalid date range start=%q end=%q: %v", startDate, endDate, err)
		return []domain.Sale{}
	}
	return Sales(sales, r)
}
