package airquality

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire and in exports.
const DateLayout = "2006-01-02"

// DateRange is an inclusive interval of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewDateRange builds a range from two dates. Times of day are discarded.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: Day(start), End: Day(end)}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// ParseDateRange parses a pair of YYYY-MM-DD dates.
// Two empty strings mean "no range" and return nil.
func ParseDateRange(start, end string) (*DateRange, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, ErrIncompleteRange
	}

	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}

	r, err := NewDateRange(s, e)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that Start is not after End.
func (r DateRange) Validate() error {
	if Day(r.Start).After(Day(r.End)) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidDateRange,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// Days returns the number of calendar dates in the range, or 0 if it is invalid.
func (r DateRange) Days() int {
	start, end := Day(r.Start), Day(r.End)
	if start.After(end) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Dates returns every date in the range in ascending order.
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Days())
	end := Day(r.End)
	for d := Day(r.Start); !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// String formats the range as "start..end".
func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
