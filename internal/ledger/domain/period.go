package ledger

import (
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is an inclusive [Start, End] window inside one calendar month.
type Period struct {
	Start time.Time
	End   time.Time
}

// ParsePeriod builds the calendar month named by a YYYY-MM token in loc.
func ParsePeriod(token string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(token) != len(periodLayout) {
		return Period{}, fmt.Errorf("%w: period must be YYYY-MM, got %q", ErrInvalidPeriod, token)
	}
	t, err := time.ParseInLocation(periodLayout, token, loc)
	if err != nil {
		return Period{}, fmt.Errorf("%w: period must be YYYY-MM, got %q", ErrInvalidPeriod, token)
	}
	return MonthOf(t), nil
}

// MonthOf returns the calendar month containing t, in t's location.
func MonthOf(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// NewPeriod validates an explicit window. Both ends must fall in the same
// calendar month of start's location.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() || end.IsZero() {
		return Period{}, fmt.Errorf("%w: zero bound", ErrInvalidPeriod)
	}
	if end.Before(start) {
		return Period{}, fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	endLocal := end.In(start.Location())
	if endLocal.Year() != start.Year() || endLocal.Month() != start.Month() {
		return Period{}, fmt.Errorf("%w: window spans more than one calendar month", ErrInvalidPeriod)
	}
	return Period{Start: start, End: end}, nil
}

// IsDegenerate reports a zero-length window.
func (p Period) IsDegenerate() bool { return p.Start.Equal(p.End) }

// Contains reports whether t lies inside the window. A degenerate window
// contains nothing.
func (p Period) Contains(t time.Time) bool {
	if p.IsDegenerate() {
		return false
	}
	return !t.Before(p.Start) && !t.After(p.End)
}

// Next returns the calendar month following p.
func (p Period) Next() Period {
	return MonthOf(p.Start.AddDate(0, 1, 0))
}

// Previous returns the calendar month preceding p.
func (p Period) Previous() Period {
	return MonthOf(p.Start.AddDate(0, -1, 0))
}

// Token renders the YYYY-MM token of the period's month.
func (p Period) Token() string { return p.Start.Format(periodLayout) }

// Location returns the billing timezone the period was built in.
func (p Period) Location() *time.Location { return p.Start.Location() }

// Window is a fetch range over fact creation times: From inclusive, Until
// exclusive. A zero From is unbounded.
type Window struct {
	From  time.Time
	Until time.Time
}

// Includes reports whether t is inside w.
func (w Window) Includes(t time.Time) bool {
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	return t.Before(w.Until)
}

// HistoryThrough returns the window holding every fact up to and including the
// period end.
func (p Period) HistoryThrough() Window {
	return Window{Until: p.End.Add(time.Nanosecond)}
}

// ActivityWindow returns the window of in-period facts.
func (p Period) ActivityWindow() Window {
	if p.IsDegenerate() {
		return Window{From: p.Start, Until: p.Start}
	}
	return Window{From: p.Start, Until: p.End.Add(time.Nanosecond)}
}
