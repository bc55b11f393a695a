package governance

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format accepted for term boundaries.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date in t's own location and returns it as UTC
// midnight, so dates coming from the database and "now" in the jurisdiction timezone
// compare on the same footing.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date. Full RFC3339 timestamps are accepted and reduced to
// their date part.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return DateOf(t), nil
}

// FormatDate renders a date using DateLayout.
func FormatDate(t time.Time) string {
	return DateOf(t).Format(DateLayout)
}

// intervalsIntersect applies the closed-interval test s1 <= e2 && s2 <= e1.
func intervalsIntersect(s1, e1, s2, e2 time.Time) bool {
	return !DateOf(s1).After(DateOf(e2)) && !DateOf(s2).After(DateOf(e1))
}
