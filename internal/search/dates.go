package search

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/sirupsen/logrus"

	"github.com/brandon/mcp-mailbox/pkg/types"
)

var dateOnlyLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02-Jan-2006 15:04:05",
	"02-Jan-2006 15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
}

var relativeRe = regexp.MustCompile(`^(\d+)\s+(day|week|month|year)s?\s+ago$`)

// ParseDate reads a human-entered date. dateOnly is true when the input has no
// time of day, which lets callers widen an end bound to the end of that day.
// Dates without a zone are read in loc.
func ParseDate(s string, now time.Time, loc *time.Location) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}

	for _, layout := range dateOnlyLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true, nil
		}
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, false, nil
		}
	}
	if t, ok := parseRelative(strings.ToLower(s), now.In(loc)); ok {
		return t, true, nil
	}
	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return t, !strings.Contains(s, ":"), nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", s)
}

func parseRelative(s string, now time.Time) (time.Time, bool) {
	today := startOfDay(now)
	switch s {
	case "today", "now":
		return today, true
	case "yesterday":
		return today.AddDate(0, 0, -1), true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	case "last week":
		return today.AddDate(0, 0, -7), true
	case "last month":
		return today.AddDate(0, -1, 0), true
	case "last year":
		return today.AddDate(-1, 0, 0), true
	}

	m := relativeRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch m[2] {
	case "day":
		return today.AddDate(0, 0, -n), true
	case "week":
		return today.AddDate(0, 0, -7*n), true
	case "month":
		return today.AddDate(0, -n, 0), true
	default:
		return today.AddDate(-n, 0, 0), true
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// DateRange bounds a search. A zero Start or End is unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time

	// Warnings lists bounds that were given but could not be parsed
	Warnings []string
}

// ParseDateRange parses optional start/end strings. An unparseable bound is
// logged, reported in Warnings and skipped rather than failing the call.
// A date-only end bound covers the whole day.
func ParseDateRange(start, end string, logger *logrus.Logger) DateRange {
	var r DateRange
	now := time.Now()

	if strings.TrimSpace(start) != "" {
		t, _, err := ParseDate(start, now, time.Local)
		if err != nil {
			logger.WithError(err).WithField("start_date", start).Warn("Ignoring unparseable start date")
			r.Warnings = append(r.Warnings, fmt.Sprintf("start date %q could not be parsed and was ignored", start))
		} else {
			r.Start = t
		}
	}

	if strings.TrimSpace(end) != "" {
		t, dateOnly, err := ParseDate(end, now, time.Local)
		if err != nil {
			logger.WithError(err).WithField("end_date", end).Warn("Ignoring unparseable end date")
			r.Warnings = append(r.Warnings, fmt.Sprintf("end date %q could not be parsed and was ignored", end))
		} else {
			if dateOnly {
				t = endOfDay(t)
			}
			r.End = t
		}
	}

	return r
}

// IsZero reports whether the range has no bounds
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t lies within the bounds, inclusive.
// A missing timestamp always passes.
func (r DateRange) Contains(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Filter keeps the messages inside the range. A message is undated only when
// it had no envelope date, no readable Date header and no internal date.
func (r DateRange) Filter(msgs []*types.Message) []*types.Message {
	if r.IsZero() {
		return msgs
	}
	out := make([]*types.Message, 0, len(msgs))
	for _, m := range msgs {
		if r.Contains(m.Date) {
			out = append(out, m)
		}
	}
	return out
}
