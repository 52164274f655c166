// Package dates parses the date and datetime strings found in travel
// documents and converts them to civil (calendar) days.
//
// A parsed time keeps the UTC offset it was written with. Values without an
// offset are read as UTC wall-clock time, so the calendar day and the
// HH:mm shown to the traveller are always the ones printed on the booking.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layout is the canonical calendar date format, YYYY-MM-DD.
const Layout = "2006-01-02"

// isoLayouts are tried in order by ParseISO.
// time.Parse accepts fractional seconds after a seconds field even when the
// layout omits them, so RFC 3339 with millis is covered by the first entry.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	Layout,
}

// ParseISO parses s as an ISO 8601 date or datetime.
// The second return value is false when s is not ISO.
func ParseISO(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	yearFirst  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	monthFirst = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	// US style date followed by a 24h or 12h clock.
	monthFirstClock = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})[ T]+(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])?$`)
)

// ParseLoose parses s as ISO first, then as YYYY-M-D, MM/DD/YYYY or
// MM-DD-YYYY, optionally followed by a clock time. Out-of-range components
// (month 13, February 30) are rejected rather than rolled over.
func ParseLoose(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, ok := ParseISO(s); ok {
		return t, true
	}
	if m := yearFirst.FindStringSubmatch(s); m != nil {
		return civilDate(m[1], m[2], m[3])
	}
	if m := monthFirst.FindStringSubmatch(s); m != nil {
		return civilDate(m[3], m[1], m[2])
	}
	if m := monthFirstClock.FindStringSubmatch(s); m != nil {
		day, ok := civilDate(m[3], m[1], m[2])
		if !ok {
			return time.Time{}, false
		}
		return withClock(day, m[4], m[5], m[6], m[7])
	}
	return time.Time{}, false
}

// Civil truncates t to midnight UTC of the calendar day t falls on in its
// own location.
func Civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Day parses s loosely and returns its civil day.
func Day(s string) (time.Time, bool) {
	t, ok := ParseLoose(s)
	if !ok {
		return time.Time{}, false
	}
	return Civil(t), true
}

// Format renders a civil day as YYYY-MM-DD.
func Format(t time.Time) string { return t.Format(Layout) }

// Between returns every civil day from first through last inclusive.
// Returns nil when last is before first.
func Between(first, last time.Time) []time.Time {
	first, last = Civil(first), Civil(last)
	var out []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func civilDate(year, month, day string) (time.Time, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func withClock(day time.Time, hour, minute, second, meridiem string) (time.Time, bool) {
	h, _ := strconv.Atoi(hour)
	m, _ := strconv.Atoi(minute)
	sec := 0
	if second != "" {
		sec, _ = strconv.Atoi(second)
	}
	switch strings.ToLower(meridiem) {
	case "am":
		if h < 1 || h > 12 {
			return time.Time{}, false
		}
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 1 || h > 12 {
			return time.Time{}, false
		}
		if h != 12 {
			h += 12
		}
	}
	if h > 23 || m > 59 || sec > 59 {
		return time.Time{}, false
	}
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second), true
}
