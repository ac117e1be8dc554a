// utils/dates.go
package utils

import (
	"strings"
	"time"
)

// DateFormat names one accepted appointment date layout.
type DateFormat struct {
	Name   string
	Layout string
}

// DateFormats is the ordered list tried by ParseDate. Order decides ambiguous
// strings: "03-04-2024" only matches DD-MM-YYYY and is read as 3 April.
var DateFormats = []DateFormat{
	{Name: "YYYY-MM-DD", Layout: "2006-1-2"},
	{Name: "YYYY/MM/DD", Layout: "2006/1/2"},
	{Name: "DD-MM-YYYY", Layout: "2-1-2006"},
	{Name: "DD/MM/YYYY", Layout: "2/1/2006"},
}

// ParseDate tries every layout in DateFormats and returns the first match as
// a local calendar date. ok is false when no layout matches.
func ParseDate(value string) (date time.Time, format DateFormat, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, DateFormat{}, false
	}
	for _, f := range DateFormats {
		t, err := time.ParseInLocation(f.Layout, value, time.Local)
		if err != nil {
			continue
		}
		return BeginningOfDay(t), f, true
	}
	return time.Time{}, DateFormat{}, false
}

func BeginningOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts calendar days from start to end, ignoring the time of
// day. A DST transition in between does not change the result.
func DaysBetween(start, end time.Time) int {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	from := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	to := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}
