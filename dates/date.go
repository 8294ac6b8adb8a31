// Package dates holds the calendar-day type used across the archive and the
// resolver that infers one from loosely formatted captions.
package dates

import (
	"encoding/json"
	"fmt"
	"time"
)

// Layout is the textual form of a Date in index files and API responses.
const Layout = "2006-01-02"

// Date is a calendar day with no time-of-day component. The zero value means
// "no date".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the given day, rejecting days that do not exist in the
// calendar (e.g. 31 February).
func New(year int, month time.Month, day int) (Date, error) {
	if month < time.January || month > time.December {
		return Date{}, fmt.Errorf("invalid month %d", month)
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, fmt.Errorf("invalid date %04d-%02d-%02d", year, month, day)
	}

	return Date{Year: year, Month: month, Day: day}, nil
}

// FromTime returns the calendar day of t in t's location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Parse parses a Date in Layout form.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("failed to parse date: %w", err)
	}
	return FromTime(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// FirstOfMonth returns the first day of d's month.
func (d Date) FirstOfMonth() Date {
	return Date{Year: d.Year, Month: d.Month, Day: 1}
}

// NextMonth returns the first day of the month after d's.
func (d Date) NextMonth() Date {
	return FromTime(time.Date(d.Year, d.Month+1, 1, 0, 0, 0, 0, time.UTC))
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// MarshalJSON encodes d as a Layout string, or an empty string when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts a Layout string; empty strings and null decode to
// the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode date: %w", err)
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}

	parsed, err := Parse(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
