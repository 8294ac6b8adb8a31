package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolvable is returned when a caption carries no usable date.
var ErrUnresolvable = errors.New("no date found in caption")

var (
	// Clock times ("1:00am", "3 pm", "22:30") are stripped before tokenizing
	// so their digits are never mistaken for a day of the month.
	clockTime = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*[ap]\.?m\b\.?|\b\d{1,2}:\d{2}\b`)

	isoDate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	dayFirstDate = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)

	token      = regexp.MustCompile(`[a-z]+|\d+(?:st|nd|rd|th)?`)
	dayOfMonth = regexp.MustCompile(`^(\d{1,2})(st|nd|rd|th)?$`)
	fullYear   = regexp.MustCompile(`^\d{4}$`)
)

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdayNames = map[string]bool{
	"monday": true, "mon": true,
	"tuesday": true, "tue": true, "tues": true,
	"wednesday": true, "wed": true,
	"thursday": true, "thu": true, "thur": true, "thurs": true,
	"friday": true, "fri": true,
	"saturday": true, "sat": true,
	"sunday": true, "sun": true,
}

var partsOfDay = map[string]bool{
	"morning":   true,
	"afternoon": true,
	"evening":   true,
	"night":     true,
}

// ambiguousMonths are month names that are also ordinary words.
var ambiguousMonths = map[string]bool{
	"may": true,
	"mar": true,
}

type monthToken struct {
	pos   int
	month time.Month
}

type dayCandidate struct {
	pos     int
	day     int
	ordinal bool
}

// Resolve infers the calendar day described by caption, using ref as the
// context for anything the caption leaves out.
//
// A missing year is taken from ref, rolled forward one year when the
// caption's month is earlier than ref's month: listings are read in
// chronological order, so "22 January" seen while reading December 2009
// means January 2010. A missing month is taken from ref, but only when the
// day is unambiguous (an ordinal like "29th", or a number directly after a
// weekday). Overnight captions ("22nd/23rd November") resolve to the first
// night. A zero ref provides no context, so captions without a year are
// unresolvable against it.
//
// Resolve returns ErrUnresolvable rather than guessing.
func Resolve(caption string, ref Date) (Date, error) {
	if d, ok := numericDate(caption); ok {
		return d, nil
	}

	text := clockTime.ReplaceAllString(strings.ToLower(caption), " ")
	tokens := token.FindAllString(text, -1)

	var months []monthToken
	year := 0
	var candidates []dayCandidate

	for i, tok := range tokens {
		if m, ok := monthNames[tok]; ok {
			months = append(months, monthToken{pos: i, month: m})
			continue
		}
		if fullYear.MatchString(tok) {
			if y, _ := strconv.Atoi(tok); year == 0 && y >= 1900 && y < 3000 {
				year = y
			}
			continue
		}
		if m := dayOfMonth.FindStringSubmatch(tok); m != nil {
			day, _ := strconv.Atoi(m[1])
			if day >= 1 && day <= 31 {
				candidates = append(candidates, dayCandidate{pos: i, day: day, ordinal: m[2] != ""})
			}
		}
	}

	month, day, ok := pickMonthDay(tokens, months, candidates)
	if !ok {
		return Date{}, fmt.Errorf("%w: %q", ErrUnresolvable, caption)
	}

	if year == 0 && ref.IsZero() {
		return Date{}, fmt.Errorf("%w: %q has no year and no reference date", ErrUnresolvable, caption)
	}

	var resolved Date
	var err error
	if month != 0 {
		if year == 0 {
			year = ref.Year
			if month < ref.Month {
				year++
			}
		}
		resolved, err = New(year, month, day)
	} else {
		explicitYear := year != 0
		if !explicitYear {
			year = ref.Year
		}
		month = ref.Month
		if !explicitYear && day < ref.Day {
			next := ref.NextMonth()
			year, month = next.Year, next.Month
		}
		resolved, err = New(year, month, day)
	}
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: %v", ErrUnresolvable, caption, err)
	}

	return resolved, nil
}

// numericDate recognises YYYY-MM-DD and day-first DD/MM/YYYY forms.
func numericDate(caption string) (Date, bool) {
	if m := isoDate.FindStringSubmatch(caption); m != nil {
		if d, err := dateFromParts(m[1], m[2], m[3]); err == nil {
			return d, true
		}
	}
	if m := dayFirstDate.FindStringSubmatch(caption); m != nil {
		if d, err := dateFromParts(m[3], m[2], m[1]); err == nil {
			return d, true
		}
	}
	return Date{}, false
}

func dateFromParts(year, month, day string) (Date, error) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	return New(y, time.Month(m), d)
}

// pickMonthDay chooses the month and day-of-month tokens. A month of zero
// means the caption names no month and the day must stand on its own.
//
// A day belongs to a month when it sits right next to it ("22 November",
// "November 6th", "the 5th of June"), or anywhere in the caption when it is
// an ordinal or follows a weekday. Bare numbers elsewhere, such as channel
// numbers, never count. Month words that double as English words ("may")
// only count with a day right next to them.
func pickMonthDay(tokens []string, months []monthToken, candidates []dayCandidate) (time.Month, int, bool) {
	bestMonth, bestDay, bestScore := time.Month(0), 0, 0
	namedMonth := false

	for _, m := range months {
		if !ambiguousMonths[tokens[m.pos]] {
			namedMonth = true
		}
		day, score, ok := dayForMonth(tokens, m, candidates)
		if ok && score > bestScore {
			bestMonth, bestDay, bestScore = m.month, day, score
		}
	}

	if bestMonth != 0 {
		return bestMonth, bestDay, true
	}
	if namedMonth {
		return 0, 0, false
	}

	for _, c := range candidates {
		if c.ordinal || weekdayAnchored(tokens, c.pos) {
			return 0, overnightStart(candidates, c).day, true
		}
	}
	return 0, 0, false
}

// dayForMonth returns the best day for m and its score. Two different days
// with the same best score are ambiguous and yield no day.
func dayForMonth(tokens []string, m monthToken, candidates []dayCandidate) (int, int, bool) {
	var best dayCandidate
	bestScore, tied := 0, false

	for _, c := range candidates {
		adjacent := nextTo(tokens, m.pos, c.pos)
		anchored := c.ordinal || weekdayAnchored(tokens, c.pos)
		if !adjacent && (!anchored || ambiguousMonths[tokens[m.pos]]) {
			continue
		}

		score := 1
		if adjacent {
			score += 2
		}
		if anchored {
			score++
		}

		switch {
		case score > bestScore:
			best, bestScore, tied = c, score, false
		case score == bestScore && c.day != best.day:
			tied = true
		}
	}

	if bestScore == 0 {
		return 0, 0, false
	}

	start := overnightStart(candidates, best)
	if tied && start.pos == best.pos {
		return 0, 0, false
	}
	return start.day, bestScore, true
}

// overnightStart returns the first day of an overnight pair such as
// "22nd/23rd", which listings date by the night the show starts.
func overnightStart(candidates []dayCandidate, c dayCandidate) dayCandidate {
	for _, prev := range candidates {
		if prev.pos == c.pos-1 && prev.day == c.day-1 {
			return prev
		}
	}
	return c
}

// nextTo reports whether the tokens at a and b are neighbours, allowing a
// single "the" or "of" between them.
func nextTo(tokens []string, a, b int) bool {
	lo, hi := min(a, b), max(a, b)
	switch hi - lo {
	case 1:
		return true
	case 2:
		return tokens[lo+1] == "the" || tokens[lo+1] == "of"
	}
	return false
}

// weekdayAnchored reports whether the token at pos directly follows a
// weekday, optionally with a part of day between ("Saturday morning 29").
func weekdayAnchored(tokens []string, pos int) bool {
	if pos >= 1 && weekdayNames[tokens[pos-1]] {
		return true
	}
	return pos >= 2 && partsOfDay[tokens[pos-1]] && weekdayNames[tokens[pos-2]]
}
