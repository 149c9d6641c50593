package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"termcal/internal/model"
)

// DefaultZone is the institution's local timezone. All date-only
// comparisons happen at start-of-day in this zone; mixing UTC into them
// shifts "YYYY-MM-DD" values across midnight and produces off-by-one days.
const DefaultZone = "America/New_York"

// LoadZone resolves an IANA zone name. An empty name means DefaultZone;
// a name that does not resolve falls back to time.Local.
func LoadZone(name string) *time.Location {
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// ErrInvalidTime is returned for time-of-day strings that do not parse.
var ErrInvalidTime = errors.New("invalid time of day")

// ParseTimeOfDay parses "HH:MM" into minutes since midnight.
// Hours must be 0..23 and minutes 0..59; anything else is ErrInvalidTime.
func ParseTimeOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return h*60 + m, nil
}

// FormatMinutes renders minutes since midnight back to "HH:MM".
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// weekdayTokens maps catalog day letters and english names to weekday
// numbers. The course data uses single letters (R = Thursday, U = Sunday);
// config and API input tends to use names.
var weekdayTokens = map[string]model.Weekday{
	"u": model.Sunday, "sun": model.Sunday, "sunday": model.Sunday,
	"m": model.Monday, "mon": model.Monday, "monday": model.Monday,
	"t": model.Tuesday, "tue": model.Tuesday, "tues": model.Tuesday, "tuesday": model.Tuesday,
	"w": model.Wednesday, "wed": model.Wednesday, "wednesday": model.Wednesday,
	"r": model.Thursday, "thu": model.Thursday, "thur": model.Thursday, "thursday": model.Thursday,
	"f": model.Friday, "fri": model.Friday, "friday": model.Friday,
	"s": model.Saturday, "sat": model.Saturday, "saturday": model.Saturday,
}

// ParseWeekdayToken converts a day token to its weekday number.
func ParseWeekdayToken(tok string) (model.Weekday, error) {
	d, ok := weekdayTokens[strings.ToLower(strings.TrimSpace(tok))]
	if !ok {
		return 0, fmt.Errorf("unknown weekday token %q", tok)
	}
	return d, nil
}

// ParseWeekdaySet folds a list of day tokens into a set, returning an
// error only when no token parses at all.
func ParseWeekdaySet(tokens []string) (model.WeekdaySet, error) {
	var set model.WeekdaySet
	for _, tok := range tokens {
		d, err := ParseWeekdayToken(tok)
		if err != nil {
			continue
		}
		set = set.Add(d)
	}
	if set.Empty() {
		return 0, fmt.Errorf("no valid weekday in %v", tokens)
	}
	return set, nil
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	tl := t.In(loc)
	return time.Date(tl.Year(), tl.Month(), tl.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return StartOfDay(a, loc).Equal(StartOfDay(b, loc))
}

// ParseDate parses "YYYY-MM-DD" as start-of-day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// FormatDate renders a date as "YYYY-MM-DD" in its own location.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// AtMinute combines a date with a minutes-since-midnight offset in loc.
func AtMinute(day time.Time, minute int, loc *time.Location) time.Time {
	d := StartOfDay(day, loc)
	return time.Date(d.Year(), d.Month(), d.Day(), minute/60, minute%60, 0, 0, loc)
}
