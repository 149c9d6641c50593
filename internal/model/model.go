package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday is a calendar weekday number, Sunday=1 through Saturday=7.
// This matches the numbering used by the course catalog data and keeps
// date-side comparisons a single +1 away from time.Weekday.
type Weekday int

const (
	Sunday    Weekday = 1
	Monday    Weekday = 2
	Tuesday   Weekday = 3
	Wednesday Weekday = 4
	Thursday  Weekday = 5
	Friday    Weekday = 6
	Saturday  Weekday = 7
)

// WeekdayOf converts a concrete date's weekday into our 1..7 numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(int(t.Weekday()) + 1)
}

// WeekdaySet is a bitmask over the seven weekdays. Bit (d-1) is set when
// weekday d is a member.
type WeekdaySet uint8

// Add returns the set with d included. Out-of-range days are ignored.
func (s WeekdaySet) Add(d Weekday) WeekdaySet {
	if d < Sunday || d > Saturday {
		return s
	}
	return s | WeekdaySet(1)<<(uint(d)-1)
}

// Contains reports whether d is a member of the set.
func (s WeekdaySet) Contains(d Weekday) bool {
	if d < Sunday || d > Saturday {
		return false
	}
	return s&(WeekdaySet(1)<<(uint(d)-1)) != 0
}

// Days lists the members in ascending weekday order.
func (s WeekdaySet) Days() []Weekday {
	var out []Weekday
	for d := Sunday; d <= Saturday; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// Empty reports whether no weekday is set.
func (s WeekdaySet) Empty() bool { return s == 0 }

// Encode renders the set as comma-joined weekday numbers ("2,4,6").
// This is the persistence encoding used inside meeting keys.
func (s WeekdaySet) Encode() string {
	days := s.Days()
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

// DecodeWeekdaySet parses the Encode form. Unknown numbers are dropped.
func DecodeWeekdaySet(s string) WeekdaySet {
	var out WeekdaySet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = out.Add(Weekday(n))
	}
	return out
}

// WeeklyPattern is one recurring meeting: a set of weekdays plus a
// minutes-since-midnight time range. It carries no calendar date; the
// materializer binds it to dates using term bounds.
type WeeklyPattern struct {
	Days        WeekdaySet `json:"days"`
	StartMinute int        `json:"start_minute"`
	EndMinute   int        `json:"end_minute"`
	Location    string     `json:"location,omitempty"`
}

// Valid reports whether the pattern has a positive duration and at least
// one weekday. Invalid patterns are skipped by loaders and the conflict
// detector rather than treated as errors.
func (p WeeklyPattern) Valid() bool {
	return p.EndMinute > p.StartMinute && !p.Days.Empty()
}

// Classification is the per-meeting override state.
type Classification string

const (
	ClassNormal     Classification = "normal"
	ClassRecitation Classification = "recitation"
	ClassExam       Classification = "exam"
	ClassDisabled   Classification = "disabled"
)

// ParseClassification maps a stored string to a known classification,
// defaulting to normal for anything unrecognized.
func ParseClassification(s string) Classification {
	switch Classification(s) {
	case ClassRecitation, ClassExam, ClassDisabled:
		return Classification(s)
	default:
		return ClassNormal
	}
}

// MeetingKey is the stable identity of one recurring meeting slot.
// Location is deliberately excluded: location text is free-form and
// unstable across catalog revisions, so it cannot participate in identity.
type MeetingKey struct {
	EnrollmentID string
	Days         WeekdaySet
	StartMinute  int
	EndMinute    int
}

// NewMeetingKey derives the key for one of an enrollment's patterns.
func NewMeetingKey(enrollmentID string, p WeeklyPattern) MeetingKey {
	return MeetingKey{
		EnrollmentID: enrollmentID,
		Days:         p.Days,
		StartMinute:  p.StartMinute,
		EndMinute:    p.EndMinute,
	}
}

// String renders the persistence form: "id|2,4,6|600-650".
// Only this form crosses the storage boundary; in-memory code compares
// MeetingKey values directly.
func (k MeetingKey) String() string {
	return fmt.Sprintf("%s|%s|%d-%d", k.EnrollmentID, k.Days.Encode(), k.StartMinute, k.EndMinute)
}

// ParseMeetingKey decodes a stored key. Legacy keys carried a trailing
// "|location" field; any field past the third is discarded so that old
// and new encodings of the same meeting normalize to the same key.
func ParseMeetingKey(s string) (MeetingKey, error) {
	fields := strings.Split(s, "|")
	if len(fields) < 3 {
		return MeetingKey{}, fmt.Errorf("meeting key %q: want at least 3 fields, got %d", s, len(fields))
	}
	var k MeetingKey
	k.EnrollmentID = fields[0]
	if k.EnrollmentID == "" {
		return MeetingKey{}, fmt.Errorf("meeting key %q: empty enrollment id", s)
	}
	k.Days = DecodeWeekdaySet(fields[1])
	lo, hi, ok := strings.Cut(fields[2], "-")
	if !ok {
		return MeetingKey{}, fmt.Errorf("meeting key %q: bad time range %q", s, fields[2])
	}
	start, err := strconv.Atoi(lo)
	if err != nil {
		return MeetingKey{}, fmt.Errorf("meeting key %q: bad start minute: %w", s, err)
	}
	end, err := strconv.Atoi(hi)
	if err != nil {
		return MeetingKey{}, fmt.Errorf("meeting key %q: bad end minute: %w", s, err)
	}
	k.StartMinute = start
	k.EndMinute = end
	return k, nil
}

// Enrollment is one added course section and its meeting patterns.
type Enrollment struct {
	ID         string          `json:"id"`
	TermID     string          `json:"term_id"`
	Subject    string          `json:"subject"`
	Number     string          `json:"number"`
	Title      string          `json:"title"`
	Section    string          `json:"section"`
	CRN        string          `json:"crn,omitempty"`
	Instructor string          `json:"instructor,omitempty"`
	Credits    float64         `json:"credits"`
	Patterns   []WeeklyPattern `json:"patterns"`
}

// MeetingKeys lists the keys of all the enrollment's patterns.
func (e Enrollment) MeetingKeys() []MeetingKey {
	keys := make([]MeetingKey, 0, len(e.Patterns))
	for _, p := range e.Patterns {
		keys = append(keys, NewMeetingKey(e.ID, p))
	}
	return keys
}

// TermInterval is the inclusive [Start, End] date range of one academic
// term. Start and End are start-of-day values in the campus timezone.
type TermInterval struct {
	TermID string    `json:"term_id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// Overlaps reports inclusive interval overlap with other.
func (t TermInterval) Overlaps(other TermInterval) bool {
	return !t.Start.After(other.End) && !other.Start.After(t.End)
}

// Contains reports whether day (start-of-day) falls inside the interval,
// both endpoints inclusive.
func (t TermInterval) Contains(day time.Time) bool {
	return !day.Before(t.Start) && !day.After(t.End)
}

// Category tags an institutional calendar event.
type Category string

const (
	CategoryHoliday     Category = "holiday"
	CategoryBreak       Category = "break"
	CategoryFinals      Category = "finals"
	CategoryNoClasses   Category = "no_classes"
	CategoryReadingDays Category = "reading_days"
	CategoryOther       Category = "other"
)

// PersonalEvent is a user-created one-off event on a single date.
type PersonalEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	StartMinute int       `json:"start_minute"`
	EndMinute   int       `json:"end_minute"`
	Location    string    `json:"location,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

// CampusEvent is an institutional all-day event spanning an inclusive
// date range (holidays, breaks, finals periods).
type CampusEvent struct {
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Category  Category  `json:"category"`
}

// Occurrence is a single concrete dated instance produced by the
// aggregator: a materialized recurring meeting, a personal event, or an
// institutional event normalized to a common shape.
type Occurrence struct {
	Title    string
	Location string

	AllDay bool
	Start  time.Time
	End    time.Time

	Category Category

	// EnrollmentID and MeetingKey tie a materialized recurring instance
	// back to its source so downstream override lookups and coloring work;
	// both are empty for personal and institutional events.
	EnrollmentID string
	MeetingKey   string

	// SeriesID groups all occurrences of the same logical series.
	SeriesID string

	// Badge marks reclassified instances ("exam", "recitation").
	Badge string
}

// IdentityKey is the content hash that identifies a single occurrence.
// Two occurrences with the same key are the same instance: the agenda
// dedupes on it and the hidden-occurrence suppression set stores it.
func (o Occurrence) IdentityKey() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%t\x00%s\x00%s\x00%s",
		o.Title, o.Location,
		o.Start.Format(time.RFC3339), o.End.Format(time.RFC3339),
		o.Category, o.AllDay, o.EnrollmentID, o.SeriesID, o.Badge)
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// SortOccurrences orders all-day events first, then timed events by
// ascending start; ties break on title then identity key so output is
// deterministic.
func SortOccurrences(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.IdentityKey() < b.IdentityKey()
	})
}
