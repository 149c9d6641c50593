package model

import (
	"testing"
	"time"
)

func mwf() WeekdaySet {
	var s WeekdaySet
	return s.Add(Monday).Add(Wednesday).Add(Friday)
}

func TestWeekdaySetEncodeDecode(t *testing.T) {
	set := mwf()
	enc := set.Encode()
	if enc != "2,4,6" {
		t.Errorf("Encode = %q, want 2,4,6", enc)
	}
	if got := DecodeWeekdaySet(enc); got != set {
		t.Errorf("DecodeWeekdaySet(%q) = %v, want %v", enc, got, set)
	}
	// Junk entries are dropped.
	if got := DecodeWeekdaySet("2,x,9,4"); !got.Contains(Monday) || !got.Contains(Wednesday) || len(got.Days()) != 2 {
		t.Errorf("DecodeWeekdaySet with junk = %v", got)
	}
}

func TestMeetingKeyRoundTrip(t *testing.T) {
	key := MeetingKey{EnrollmentID: "CSCI-2300-01", Days: mwf(), StartMinute: 600, EndMinute: 650}
	s := key.String()
	if s != "CSCI-2300-01|2,4,6|600-650" {
		t.Errorf("String = %q", s)
	}
	got, err := ParseMeetingKey(s)
	if err != nil {
		t.Fatalf("ParseMeetingKey: %v", err)
	}
	if got != key {
		t.Errorf("round trip = %+v, want %+v", got, key)
	}
}

func TestMeetingKeyLegacyNormalization(t *testing.T) {
	// Older persisted keys carried a trailing location field; it must be
	// stripped so legacy and current encodings collide on purpose.
	legacy := "CSCI-2300-01|2,4,6|600-650|DARRIN 308"
	got, err := ParseMeetingKey(legacy)
	if err != nil {
		t.Fatalf("ParseMeetingKey(legacy): %v", err)
	}
	want := MeetingKey{EnrollmentID: "CSCI-2300-01", Days: mwf(), StartMinute: 600, EndMinute: 650}
	if got != want {
		t.Errorf("legacy key normalized to %+v, want %+v", got, want)
	}

	for _, bad := range []string{"", "a|b", "id|2,4|x-y", "|2|600-650"} {
		if _, err := ParseMeetingKey(bad); err == nil {
			t.Errorf("ParseMeetingKey(%q): want error", bad)
		}
	}
}

func TestTermIntervalOverlapAndContains(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	spring := TermInterval{Start: day(2026, 1, 12), End: day(2026, 5, 1)}
	fall := TermInterval{Start: day(2026, 8, 27), End: day(2026, 12, 11)}
	summer := TermInterval{Start: day(2026, 5, 1), End: day(2026, 8, 1)}

	if spring.Overlaps(fall) {
		t.Error("spring should not overlap fall")
	}
	// Shared endpoint counts: intervals are inclusive.
	if !spring.Overlaps(summer) || !summer.Overlaps(spring) {
		t.Error("touching intervals should overlap inclusively, both ways")
	}

	if !spring.Contains(day(2026, 1, 12)) || !spring.Contains(day(2026, 5, 1)) {
		t.Error("endpoints should be inside the interval")
	}
	if spring.Contains(day(2026, 6, 1)) {
		t.Error("2026-06-01 should be outside spring")
	}
}

func TestOccurrenceIdentityKey(t *testing.T) {
	base := Occurrence{
		Title: "Intro to Algorithms",
		Start: time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 14, 10, 50, 0, 0, time.UTC),
	}
	same := base
	if base.IdentityKey() != same.IdentityKey() {
		t.Error("identical occurrences must share identity")
	}
	diff := base
	diff.Badge = "exam"
	if base.IdentityKey() == diff.IdentityKey() {
		t.Error("badge must participate in identity")
	}
}

func TestSortOccurrences(t *testing.T) {
	day := time.Date(2026, 1, 14, 0, 0, 0, 0, time.UTC)
	occs := []Occurrence{
		{Title: "Late class", Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
		{Title: "Holiday", AllDay: true, Start: day, End: day.AddDate(0, 0, 1)},
		{Title: "Early class", Start: day.Add(10 * time.Hour), End: day.Add(11 * time.Hour)},
	}
	SortOccurrences(occs)
	if !occs[0].AllDay {
		t.Errorf("all-day should sort first, got %q", occs[0].Title)
	}
	if occs[1].Title != "Early class" || occs[2].Title != "Late class" {
		t.Errorf("timed order wrong: %q then %q", occs[1].Title, occs[2].Title)
	}
}
