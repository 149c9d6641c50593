package termdata

import (
	"testing"
	"time"

	"termcal/internal/model"
)

var utc = time.UTC

const sampleCalendar = `{
  "source": "registrar",
  "academicYear": "2025-2026",
  "terms": {
    "fall":   {"classesBegin": "2025-08-28", "classesEnd": "2025-12-10"},
    "spring": {"classesBegin": "2026-01-12", "classesEnd": "2026-05-01"}
  },
  "events": [
    {"title": "Labor Day", "startDate": "2025-09-01", "dow": "Monday", "tags": {"holiday": true, "noClasses": true}},
    {"title": "Spring Break", "startDate": "2026-03-09", "endDate": "2026-03-13", "tags": {"break": true, "noClasses": true}},
    {"title": "Final Exams", "startDate": "2026-05-05", "endDate": "2026-05-12", "tags": {"finals": true}},
    {"title": "Reading Days", "startDate": "2026-05-02", "endDate": "2026-05-04", "tags": {"readingDays": true}},
    {"title": "No start date", "endDate": "2026-05-04", "tags": {}},
    {"title": "Inverted range", "startDate": "2026-04-10", "endDate": "2026-04-01", "tags": {}}
  ]
}`

func TestTermInterval(t *testing.T) {
	cf, err := ParseCalendarFile([]byte(sampleCalendar))
	if err != nil {
		t.Fatalf("ParseCalendarFile: %v", err)
	}

	iv, err := cf.TermInterval("spring", "202601", utc)
	if err != nil {
		t.Fatalf("TermInterval: %v", err)
	}
	if iv.TermID != "202601" {
		t.Errorf("term id = %q", iv.TermID)
	}
	if !iv.Start.Equal(time.Date(2026, 1, 12, 0, 0, 0, 0, utc)) {
		t.Errorf("start = %v", iv.Start)
	}
	if !iv.End.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, utc)) {
		t.Errorf("end = %v", iv.End)
	}

	if _, err := cf.TermInterval("summer", "202605", utc); err == nil {
		t.Error("missing term key should error")
	}
}

func TestTermIntervalRejectsInvertedRange(t *testing.T) {
	cf, err := ParseCalendarFile([]byte(`{"terms":{"fall":{"classesBegin":"2025-12-10","classesEnd":"2025-08-28"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cf.TermInterval("fall", "202509", utc); err == nil {
		t.Error("end before start should error")
	}
}

func TestCampusEvents(t *testing.T) {
	cf, err := ParseCalendarFile([]byte(sampleCalendar))
	if err != nil {
		t.Fatal(err)
	}
	events := cf.CampusEvents(utc)

	// The row without a start date is dropped.
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}

	byTitle := make(map[string]model.CampusEvent, len(events))
	for _, ev := range events {
		byTitle[ev.Title] = ev
	}

	labor := byTitle["Labor Day"]
	if labor.Category != model.CategoryHoliday {
		t.Errorf("Labor Day category = %q, want holiday over noClasses", labor.Category)
	}
	if !labor.EndDate.Equal(labor.StartDate) {
		t.Error("single-day event should end on its start date")
	}

	brk := byTitle["Spring Break"]
	if brk.Category != model.CategoryBreak {
		t.Errorf("Spring Break category = %q", brk.Category)
	}
	if !brk.EndDate.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, utc)) {
		t.Errorf("Spring Break end = %v", brk.EndDate)
	}

	if byTitle["Final Exams"].Category != model.CategoryFinals {
		t.Errorf("Final Exams category = %q", byTitle["Final Exams"].Category)
	}
	if byTitle["Reading Days"].Category != model.CategoryReadingDays {
		t.Errorf("Reading Days category = %q", byTitle["Reading Days"].Category)
	}

	// An inverted end date collapses to a single-day event.
	inv := byTitle["Inverted range"]
	if !inv.EndDate.Equal(inv.StartDate) {
		t.Errorf("inverted range end = %v, want start %v", inv.EndDate, inv.StartDate)
	}
	if inv.Category != model.CategoryOther {
		t.Errorf("untagged category = %q", inv.Category)
	}
}

func TestCategoryPrecedence(t *testing.T) {
	tests := []struct {
		tags map[string]bool
		want model.Category
	}{
		{map[string]bool{"finals": true, "noClasses": true}, model.CategoryFinals},
		{map[string]bool{"break": true, "holiday": true}, model.CategoryBreak},
		{map[string]bool{"holiday": true, "noClasses": true}, model.CategoryHoliday},
		{map[string]bool{"noClasses": true, "readingDays": true}, model.CategoryNoClasses},
		{map[string]bool{"readingDays": true}, model.CategoryReadingDays},
		{map[string]bool{"followDay": true}, model.CategoryOther},
		{nil, model.CategoryOther},
	}
	for _, tc := range tests {
		if got := categoryFromTags(tc.tags); got != tc.want {
			t.Errorf("categoryFromTags(%v) = %q, want %q", tc.tags, got, tc.want)
		}
	}
}
