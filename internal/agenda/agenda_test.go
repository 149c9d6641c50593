package agenda

import (
	"testing"
	"time"

	"termcal/internal/materialize"
	"termcal/internal/model"
)

var utc = time.UTC

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, utc)
}

func baseInputs() Inputs {
	var days model.WeekdaySet
	days = days.Add(model.Monday).Add(model.Wednesday).Add(model.Friday)

	return Inputs{
		Enrollments: []model.Enrollment{{
			ID:     "CSCI-2300-01",
			TermID: "202601",
			Title:  "Intro to Algorithms",
			Patterns: []model.WeeklyPattern{
				{Days: days, StartMinute: 600, EndMinute: 650, Location: "DARRIN 308"},
			},
		}},
		Gates: materialize.Gates{
			Bounds: func(termID string) (model.TermInterval, bool) {
				return model.TermInterval{TermID: termID, Start: day(2026, 1, 12), End: day(2026, 5, 1)}, true
			},
		},
		Loc: utc,
	}
}

func TestEventsOnUnionsAllSources(t *testing.T) {
	in := baseInputs()
	in.Personal = []model.PersonalEvent{
		{ID: "p1", Title: "Dentist", Date: day(2026, 1, 14), StartMinute: 480, EndMinute: 540},
		{ID: "p2", Title: "Other day", Date: day(2026, 1, 15), StartMinute: 480, EndMinute: 540},
	}
	in.Campus = []model.CampusEvent{
		{Title: "Add deadline", StartDate: day(2026, 1, 14), EndDate: day(2026, 1, 14), Category: model.CategoryOther},
	}

	occs := EventsOn(day(2026, 1, 14), in)
	if len(occs) != 3 {
		t.Fatalf("got %d occurrences, want 3: %+v", len(occs), occs)
	}
	// All-day first, then timed ascending.
	if !occs[0].AllDay || occs[0].Title != "Add deadline" {
		t.Errorf("first = %+v, want the all-day event", occs[0])
	}
	if occs[1].Title != "Dentist" || occs[2].Title != "Intro to Algorithms" {
		t.Errorf("timed order: %q then %q", occs[1].Title, occs[2].Title)
	}
}

func TestEventsOnDateRangeCampusEvent(t *testing.T) {
	in := baseInputs()
	in.Enrollments = nil
	in.Campus = []model.CampusEvent{
		{Title: "Spring Break", StartDate: day(2026, 3, 9), EndDate: day(2026, 3, 13), Category: model.CategoryBreak},
	}

	for _, d := range []time.Time{day(2026, 3, 9), day(2026, 3, 11), day(2026, 3, 13)} {
		if occs := EventsOn(d, in); len(occs) != 1 {
			t.Errorf("want the break on %v, got %d occurrences", d, len(occs))
		}
	}
	if occs := EventsOn(day(2026, 3, 14), in); len(occs) != 0 {
		t.Errorf("break leaked past its end date: %+v", occs)
	}
}

func TestEventsOnDedupesDuplicateIngestion(t *testing.T) {
	in := baseInputs()
	in.Enrollments = nil
	ev := model.CampusEvent{Title: "Holiday", StartDate: day(2026, 1, 19), EndDate: day(2026, 1, 19), Category: model.CategoryHoliday}
	in.Campus = []model.CampusEvent{ev, ev, ev}

	if occs := EventsOn(day(2026, 1, 19), in); len(occs) != 1 {
		t.Errorf("duplicate ingestion not collapsed: %d occurrences", len(occs))
	}
}

func TestEventsOnHiddenAllDay(t *testing.T) {
	in := baseInputs()
	in.Enrollments = nil
	in.Campus = []model.CampusEvent{
		{Title: "Holiday", StartDate: day(2026, 1, 19), EndDate: day(2026, 1, 19), Category: model.CategoryHoliday},
	}

	occs := EventsOn(day(2026, 1, 19), in)
	if len(occs) != 1 {
		t.Fatalf("setup: want 1 occurrence, got %d", len(occs))
	}
	hidden := occs[0].IdentityKey()
	in.HiddenAllDay = func(key string) bool { return key == hidden }

	if occs := EventsOn(day(2026, 1, 19), in); len(occs) != 0 {
		t.Errorf("hidden all-day event still present: %+v", occs)
	}
}

func TestEventsOnPersonalWithoutTimesIsAllDay(t *testing.T) {
	in := baseInputs()
	in.Enrollments = nil
	in.Personal = []model.PersonalEvent{{ID: "p1", Title: "Move out", Date: day(2026, 5, 2)}}

	occs := EventsOn(day(2026, 5, 2), in)
	if len(occs) != 1 || !occs[0].AllDay {
		t.Fatalf("timeless personal event should be all-day: %+v", occs)
	}
}

func TestEventsOnHiddenPersonal(t *testing.T) {
	in := baseInputs()
	in.Enrollments = nil
	in.Personal = []model.PersonalEvent{
		{ID: "p1", Title: "Dentist", Date: day(2026, 1, 14), StartMinute: 480, EndMinute: 540},
	}
	occs := EventsOn(day(2026, 1, 14), in)
	if len(occs) != 1 {
		t.Fatalf("setup: want 1 occurrence, got %d", len(occs))
	}
	hidden := occs[0].IdentityKey()
	in.Gates.HiddenOccurrence = func(key string) bool { return key == hidden }

	if occs := EventsOn(day(2026, 1, 14), in); len(occs) != 0 {
		t.Errorf("hidden personal event still present: %+v", occs)
	}
}
