// Package agenda unions everything scheduled on one date: materialized
// recurring meetings, one-off personal events, and institutional events,
// with per-instance suppression, dedup, and a stable sort order.
package agenda

import (
	"time"

	"termcal/internal/materialize"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// Inputs is everything the aggregator reads. It takes snapshots, not
// live stores, so a query is reproducible for a fixed input set.
type Inputs struct {
	Enrollments []model.Enrollment
	Personal    []model.PersonalEvent
	Campus      []model.CampusEvent

	// HiddenAllDay suppresses an institutional occurrence by identity key.
	HiddenAllDay func(identityKey string) bool

	Gates materialize.Gates
	Loc   *time.Location
}

// EventsOn returns the occurrences for the requested date, all-day
// events first, timed events in ascending start order, deduplicated by
// identity key. Duplicate institutional rows from sloppy ingestion
// collapse to one.
func EventsOn(date time.Time, in Inputs) []model.Occurrence {
	loc := in.Loc
	if loc == nil {
		loc = time.Local
	}
	day := timeutil.StartOfDay(date, loc)

	var out []model.Occurrence
	seen := make(map[string]struct{})

	add := func(occ model.Occurrence) {
		key := occ.IdentityKey()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, occ)
	}

	for _, enr := range in.Enrollments {
		for _, pat := range enr.Patterns {
			if occ, ok := materialize.Instance(enr, pat, day, loc, in.Gates); ok {
				add(occ)
			}
		}
	}

	for _, ev := range in.Personal {
		if !timeutil.SameDay(ev.Date, day, loc) {
			continue
		}
		occ := model.Occurrence{
			Title:    ev.Title,
			Location: ev.Location,
			Start:    timeutil.AtMinute(day, ev.StartMinute, loc),
			End:      timeutil.AtMinute(day, ev.EndMinute, loc),
			SeriesID: ev.ID,
		}
		if ev.EndMinute <= ev.StartMinute {
			// Personal events without a sensible time range show all day.
			occ.AllDay = true
			occ.Start = day
			occ.End = day.AddDate(0, 0, 1)
		}
		if in.Gates.HiddenOccurrence != nil && in.Gates.HiddenOccurrence(occ.IdentityKey()) {
			continue
		}
		add(occ)
	}

	for _, ev := range in.Campus {
		iv := model.TermInterval{Start: timeutil.StartOfDay(ev.StartDate, loc), End: timeutil.StartOfDay(ev.EndDate, loc)}
		if !iv.Contains(day) {
			continue
		}
		occ := model.Occurrence{
			Title:    ev.Title,
			AllDay:   true,
			Start:    day,
			End:      day.AddDate(0, 0, 1),
			Category: ev.Category,
		}
		if in.HiddenAllDay != nil && in.HiddenAllDay(occ.IdentityKey()) {
			continue
		}
		add(occ)
	}

	model.SortOccurrences(out)
	return out
}
