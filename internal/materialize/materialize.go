// Package materialize turns weekly meeting patterns into concrete dated
// occurrences. Instance is pure: every input, including the target date,
// is passed explicitly.
package materialize

import (
	"time"

	"github.com/teambition/rrule-go"

	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// Gates supplies the state the materializer consults. Nil funcs behave
// as "no data": unknown bounds suppress, absent overrides mean normal.
type Gates struct {
	// Bounds resolves a term's interval; ok=false means not yet known.
	Bounds func(termID string) (model.TermInterval, bool)
	// Classification returns the meeting's override classification.
	Classification func(k model.MeetingKey) model.Classification
	// IsExamDate reports membership in the meeting's exam-date set.
	IsExamDate func(k model.MeetingKey, day time.Time) bool
	// HiddenOccurrence reports whether the user dismissed this single
	// instance (keyed by Occurrence.IdentityKey).
	HiddenOccurrence func(identityKey string) bool
}

func (g Gates) classification(k model.MeetingKey) model.Classification {
	if g.Classification == nil {
		return model.ClassNormal
	}
	return g.Classification(k)
}

// Instance materializes one pattern of an enrollment on the given date.
// ok=false means no instance exists on that date. Gating, in order:
//
//  1. invalid patterns (non-positive duration) never materialize
//  2. unknown term bounds suppress; dates outside the inclusive term
//     range suppress
//  3. disabled meetings suppress
//  4. exam meetings materialize only on their explicit exam dates, and
//     on those dates the weekday filter does not apply
//  5. everything else requires the date's weekday in the pattern's set
//  6. an instance the user dismissed individually is suppressed
func Instance(enr model.Enrollment, pat model.WeeklyPattern, date time.Time, loc *time.Location, g Gates) (model.Occurrence, bool) {
	if !pat.Valid() {
		return model.Occurrence{}, false
	}

	day := timeutil.StartOfDay(date, loc)

	if g.Bounds == nil {
		return model.Occurrence{}, false
	}
	iv, known := g.Bounds(enr.TermID)
	if !known || !iv.Contains(day) {
		return model.Occurrence{}, false
	}

	key := model.NewMeetingKey(enr.ID, pat)
	cls := g.classification(key)

	switch cls {
	case model.ClassDisabled:
		return model.Occurrence{}, false
	case model.ClassExam:
		if g.IsExamDate == nil || !g.IsExamDate(key, day) {
			return model.Occurrence{}, false
		}
	default:
		if !pat.Days.Contains(model.WeekdayOf(day)) {
			return model.Occurrence{}, false
		}
	}

	title := enr.Title
	badge := ""
	switch cls {
	case model.ClassExam:
		title = "Exam: " + title
		badge = "exam"
	case model.ClassRecitation:
		badge = "recitation"
	}

	occ := model.Occurrence{
		Title:        title,
		Location:     pat.Location,
		Start:        timeutil.AtMinute(day, pat.StartMinute, loc),
		End:          timeutil.AtMinute(day, pat.EndMinute, loc),
		EnrollmentID: enr.ID,
		MeetingKey:   key.String(),
		SeriesID:     key.String(),
		Badge:        badge,
	}

	if g.HiddenOccurrence != nil && g.HiddenOccurrence(occ.IdentityKey()) {
		return model.Occurrence{}, false
	}
	return occ, true
}

var rruleWeekdays = map[model.Weekday]rrule.Weekday{
	model.Sunday:    rrule.SU,
	model.Monday:    rrule.MO,
	model.Tuesday:   rrule.TU,
	model.Wednesday: rrule.WE,
	model.Thursday:  rrule.TH,
	model.Friday:    rrule.FR,
	model.Saturday:  rrule.SA,
}

// ExpandRange lists every start time a pattern meets inside the term
// interval, in ascending order. Used by the reminder scheduler and the
// ICS exporter; per-date queries go through Instance instead.
func ExpandRange(pat model.WeeklyPattern, iv model.TermInterval, loc *time.Location) ([]time.Time, error) {
	if !pat.Valid() {
		return nil, nil
	}

	byDay := make([]rrule.Weekday, 0, 7)
	for _, d := range pat.Days.Days() {
		byDay = append(byDay, rruleWeekdays[d])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Dtstart:   timeutil.AtMinute(iv.Start, pat.StartMinute, loc),
		Until:     timeutil.AtMinute(iv.End, pat.EndMinute, loc),
	})
	if err != nil {
		return nil, err
	}
	return r.All(), nil
}

// RRuleString renders the pattern as an RRULE line bounded by the term
// end, for ICS export.
func RRuleString(pat model.WeeklyPattern, iv model.TermInterval, loc *time.Location) (string, error) {
	byDay := make([]rrule.Weekday, 0, 7)
	for _, d := range pat.Days.Days() {
		byDay = append(byDay, rruleWeekdays[d])
	}
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Until:     timeutil.AtMinute(iv.End, pat.EndMinute, loc).UTC(),
	})
	if err != nil {
		return "", err
	}
	return r.String(), nil
}
