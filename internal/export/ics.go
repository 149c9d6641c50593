// Package export serializes the planned schedule as an ICS calendar so
// external calendar apps can subscribe to it. Weekly meetings become
// RRULE VEVENTs bounded by the term end; exam meetings become one
// VEVENT per explicit exam date.
package export

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	applog "termcal/internal/log"
	"termcal/internal/materialize"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// Inputs is the snapshot the exporter serializes.
type Inputs struct {
	Enrollments []model.Enrollment
	Personal    []model.PersonalEvent

	Bounds         func(termID string) (model.TermInterval, bool)
	Classification func(k model.MeetingKey) model.Classification
	ExamDates      func(k model.MeetingKey) []time.Time

	Loc *time.Location
}

// Calendar builds the ICS calendar. Enrollments whose term bounds are
// not yet known are skipped, same as materialization would.
func Calendar(in Inputs) *ical.Calendar {
	loc := in.Loc
	if loc == nil {
		loc = time.Local
	}
	now := time.Now().In(loc)

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)

	for _, enr := range in.Enrollments {
		iv, known := in.Bounds(enr.TermID)
		if !known {
			applog.Debug("export: skipping enrollment with unknown term bounds", "id", enr.ID)
			continue
		}
		for _, pat := range enr.Patterns {
			if !pat.Valid() {
				continue
			}
			key := model.NewMeetingKey(enr.ID, pat)
			cls := model.ClassNormal
			if in.Classification != nil {
				cls = in.Classification(key)
			}

			switch cls {
			case model.ClassDisabled:
				continue

			case model.ClassExam:
				if in.ExamDates == nil {
					continue
				}
				for _, day := range in.ExamDates(key) {
					ev := cal.AddEvent(fmt.Sprintf("%s/%s@termcal", key.String(), timeutil.FormatDate(day)))
					ev.SetDtStampTime(now)
					ev.SetSummary("Exam: " + enr.Title)
					if pat.Location != "" {
						ev.SetLocation(pat.Location)
					}
					ev.SetStartAt(timeutil.AtMinute(day, pat.StartMinute, loc))
					ev.SetEndAt(timeutil.AtMinute(day, pat.EndMinute, loc))
				}

			default:
				first, ok := firstMeetingDay(pat, iv)
				if !ok {
					continue
				}
				rule, err := materialize.RRuleString(pat, iv, loc)
				if err != nil {
					applog.Error("export: rrule build failed", err, "meeting", key.String())
					continue
				}
				ev := cal.AddEvent(key.String() + "@termcal")
				ev.SetDtStampTime(now)
				ev.SetSummary(enr.Title)
				if pat.Location != "" {
					ev.SetLocation(pat.Location)
				}
				ev.SetStartAt(timeutil.AtMinute(first, pat.StartMinute, loc))
				ev.SetEndAt(timeutil.AtMinute(first, pat.EndMinute, loc))
				ev.AddRrule(rule)
			}
		}
	}

	for _, pe := range in.Personal {
		ev := cal.AddEvent(pe.ID + "@termcal")
		ev.SetDtStampTime(now)
		ev.SetSummary(pe.Title)
		if pe.Location != "" {
			ev.SetLocation(pe.Location)
		}
		if pe.Notes != "" {
			ev.SetDescription(pe.Notes)
		}
		if pe.EndMinute > pe.StartMinute {
			ev.SetStartAt(timeutil.AtMinute(pe.Date, pe.StartMinute, loc))
			ev.SetEndAt(timeutil.AtMinute(pe.Date, pe.EndMinute, loc))
		} else {
			ev.SetAllDayStartAt(timeutil.StartOfDay(pe.Date, loc))
			ev.SetAllDayEndAt(timeutil.StartOfDay(pe.Date, loc).AddDate(0, 0, 1))
		}
	}

	return cal
}

// Serialize renders the calendar to its wire form.
func Serialize(in Inputs) string {
	return Calendar(in).Serialize()
}

// firstMeetingDay finds the earliest date inside the term interval whose
// weekday is in the pattern's set.
func firstMeetingDay(pat model.WeeklyPattern, iv model.TermInterval) (time.Time, bool) {
	for day := iv.Start; !day.After(iv.End); day = day.AddDate(0, 0, 1) {
		if pat.Days.Contains(model.WeekdayOf(day)) {
			return day, true
		}
	}
	return time.Time{}, false
}
