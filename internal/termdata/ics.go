package termdata

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// ParseCampusICS reads an institutional ICS feed into campus events.
// The feeds we consume publish all-day date-range events (holidays,
// breaks, finals periods); timed VEVENTs are flattened to their date
// span. Individual bad VEVENTs are skipped.
func ParseCampusICS(body []byte, loc *time.Location) ([]model.CampusEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("termdata: empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []model.CampusEvent
	for _, ve := range cal.Events() {
		ev, err := campusEventFromVEvent(ve, loc)
		if err != nil {
			applog.Debug("termdata: skipping ICS event", "reason", err.Error())
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func campusEventFromVEvent(ve *ical.VEvent, loc *time.Location) (model.CampusEvent, error) {
	title := ""
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title = p.Value
	}
	if title == "" {
		return model.CampusEvent{}, errors.New("missing SUMMARY")
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return model.CampusEvent{}, errors.New("missing DTSTART")
	}
	end, endErr := ve.GetEndAt()

	allDay := false
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if params := p.ICalParameters; params != nil {
			if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
				allDay = true
			}
		}
		if !strings.Contains(p.Value, "T") {
			allDay = true
		}
	}

	startDay := timeutil.StartOfDay(start, loc)
	endDay := startDay
	if endErr == nil && !end.IsZero() {
		endDay = timeutil.StartOfDay(end, loc)
		// All-day DTEND is exclusive; an inclusive range wants the day before.
		if allDay && endDay.After(startDay) {
			endDay = endDay.AddDate(0, 0, -1)
		}
		if endDay.Before(startDay) {
			endDay = startDay
		}
	}

	return model.CampusEvent{
		Title:     title,
		StartDate: startDay,
		EndDate:   endDay,
		Category:  categoryFromICS(ve, title),
	}, nil
}

// categoryFromICS prefers an explicit CATEGORIES property and falls back
// to title keywords.
func categoryFromICS(ve *ical.VEvent, title string) model.Category {
	text := title
	if p := ve.GetProperty(ical.ComponentPropertyCategories); p != nil {
		text = p.Value + " " + text
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "final"):
		return model.CategoryFinals
	case strings.Contains(lower, "break") || strings.Contains(lower, "recess"):
		return model.CategoryBreak
	case strings.Contains(lower, "holiday"):
		return model.CategoryHoliday
	case strings.Contains(lower, "no classes") || strings.Contains(lower, "no class"):
		return model.CategoryNoClasses
	case strings.Contains(lower, "reading"):
		return model.CategoryReadingDays
	default:
		return model.CategoryOther
	}
}
