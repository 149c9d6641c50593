package termdata

import (
	"encoding/json"
	"fmt"
	"time"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// TermDates is the per-term block of the normalized calendar file.
type TermDates struct {
	ClassesBegin string `json:"classesBegin"`
	ClassesEnd   string `json:"classesEnd"`
}

// RawEvent is one fixed-date institutional event row. Every field is
// optional; rows that lack a usable start date are dropped.
type RawEvent struct {
	Title     string          `json:"title"`
	StartDate string          `json:"startDate"`
	EndDate   string          `json:"endDate"`
	Dow       string          `json:"dow"`
	Tags      map[string]bool `json:"tags"`
}

// CalendarFile mirrors the scraper's normalized JSON output.
type CalendarFile struct {
	Source       string               `json:"source"`
	AcademicYear string               `json:"academicYear"`
	Terms        map[string]TermDates `json:"terms"`
	Events       []RawEvent           `json:"events"`
}

// ParseCalendarFile decodes the calendar JSON.
func ParseCalendarFile(data []byte) (*CalendarFile, error) {
	var cf CalendarFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("termdata: %w", err)
	}
	return &cf, nil
}

// TermInterval extracts the class date range for one term key ("fall",
// "spring") as start-of-day values in loc.
func (cf *CalendarFile) TermInterval(termKey, termID string, loc *time.Location) (model.TermInterval, error) {
	td, ok := cf.Terms[termKey]
	if !ok {
		return model.TermInterval{}, fmt.Errorf("termdata: no %q term in calendar", termKey)
	}
	start, err := timeutil.ParseDate(td.ClassesBegin, loc)
	if err != nil {
		return model.TermInterval{}, fmt.Errorf("termdata: classesBegin: %w", err)
	}
	end, err := timeutil.ParseDate(td.ClassesEnd, loc)
	if err != nil {
		return model.TermInterval{}, fmt.Errorf("termdata: classesEnd: %w", err)
	}
	if end.Before(start) {
		return model.TermInterval{}, fmt.Errorf("termdata: classesEnd %s before classesBegin %s", td.ClassesEnd, td.ClassesBegin)
	}
	return model.TermInterval{TermID: termID, Start: start, End: end}, nil
}

// CampusEvents converts the event rows, skipping malformed ones.
func (cf *CalendarFile) CampusEvents(loc *time.Location) []model.CampusEvent {
	out := make([]model.CampusEvent, 0, len(cf.Events))
	for _, raw := range cf.Events {
		start, err := timeutil.ParseDate(raw.StartDate, loc)
		if err != nil {
			applog.Debug("termdata: skipping event without start date", "title", raw.Title)
			continue
		}
		end := start
		if raw.EndDate != "" {
			if e, err := timeutil.ParseDate(raw.EndDate, loc); err == nil && !e.Before(start) {
				end = e
			}
		}
		out = append(out, model.CampusEvent{
			Title:     raw.Title,
			StartDate: start,
			EndDate:   end,
			Category:  categoryFromTags(raw.Tags),
		})
	}
	return out
}

// categoryFromTags maps the scraper's boolean tags to one category.
// Precedence: finals > break > holiday > noClasses > readingDays.
func categoryFromTags(tags map[string]bool) model.Category {
	switch {
	case tags["finals"]:
		return model.CategoryFinals
	case tags["break"]:
		return model.CategoryBreak
	case tags["holiday"]:
		return model.CategoryHoliday
	case tags["noClasses"]:
		return model.CategoryNoClasses
	case tags["readingDays"]:
		return model.CategoryReadingDays
	default:
		return model.CategoryOther
	}
}
