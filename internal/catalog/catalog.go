// Package catalog loads the bundled course catalog JSON and turns
// sections into enrollable meeting patterns. Decoding is defensive all
// the way down: missing fields get safe defaults and malformed meetings
// are skipped, never fatal.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// defaultCredits is assumed when the catalog omits the credit count.
const defaultCredits = 4.0

// Meeting is one raw weekly meeting row from the catalog.
type Meeting struct {
	Days     []string `json:"days"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Location string   `json:"location"`
}

// Section is one offered section of a course.
type Section struct {
	CRN               json.Number `json:"crn"`
	Section           string      `json:"section"`
	Instructor        string      `json:"instructor"`
	Credits           float64     `json:"credits"`
	PrerequisitesText string      `json:"prerequisitesText"`
	Meetings          []Meeting   `json:"meetings"`
}

// Course groups a subject+number with its catalog metadata and sections.
type Course struct {
	Subject     string    `json:"subject"`
	Number      string    `json:"number"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Sections    []Section `json:"sections"`
}

// Catalog is the full bundled catalog for one term.
type Catalog struct {
	Term    string   `json:"term"`
	Courses []Course `json:"courses"`
}

// Load reads and decodes the catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes catalog JSON.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return &cat, nil
}

// CourseKey is the "SUBJ-1234" lookup key used by the API.
func (c Course) CourseKey() string {
	return strings.ToUpper(strings.TrimSpace(c.Subject)) + "-" + strings.TrimSpace(c.Number)
}

// Find locates a course and section by course key and section code.
func (cat *Catalog) Find(courseKey, sectionCode string) (Course, Section, bool) {
	for _, c := range cat.Courses {
		if !strings.EqualFold(c.CourseKey(), strings.TrimSpace(courseKey)) {
			continue
		}
		for _, s := range c.Sections {
			if strings.EqualFold(strings.TrimSpace(s.Section), strings.TrimSpace(sectionCode)) {
				return c, s, true
			}
		}
	}
	return Course{}, Section{}, false
}

// EnrollmentID derives the stable enrollment id from subject, number and
// section identifier.
func EnrollmentID(subject, number, section string) string {
	return fmt.Sprintf("%s-%s-%s",
		strings.ToUpper(strings.TrimSpace(subject)),
		strings.TrimSpace(number),
		strings.TrimSpace(section))
}

// BuildEnrollment converts a catalog section into an Enrollment for the
// given term. Meetings whose times or days do not parse are dropped with
// a log line; a section can legitimately end up with zero patterns
// (online/arranged courses have no scheduled meetings).
func BuildEnrollment(course Course, sec Section, termID string) model.Enrollment {
	enr := model.Enrollment{
		ID:         EnrollmentID(course.Subject, course.Number, sec.Section),
		TermID:     termID,
		Subject:    strings.ToUpper(strings.TrimSpace(course.Subject)),
		Number:     strings.TrimSpace(course.Number),
		Title:      strings.TrimSpace(course.Title),
		Section:    strings.TrimSpace(sec.Section),
		CRN:        sec.CRN.String(),
		Instructor: strings.TrimSpace(sec.Instructor),
		Credits:    sec.Credits,
	}
	if enr.Title == "" {
		enr.Title = enr.Subject + " " + enr.Number
	}
	if enr.Credits <= 0 {
		enr.Credits = defaultCredits
	}

	for _, m := range sec.Meetings {
		pat, err := buildPattern(m)
		if err != nil {
			applog.Debug("catalog: skipping meeting", "enrollment_id", enr.ID, "reason", err.Error())
			continue
		}
		enr.Patterns = append(enr.Patterns, pat)
	}
	return enr
}

func buildPattern(m Meeting) (model.WeeklyPattern, error) {
	days, err := timeutil.ParseWeekdaySet(m.Days)
	if err != nil {
		return model.WeeklyPattern{}, err
	}
	start, err := timeutil.ParseTimeOfDay(m.Start)
	if err != nil {
		return model.WeeklyPattern{}, err
	}
	end, err := timeutil.ParseTimeOfDay(m.End)
	if err != nil {
		return model.WeeklyPattern{}, err
	}
	pat := model.WeeklyPattern{
		Days:        days,
		StartMinute: start,
		EndMinute:   end,
		Location:    strings.TrimSpace(m.Location),
	}
	if !pat.Valid() {
		return model.WeeklyPattern{}, fmt.Errorf("non-positive duration %s-%s", m.Start, m.End)
	}
	return pat, nil
}
