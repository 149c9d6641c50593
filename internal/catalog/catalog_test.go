package catalog

import (
	"testing"

	"termcal/internal/model"
)

const sampleCatalog = `{
  "term": "202601",
  "courses": [
    {
      "subject": "csci",
      "number": "2300",
      "title": "Intro to Algorithms",
      "sections": [
        {
          "crn": 12345,
          "section": "01",
          "instructor": "Goldschmidt",
          "credits": 4,
          "prerequisitesText": "CSCI 1200 and (MATH 1010 or MATH 2010)",
          "meetings": [
            {"days": ["M", "R"], "start": "10:00", "end": "11:50", "location": "DARRIN 308"},
            {"days": ["W"], "start": "bogus", "end": "11:00", "location": "SAGE 3303"}
          ]
        }
      ]
    },
    {
      "subject": "ARTS",
      "number": "2960",
      "title": "",
      "sections": [
        {"crn": "67890", "section": "01", "meetings": []}
      ]
    }
  ]
}`

func TestParseAndFind(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.Term != "202601" || len(cat.Courses) != 2 {
		t.Fatalf("term=%q courses=%d", cat.Term, len(cat.Courses))
	}

	// Course key lookup is case-insensitive.
	course, sec, ok := cat.Find("csci-2300", "01")
	if !ok {
		t.Fatal("Find(csci-2300, 01) failed")
	}
	if course.CourseKey() != "CSCI-2300" || sec.CRN.String() != "12345" {
		t.Errorf("key=%q crn=%q", course.CourseKey(), sec.CRN.String())
	}

	if _, _, ok := cat.Find("CSCI-2300", "02"); ok {
		t.Error("unknown section should not be found")
	}
	if _, _, ok := cat.Find("PHYS-1100", "01"); ok {
		t.Error("unknown course should not be found")
	}
}

func TestBuildEnrollmentSkipsBadMeetings(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	course, sec, _ := cat.Find("CSCI-2300", "01")
	enr := BuildEnrollment(course, sec, "202601")

	if enr.ID != "CSCI-2300-01" {
		t.Errorf("id = %q", enr.ID)
	}
	// The bogus-start meeting is dropped, the Mon/Thu one survives.
	if len(enr.Patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(enr.Patterns))
	}
	pat := enr.Patterns[0]
	if !pat.Days.Contains(model.Monday) || !pat.Days.Contains(model.Thursday) || len(pat.Days.Days()) != 2 {
		t.Errorf("days = %v", pat.Days.Days())
	}
	if pat.StartMinute != 600 || pat.EndMinute != 710 {
		t.Errorf("minutes = %d-%d", pat.StartMinute, pat.EndMinute)
	}
	if pat.Location != "DARRIN 308" {
		t.Errorf("location = %q", pat.Location)
	}
}

func TestBuildEnrollmentDefaults(t *testing.T) {
	cat, err := Parse([]byte(sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	course, sec, _ := cat.Find("ARTS-2960", "01")
	enr := BuildEnrollment(course, sec, "202601")

	if enr.Credits != 4.0 {
		t.Errorf("credits = %v, want the 4.0 default", enr.Credits)
	}
	if enr.Title != "ARTS 2960" {
		t.Errorf("empty title should fall back to subject+number, got %q", enr.Title)
	}
	// Arranged courses legitimately have no meetings.
	if len(enr.Patterns) != 0 {
		t.Errorf("patterns = %d, want 0", len(enr.Patterns))
	}
}

func TestSatisfied(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		completed []string
		met       bool
		checked   bool
	}{
		{"empty text", "", []string{"CSCI-1200"}, true, false},
		{"simple met", "CSCI 1200", []string{"CSCI-1200"}, true, true},
		{"simple unmet", "CSCI 1200", []string{"MATH-1010"}, false, true},
		{"and met", "CSCI 1200 and MATH 1010", []string{"CSCI-1200", "MATH-1010"}, true, true},
		{"and unmet", "CSCI 1200 and MATH 1010", []string{"CSCI-1200"}, false, true},
		{"or met", "MATH 1010 or MATH 2010", []string{"MATH-2010"}, true, true},
		{"parenthesized", "CSCI 1200 and (MATH 1010 or MATH 2010)", []string{"CSCI-1200", "MATH-2010"}, true, true},
		{"precedence and binds tighter", "CSCI 1200 or MATH 1010 and MATH 2010", []string{"CSCI-1200"}, true, true},
		{"case and separator insensitive", "csci 1200", []string{"csci 1200"}, true, true},
		{"unparseable free text", "Permission of instructor required", nil, true, false},
		{"unbalanced parens", "(CSCI 1200", []string{"CSCI-1200"}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			met, checked := Satisfied(tc.text, tc.completed)
			if met != tc.met || checked != tc.checked {
				t.Errorf("Satisfied(%q, %v) = (%v, %v), want (%v, %v)",
					tc.text, tc.completed, met, checked, tc.met, tc.checked)
			}
		})
	}
}
