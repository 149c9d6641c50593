package conflict

import (
	"testing"
	"time"

	"termcal/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func pattern(days []model.Weekday, start, end int) model.WeeklyPattern {
	var set model.WeekdaySet
	for _, d := range days {
		set = set.Add(d)
	}
	return model.WeeklyPattern{Days: set, StartMinute: start, EndMinute: end}
}

func knownBounds(m map[string]model.TermInterval) BoundsFunc {
	return func(termID string) (model.TermInterval, bool) {
		iv, ok := m[termID]
		return iv, ok
	}
}

var springOnly = knownBounds(map[string]model.TermInterval{
	"202601": {TermID: "202601", Start: day(2026, 1, 12), End: day(2026, 5, 1)},
})

func TestDetectOverlapSameDay(t *testing.T) {
	existing := []model.Enrollment{{
		ID: "X", TermID: "202601",
		Patterns: []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)}, // Mon 9:00-9:50
	}}
	cand := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 570, 620)} // Mon 9:30-10:20

	if !Detect(cand, "202601", existing, springOnly) {
		t.Error("expected conflict for overlapping Monday meetings")
	}
}

func TestDetectDifferentWeekday(t *testing.T) {
	existing := []model.Enrollment{{
		ID: "X", TermID: "202601",
		Patterns: []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)},
	}}
	cand := []model.WeeklyPattern{pattern([]model.Weekday{model.Tuesday}, 540, 590)}

	if Detect(cand, "202601", existing, springOnly) {
		t.Error("different weekday must not conflict")
	}
}

func TestDetectBackToBack(t *testing.T) {
	existing := []model.Enrollment{{
		ID: "X", TermID: "202601",
		Patterns: []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)},
	}}
	// 9:50-10:40 starts exactly when the other ends: half-open, no clash.
	cand := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 590, 640)}

	if Detect(cand, "202601", existing, springOnly) {
		t.Error("back-to-back meetings must not conflict")
	}
}

func TestDetectSymmetry(t *testing.T) {
	a := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)}
	b := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 570, 620)}
	enrA := []model.Enrollment{{ID: "A", TermID: "202601", Patterns: a}}
	enrB := []model.Enrollment{{ID: "B", TermID: "202601", Patterns: b}}

	if Detect(a, "202601", enrB, springOnly) != Detect(b, "202601", enrA, springOnly) {
		t.Error("conflict detection must be symmetric")
	}
}

func TestDetectSkipsNonPositiveDurations(t *testing.T) {
	existing := []model.Enrollment{{
		ID: "X", TermID: "202601",
		Patterns: []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 590, 540)}, // inverted
	}}
	cand := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)}

	if Detect(cand, "202601", existing, springOnly) {
		t.Error("inverted existing pattern must be skipped")
	}
	// And the inverted candidate likewise.
	if Detect([]model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 590, 540)}, "202601",
		[]model.Enrollment{{ID: "Y", TermID: "202601", Patterns: cand}}, springOnly) {
		t.Error("inverted candidate pattern must be skipped")
	}
}

func TestDetectUnknownBoundsFallsBackToTermEquality(t *testing.T) {
	noBounds := knownBounds(map[string]model.TermInterval{})
	overlap := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)}
	existing := []model.Enrollment{{ID: "X", TermID: "202601", Patterns: overlap}}

	// Same term id: conservatively compared even with bounds unknown.
	if !Detect(overlap, "202601", existing, noBounds) {
		t.Error("same-term candidates must be compared while bounds are unknown")
	}
	// Different term id with unknown bounds: not compared.
	if Detect(overlap, "202609", existing, noBounds) {
		t.Error("different-term candidates must not be compared while bounds are unknown")
	}
}

func TestDetectCrossTermIntervalOverlap(t *testing.T) {
	bounds := knownBounds(map[string]model.TermInterval{
		"202601":     {TermID: "202601", Start: day(2026, 1, 12), End: day(2026, 5, 1)},
		"2026spring": {TermID: "2026spring", Start: day(2026, 3, 1), End: day(2026, 6, 1)},
		"202609":     {TermID: "202609", Start: day(2026, 8, 27), End: day(2026, 12, 11)},
	})
	overlap := []model.WeeklyPattern{pattern([]model.Weekday{model.Monday}, 540, 590)}
	existing := []model.Enrollment{{ID: "X", TermID: "202601", Patterns: overlap}}

	// Different term ids, overlapping date intervals: compared.
	if !Detect(overlap, "2026spring", existing, bounds) {
		t.Error("term-interval overlap must trigger comparison across term ids")
	}
	// Disjoint intervals: same weekly times are fine.
	if Detect(overlap, "202609", existing, bounds) {
		t.Error("disjoint terms must not conflict")
	}
}
