// Package conflict decides whether a candidate set of weekly patterns
// collides in time with already-scheduled enrollments. Pure accept/reject;
// the enrollment workflow stops on true.
package conflict

import (
	applog "termcal/internal/log"
	"termcal/internal/model"
)

// BoundsFunc resolves a term interval, ok=false when not yet known.
type BoundsFunc func(termID string) (model.TermInterval, bool)

type span struct {
	start, end int
}

// Detect reports whether any candidate pattern overlaps any pattern of
// an existing enrollment whose term interval overlaps the candidate's.
//
// When either side's interval is unknown the overlap test degrades to
// exact termID equality, so a candidate is never waved through just
// because bounds have not arrived yet for a same-term enrollment.
// Patterns with non-positive duration are skipped, not errors.
func Detect(candidate []model.WeeklyPattern, candTermID string, existing []model.Enrollment, bounds BoundsFunc) bool {
	candIv, candKnown := resolve(bounds, candTermID)

	// Bucket existing meeting spans by weekday, restricted to
	// term-overlapping enrollments.
	byDay := make(map[model.Weekday][]span)
	for _, enr := range existing {
		if !termsOverlap(candTermID, candIv, candKnown, enr.TermID, bounds) {
			continue
		}
		for _, pat := range enr.Patterns {
			if pat.EndMinute <= pat.StartMinute {
				applog.Debug("conflict: skipping non-positive pattern",
					"enrollment_id", enr.ID, "start", pat.StartMinute, "end", pat.EndMinute)
				continue
			}
			for _, d := range pat.Days.Days() {
				byDay[d] = append(byDay[d], span{pat.StartMinute, pat.EndMinute})
			}
		}
	}

	for _, pat := range candidate {
		if pat.EndMinute <= pat.StartMinute {
			applog.Debug("conflict: skipping non-positive candidate pattern",
				"start", pat.StartMinute, "end", pat.EndMinute)
			continue
		}
		for _, d := range pat.Days.Days() {
			for _, sp := range byDay[d] {
				// Half-open overlap: back-to-back meetings do not clash.
				if pat.StartMinute < sp.end && sp.start < pat.EndMinute {
					return true
				}
			}
		}
	}
	return false
}

func resolve(bounds BoundsFunc, termID string) (model.TermInterval, bool) {
	if bounds == nil {
		return model.TermInterval{}, false
	}
	return bounds(termID)
}

func termsOverlap(candTermID string, candIv model.TermInterval, candKnown bool, otherTermID string, bounds BoundsFunc) bool {
	otherIv, otherKnown := resolve(bounds, otherTermID)
	if candKnown && otherKnown {
		return candIv.Overlaps(otherIv)
	}
	return candTermID == otherTermID
}
