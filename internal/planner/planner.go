// Package planner owns the mutable scheduling state: enrollments,
// personal events, suppression sets, and grades. All mutation goes
// through one mutex and persists immediately through the KV boundary.
package planner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"termcal/internal/agenda"
	"termcal/internal/catalog"
	"termcal/internal/conflict"
	applog "termcal/internal/log"
	"termcal/internal/materialize"
	"termcal/internal/model"
	"termcal/internal/overrides"
	"termcal/internal/store"
	"termcal/internal/termbounds"
	"termcal/internal/timeutil"
)

var (
	// ErrConflict rejects an enrollment whose meetings overlap an
	// existing schedule. This is a normal negative result, not a fault.
	ErrConflict = errors.New("schedule conflict")
	// ErrPrerequisites rejects an enrollment whose prerequisite
	// expression evaluates false against the completed-course set.
	ErrPrerequisites = errors.New("prerequisites not met")
)

// Planner is the single logical owner of all in-memory scheduling state.
type Planner struct {
	mu sync.RWMutex

	kv        store.KV
	overrides *overrides.Store
	bounds    *termbounds.Registry
	loc       *time.Location

	enrollments  []model.Enrollment
	personal     []model.PersonalEvent
	campus       []model.CampusEvent
	hiddenOcc    map[string]string // identity key -> enrollment id ("" for non-course)
	hiddenAllDay map[string]struct{}
	grades       map[string]string // enrollment id -> grade
}

// AddOptions carries the optional checks for AddEnrollment.
type AddOptions struct {
	// PrerequisitesText, when non-empty and Completed is non-nil,
	// enables the best-effort prerequisite check.
	PrerequisitesText string
	Completed         []string
}

func New(kv store.KV, ov *overrides.Store, bounds *termbounds.Registry, loc *time.Location) *Planner {
	return &Planner{
		kv:           kv,
		overrides:    ov,
		bounds:       bounds,
		loc:          loc,
		hiddenOcc:    make(map[string]string),
		hiddenAllDay: make(map[string]struct{}),
		grades:       make(map[string]string),
	}
}

// AddEnrollment runs the enrollment workflow: idempotency, optional
// prerequisite check, then the conflict gate. The candidate's term
// bounds load is kicked off asynchronously either way, so a retry after
// the bounds arrive checks against the full overlapping-term set.
func (p *Planner) AddEnrollment(ctx context.Context, enr model.Enrollment, opts AddOptions) error {
	if enr.ID == "" {
		return errors.New("enrollment id is empty")
	}

	if p.bounds != nil {
		p.bounds.EnsureLoaded(ctx, enr.TermID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.enrollments {
		if existing.ID == enr.ID {
			applog.Debug("duplicate enrollment ignored", "id", enr.ID)
			return nil
		}
	}

	if opts.PrerequisitesText != "" && opts.Completed != nil {
		if met, checked := catalog.Satisfied(opts.PrerequisitesText, opts.Completed); checked && !met {
			return ErrPrerequisites
		}
	}

	if conflict.Detect(enr.Patterns, enr.TermID, p.enrollments, p.boundsFunc()) {
		return ErrConflict
	}

	p.enrollments = append(p.enrollments, enr)
	applog.Info("enrollment added", "id", enr.ID, "term_id", enr.TermID, "patterns", len(enr.Patterns))
	return p.persistLocked()
}

// CheckConflict runs the conflict gate without enrolling.
func (p *Planner) CheckConflict(ctx context.Context, patterns []model.WeeklyPattern, termID string) bool {
	if p.bounds != nil {
		p.bounds.EnsureLoaded(ctx, termID)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return conflict.Detect(patterns, termID, p.enrollments, p.boundsFunc())
}

// RemoveEnrollment deletes the enrollment and cascades: overrides and
// exam dates keyed by its meetings, its hidden-occurrence entries, and
// its grade all go with it. Removing an unknown id is a no-op.
func (p *Planner) RemoveEnrollment(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := -1
	for i, enr := range p.enrollments {
		if enr.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := p.enrollments[idx]
	p.enrollments = append(p.enrollments[:idx], p.enrollments[idx+1:]...)

	if p.overrides != nil {
		if err := p.overrides.RemoveMeetings(removed.MeetingKeys()); err != nil {
			applog.Error("override cascade failed", err, "id", id)
		}
	}
	for key, owner := range p.hiddenOcc {
		if owner == id {
			delete(p.hiddenOcc, key)
		}
	}
	delete(p.grades, id)

	applog.Info("enrollment removed", "id", id)
	return p.persistLocked()
}

// Enrollments returns a snapshot of the enrollment list.
func (p *Planner) Enrollments() []model.Enrollment {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Enrollment, len(p.enrollments))
	copy(out, p.enrollments)
	return out
}

// AddPersonalEvent stores a one-off event, assigning an id when absent.
func (p *Planner) AddPersonalEvent(ev model.PersonalEvent) (model.PersonalEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Date = timeutil.StartOfDay(ev.Date, p.loc)
	for i, existing := range p.personal {
		if existing.ID == ev.ID {
			p.personal[i] = ev
			return ev, p.persistLocked()
		}
	}
	p.personal = append(p.personal, ev)
	return ev, p.persistLocked()
}

// RemovePersonalEvent deletes by id; unknown ids are a no-op.
func (p *Planner) RemovePersonalEvent(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, ev := range p.personal {
		if ev.ID == id {
			p.personal = append(p.personal[:i], p.personal[i+1:]...)
			return p.persistLocked()
		}
	}
	return nil
}

// SetCampusEvents replaces the institutional event set after a calendar
// refresh. Campus events are not persisted; the data source is their
// source of truth.
func (p *Planner) SetCampusEvents(events []model.CampusEvent) {
	p.mu.Lock()
	p.campus = events
	p.mu.Unlock()
}

// HideOccurrence suppresses one concrete instance by identity key.
func (p *Planner) HideOccurrence(occ model.Occurrence) error {
	return p.HideOccurrenceKey(occ.IdentityKey(), occ.EnrollmentID)
}

// HideOccurrenceKey records a suppression for an already-computed
// identity key. The owning enrollment id (may be empty) lets removal
// cascade prune the entry.
func (p *Planner) HideOccurrenceKey(identityKey, enrollmentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hiddenOcc[identityKey] = enrollmentID
	return p.persistLocked()
}

// UnhideOccurrence restores a previously hidden instance.
func (p *Planner) UnhideOccurrence(identityKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hiddenOcc, identityKey)
	return p.persistLocked()
}

// HideAllDay suppresses an institutional occurrence by identity key.
func (p *Planner) HideAllDay(identityKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hiddenAllDay[identityKey] = struct{}{}
	return p.persistLocked()
}

// UnhideAllDay restores a hidden institutional occurrence.
func (p *Planner) UnhideAllDay(identityKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.hiddenAllDay, identityKey)
	return p.persistLocked()
}

// SetGrade records a grade for an enrollment. Grades for ids that are
// no longer enrolled are pruned at load time.
func (p *Planner) SetGrade(enrollmentID, grade string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if grade == "" {
		delete(p.grades, enrollmentID)
	} else {
		p.grades[enrollmentID] = grade
	}
	return p.persistLocked()
}

// Grades returns a snapshot of the grade map.
func (p *Planner) Grades() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.grades))
	for k, v := range p.grades {
		out[k] = v
	}
	return out
}

// EventsOn aggregates everything scheduled on the given date.
func (p *Planner) EventsOn(date time.Time) []model.Occurrence {
	p.mu.RLock()
	enrollments := make([]model.Enrollment, len(p.enrollments))
	copy(enrollments, p.enrollments)
	personal := make([]model.PersonalEvent, len(p.personal))
	copy(personal, p.personal)
	campus := make([]model.CampusEvent, len(p.campus))
	copy(campus, p.campus)
	hiddenOcc := make(map[string]string, len(p.hiddenOcc))
	for k, v := range p.hiddenOcc {
		hiddenOcc[k] = v
	}
	hiddenAllDay := make(map[string]struct{}, len(p.hiddenAllDay))
	for k := range p.hiddenAllDay {
		hiddenAllDay[k] = struct{}{}
	}
	p.mu.RUnlock()

	return agenda.EventsOn(date, agenda.Inputs{
		Enrollments: enrollments,
		Personal:    personal,
		Campus:      campus,
		HiddenAllDay: func(key string) bool {
			_, ok := hiddenAllDay[key]
			return ok
		},
		Gates: materialize.Gates{
			Bounds:         p.boundsFunc(),
			Classification: p.overrides.Get,
			IsExamDate:     p.overrides.IsExamDate,
			HiddenOccurrence: func(key string) bool {
				_, ok := hiddenOcc[key]
				return ok
			},
		},
		Loc: p.loc,
	})
}

// Overrides exposes the override store for the API layer.
func (p *Planner) Overrides() *overrides.Store { return p.overrides }

// Location returns the campus timezone.
func (p *Planner) Location() *time.Location { return p.loc }

func (p *Planner) boundsFunc() conflict.BoundsFunc {
	if p.bounds == nil {
		return func(string) (model.TermInterval, bool) { return model.TermInterval{}, false }
	}
	return p.bounds.BoundsFor
}
