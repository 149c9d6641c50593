// Package overrides keeps per-meeting classification state and the
// explicit exam-date allow lists that gate materialization.
package overrides

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/store"
	"termcal/internal/timeutil"
)

const (
	kvOverrides = "overrides"
	kvExamDates = "exam_dates"
)

// Store holds classification overrides and exam-date sets for recurring
// meetings. All mutation persists through the KV immediately.
type Store struct {
	mu  sync.RWMutex
	kv  store.KV
	loc *time.Location

	class map[model.MeetingKey]model.Classification
	exams map[model.MeetingKey]map[string]struct{} // "YYYY-MM-DD" set
}

func NewStore(kv store.KV, loc *time.Location) *Store {
	return &Store{
		kv:    kv,
		loc:   loc,
		class: make(map[model.MeetingKey]model.Classification),
		exams: make(map[model.MeetingKey]map[string]struct{}),
	}
}

// Load reads persisted state. Keys are normalized on the way in: legacy
// keys that still carry a trailing location field collapse onto the
// 3-field key, and colliding exam-date sets merge via union. Corrupt
// entries are dropped, never fatal.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok, err := s.kv.Get(kvOverrides); err != nil {
		return err
	} else if ok {
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			applog.Warn("overrides blob is corrupt; starting empty", "err", err)
		} else {
			for ks, cs := range raw {
				k, err := model.ParseMeetingKey(ks)
				if err != nil {
					applog.Debug("dropping unparseable override key", "key", ks)
					continue
				}
				c := model.ParseClassification(cs)
				// On collision (legacy + normalized key for the same
				// meeting) the non-normal classification wins.
				if prev, exists := s.class[k]; !exists || prev == model.ClassNormal {
					s.class[k] = c
				}
			}
		}
	}

	if data, ok, err := s.kv.Get(kvExamDates); err != nil {
		return err
	} else if ok {
		var raw map[string][]string
		if err := json.Unmarshal(data, &raw); err != nil {
			applog.Warn("exam-dates blob is corrupt; starting empty", "err", err)
		} else {
			for ks, dates := range raw {
				k, err := model.ParseMeetingKey(ks)
				if err != nil {
					applog.Debug("dropping unparseable exam-date key", "key", ks)
					continue
				}
				set := s.exams[k]
				if set == nil {
					set = make(map[string]struct{})
					s.exams[k] = set
				}
				for _, ds := range dates {
					d, err := timeutil.ParseDate(ds, s.loc)
					if err != nil {
						continue
					}
					set[timeutil.FormatDate(d)] = struct{}{}
				}
				if len(set) == 0 {
					delete(s.exams, k)
				}
			}
		}
	}

	// An exam-date set implies exam classification; a dateless exam
	// classification is meaningless, so repair both directions.
	for k := range s.exams {
		s.class[k] = model.ClassExam
	}
	for k, c := range s.class {
		if c == model.ClassExam && len(s.exams[k]) == 0 {
			delete(s.class, k)
		}
	}

	return s.persistLocked()
}

// Get returns the meeting's classification, normal when absent.
func (s *Store) Get(k model.MeetingKey) model.Classification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.class[k]; ok {
		return c
	}
	return model.ClassNormal
}

// SetClassification records the classification. Moving a meeting away
// from exam clears its exam-date set as a side effect.
func (s *Store) SetClassification(k model.MeetingKey, c model.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == model.ClassNormal {
		delete(s.class, k)
	} else {
		s.class[k] = c
	}
	if c != model.ClassExam {
		delete(s.exams, k)
	}
	return s.persistLocked()
}

// SetExamDates replaces the meeting's exam-date set. Dates normalize to
// start-of-day in the campus zone and dedupe via set semantics. A
// non-empty set force-sets classification to exam; an empty set reverts
// the meeting to normal, exactly as SetClassification away from exam.
func (s *Store) SetExamDates(k model.MeetingKey, dates []time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		set[timeutil.FormatDate(timeutil.StartOfDay(d, s.loc))] = struct{}{}
	}

	if len(set) == 0 {
		delete(s.exams, k)
		delete(s.class, k)
	} else {
		s.exams[k] = set
		s.class[k] = model.ClassExam
	}
	return s.persistLocked()
}

// IsExamDate reports whether day is in the meeting's exam-date set.
func (s *Store) IsExamDate(k model.MeetingKey, day time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.exams[k]
	if set == nil {
		return false
	}
	_, ok := set[timeutil.FormatDate(timeutil.StartOfDay(day, s.loc))]
	return ok
}

// ExamDates lists the meeting's exam dates in ascending order.
func (s *Store) ExamDates(k model.MeetingKey) []time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.exams[k]
	if len(set) == 0 {
		return nil
	}
	out := make([]time.Time, 0, len(set))
	for ds := range set {
		d, err := timeutil.ParseDate(ds, s.loc)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// RemoveMeetings deletes all state for the given keys. Called when an
// enrollment is removed so its overrides do not outlive it.
func (s *Store) RemoveMeetings(keys []model.MeetingKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.class, k)
		delete(s.exams, k)
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	rawClass := make(map[string]string, len(s.class))
	for k, c := range s.class {
		rawClass[k.String()] = string(c)
	}
	data, err := json.Marshal(rawClass)
	if err != nil {
		return err
	}
	if err := s.kv.Set(kvOverrides, data); err != nil {
		return err
	}

	rawExams := make(map[string][]string, len(s.exams))
	for k, set := range s.exams {
		dates := make([]string, 0, len(set))
		for ds := range set {
			dates = append(dates, ds)
		}
		sort.Strings(dates)
		rawExams[k.String()] = dates
	}
	data, err = json.Marshal(rawExams)
	if err != nil {
		return err
	}
	return s.kv.Set(kvExamDates, data)
}
