package planner

import (
	"encoding/json"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// Logical persistence keys. The KV treats the values as opaque blobs.
const (
	kvEnrollments  = "enrollments"
	kvPersonal     = "personal_events"
	kvHiddenOcc    = "hidden_occurrences"
	kvHiddenAllDay = "hidden_allday"
	kvGrades       = "grades"
)

type personalBlob struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	Location    string `json:"location,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// Load reads every persisted blob. Decoding is defensive: a corrupt
// blob logs and starts that piece empty, and entries that refer to
// enrollments which no longer exist are pruned (grades, hidden
// occurrences). The override store migrates its own keys.
func (p *Planner) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if data, ok, err := p.kv.Get(kvEnrollments); err != nil {
		return err
	} else if ok {
		var enrs []model.Enrollment
		if err := json.Unmarshal(data, &enrs); err != nil {
			applog.Warn("enrollments blob is corrupt; starting empty", "err", err)
		} else {
			kept := enrs[:0]
			for _, enr := range enrs {
				if enr.ID == "" {
					continue
				}
				kept = append(kept, enr)
			}
			p.enrollments = kept
		}
	}

	enrolled := make(map[string]bool, len(p.enrollments))
	for _, enr := range p.enrollments {
		enrolled[enr.ID] = true
	}

	if data, ok, err := p.kv.Get(kvPersonal); err != nil {
		return err
	} else if ok {
		var blobs []personalBlob
		if err := json.Unmarshal(data, &blobs); err != nil {
			applog.Warn("personal events blob is corrupt; starting empty", "err", err)
		} else {
			for _, b := range blobs {
				if b.ID == "" || b.Title == "" {
					continue
				}
				date, err := timeutil.ParseDate(b.Date, p.loc)
				if err != nil {
					applog.Debug("dropping personal event with bad date", "id", b.ID, "date", b.Date)
					continue
				}
				p.personal = append(p.personal, model.PersonalEvent{
					ID:          b.ID,
					Title:       b.Title,
					Date:        date,
					StartMinute: b.StartMinute,
					EndMinute:   b.EndMinute,
					Location:    b.Location,
					Notes:       b.Notes,
				})
			}
		}
	}

	if data, ok, err := p.kv.Get(kvHiddenOcc); err != nil {
		return err
	} else if ok {
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			applog.Warn("hidden occurrences blob is corrupt; starting empty", "err", err)
		} else {
			for key, owner := range raw {
				if owner != "" && !enrolled[owner] {
					continue
				}
				p.hiddenOcc[key] = owner
			}
		}
	}

	if data, ok, err := p.kv.Get(kvHiddenAllDay); err != nil {
		return err
	} else if ok {
		var keys []string
		if err := json.Unmarshal(data, &keys); err != nil {
			applog.Warn("hidden all-day blob is corrupt; starting empty", "err", err)
		} else {
			for _, key := range keys {
				p.hiddenAllDay[key] = struct{}{}
			}
		}
	}

	if data, ok, err := p.kv.Get(kvGrades); err != nil {
		return err
	} else if ok {
		var raw map[string]string
		if err := json.Unmarshal(data, &raw); err != nil {
			applog.Warn("grades blob is corrupt; starting empty", "err", err)
		} else {
			for id, grade := range raw {
				if !enrolled[id] {
					applog.Debug("pruning grade for removed enrollment", "id", id)
					continue
				}
				p.grades[id] = grade
			}
		}
	}

	applog.Info("planner state loaded",
		"enrollments", len(p.enrollments),
		"personal_events", len(p.personal),
		"hidden_occurrences", len(p.hiddenOcc),
		"grades", len(p.grades),
	)
	return p.persistLocked()
}

func (p *Planner) persistLocked() error {
	data, err := json.Marshal(p.enrollments)
	if err != nil {
		return err
	}
	if err := p.kv.Set(kvEnrollments, data); err != nil {
		return err
	}

	blobs := make([]personalBlob, 0, len(p.personal))
	for _, ev := range p.personal {
		blobs = append(blobs, personalBlob{
			ID:          ev.ID,
			Title:       ev.Title,
			Date:        timeutil.FormatDate(ev.Date),
			StartMinute: ev.StartMinute,
			EndMinute:   ev.EndMinute,
			Location:    ev.Location,
			Notes:       ev.Notes,
		})
	}
	if data, err = json.Marshal(blobs); err != nil {
		return err
	}
	if err := p.kv.Set(kvPersonal, data); err != nil {
		return err
	}

	if data, err = json.Marshal(p.hiddenOcc); err != nil {
		return err
	}
	if err := p.kv.Set(kvHiddenOcc, data); err != nil {
		return err
	}

	keys := make([]string, 0, len(p.hiddenAllDay))
	for key := range p.hiddenAllDay {
		keys = append(keys, key)
	}
	if data, err = json.Marshal(keys); err != nil {
		return err
	}
	if err := p.kv.Set(kvHiddenAllDay, data); err != nil {
		return err
	}

	if data, err = json.Marshal(p.grades); err != nil {
		return err
	}
	return p.kv.Set(kvGrades, data)
}

// PersonalEvents returns a snapshot of the personal event list.
func (p *Planner) PersonalEvents() []model.PersonalEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.PersonalEvent, len(p.personal))
	copy(out, p.personal)
	return out
}

// CampusEvents returns the current institutional event snapshot.
func (p *Planner) CampusEvents() []model.CampusEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.CampusEvent, len(p.campus))
	copy(out, p.campus)
	return out
}
