// Package notify materializes the next day's events on a cron schedule
// and hands them to an external notifier. The engine never delivers
// notifications itself; this is just the registration hook.
package notify

import (
	"time"

	"github.com/robfig/cron/v3"

	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/timeutil"
)

// Agenda is the slice of the planner this package needs.
type Agenda interface {
	EventsOn(date time.Time) []model.Occurrence
}

// Notifier receives materialized occurrences to schedule reminders for.
type Notifier interface {
	Remind(occ model.Occurrence) error
}

// LogNotifier is the default sink: it just logs what would be scheduled.
type LogNotifier struct{}

func (LogNotifier) Remind(occ model.Occurrence) error {
	applog.Info("reminder",
		"title", occ.Title,
		"start", occ.Start.Format(time.RFC3339),
		"all_day", occ.AllDay,
	)
	return nil
}

// Scheduler drives reminder materialization off a cron expression.
type Scheduler struct {
	cron     *cron.Cron
	agenda   Agenda
	notifier Notifier
	loc      *time.Location
}

func NewScheduler(agenda Agenda, notifier Notifier, loc *time.Location) *Scheduler {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		agenda:   agenda,
		notifier: notifier,
		loc:      loc,
	}
}

// Start registers the reminder job and starts the cron loop.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return err
	}
	s.cron.Start()
	applog.Info("reminder scheduler started", "cron", spec)
	return nil
}

// Stop halts the cron loop; running jobs finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// runOnce materializes tomorrow's events and pushes each timed one to
// the notifier. All-day events carry no reminder time.
func (s *Scheduler) runOnce() {
	tomorrow := timeutil.StartOfDay(time.Now().In(s.loc), s.loc).AddDate(0, 0, 1)
	occs := s.agenda.EventsOn(tomorrow)

	count := 0
	for _, occ := range occs {
		if occ.AllDay {
			continue
		}
		if err := s.notifier.Remind(occ); err != nil {
			applog.Error("reminder registration failed", err, "title", occ.Title)
			continue
		}
		count++
	}
	applog.Info("reminders materialized", "date", timeutil.FormatDate(tomorrow), "count", count)
}
