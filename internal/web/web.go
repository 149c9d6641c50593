// Package web exposes the planner over HTTP for the host UI: agenda
// queries, the enrollment workflow, overrides, and the ICS feed.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"termcal/internal/catalog"
	"termcal/internal/config"
	"termcal/internal/export"
	applog "termcal/internal/log"
	"termcal/internal/model"
	"termcal/internal/planner"
	"termcal/internal/termbounds"
	"termcal/internal/timeutil"
)

// Server wires the HTTP surface to the planner.
type Server struct {
	cfg     *config.Config
	plan    *planner.Planner
	catalog *catalog.Catalog
	bounds  *termbounds.Registry
	loc     *time.Location
	mux     *http.ServeMux

	// Agenda responses are cached briefly per date so a UI polling the
	// same day does not recompute the aggregation each time. A soft UI
	// timeout never cancels loads; late term-bounds arrivals invalidate
	// this cache instead (see InvalidateAgenda).
	agendaMu    sync.Mutex
	agendaCache map[string]agendaCacheEntry
}

const agendaCacheTTL = 15 * time.Second

type agendaCacheEntry struct {
	resp      agendaResponse
	updatedAt time.Time
}

func NewServer(cfg *config.Config, plan *planner.Planner, cat *catalog.Catalog, bounds *termbounds.Registry) *Server {
	s := &Server{
		cfg:         cfg,
		plan:        plan,
		catalog:     cat,
		bounds:      bounds,
		loc:         plan.Location(),
		mux:         http.NewServeMux(),
		agendaCache: make(map[string]agendaCacheEntry),
	}
	s.registerRoutes()
	if bounds != nil {
		bounds.Subscribe(func(termID string) {
			applog.Debug("term bounds arrived; invalidating agenda cache", "term_id", termID)
			s.InvalidateAgenda()
		})
	}
	return s
}

// InvalidateAgenda drops every cached agenda response. Called when term
// bounds or campus events change underneath cached dates.
func (s *Server) InvalidateAgenda() {
	s.agendaMu.Lock()
	s.agendaCache = make(map[string]agendaCacheEntry)
	s.agendaMu.Unlock()
}

// Handler returns the HTTP handler, with basic auth wrapped around
// everything except /health when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Serve blocks on ListenAndServe until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	applog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) basicAuthEnabled() bool {
	ba := s.cfg.BasicAuth
	return ba != nil && ba.Username != "" && ba.Password != ""
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="termcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/agenda", s.handleAgenda)
	s.mux.HandleFunc("/api/enrollments", s.handleEnrollments)
	s.mux.HandleFunc("/api/overrides", s.handleOverrides)
	s.mux.HandleFunc("/api/personal", s.handlePersonal)
	s.mux.HandleFunc("/api/hide", s.handleHide)
	s.mux.HandleFunc("/api/grades", s.handleGrades)
	s.mux.HandleFunc("/calendar.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// occurrenceDTO is the JSON view of one occurrence.
type occurrenceDTO struct {
	Title        string    `json:"title"`
	Location     string    `json:"location,omitempty"`
	AllDay       bool      `json:"all_day"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Category     string    `json:"category,omitempty"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	MeetingKey   string    `json:"meeting_key,omitempty"`
	SeriesID     string    `json:"series_id,omitempty"`
	Badge        string    `json:"badge,omitempty"`
	IdentityKey  string    `json:"identity_key"`
}

type agendaResponse struct {
	Date        string          `json:"date"`
	Timezone    string          `json:"timezone"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

// handleAgenda returns everything scheduled on one date.
//
// GET /api/agenda?date=2026-01-14 (date defaults to today)
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	day := timeutil.StartOfDay(time.Now().In(s.loc), s.loc)
	if ds := r.URL.Query().Get("date"); ds != "" {
		parsed, err := timeutil.ParseDate(ds, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad date; want YYYY-MM-DD")
			return
		}
		day = parsed
	}
	dateKey := timeutil.FormatDate(day)

	s.agendaMu.Lock()
	if entry, ok := s.agendaCache[dateKey]; ok && time.Since(entry.updatedAt) < agendaCacheTTL {
		s.agendaMu.Unlock()
		writeJSON(w, http.StatusOK, entry.resp)
		return
	}
	s.agendaMu.Unlock()

	// Kick bounds loads for every term on the schedule; a miss today
	// fills in for the next query.
	for _, enr := range s.plan.Enrollments() {
		s.bounds.EnsureLoaded(r.Context(), enr.TermID)
	}

	occs := s.plan.EventsOn(day)
	dtos := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		dtos = append(dtos, occurrenceDTO{
			Title:        occ.Title,
			Location:     occ.Location,
			AllDay:       occ.AllDay,
			Start:        occ.Start,
			End:          occ.End,
			Category:     string(occ.Category),
			EnrollmentID: occ.EnrollmentID,
			MeetingKey:   occ.MeetingKey,
			SeriesID:     occ.SeriesID,
			Badge:        occ.Badge,
			IdentityKey:  occ.IdentityKey(),
		})
	}
	resp := agendaResponse{Date: dateKey, Timezone: s.loc.String(), Occurrences: dtos}

	s.agendaMu.Lock()
	s.agendaCache[dateKey] = agendaCacheEntry{resp: resp, updatedAt: time.Now()}
	s.agendaMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

type enrollRequest struct {
	Course    string   `json:"course"`  // "CSCI-2300"
	Section   string   `json:"section"` // "01"
	TermID    string   `json:"term_id,omitempty"`
	Completed []string `json:"completed,omitempty"`
}

// handleEnrollments lists, adds, and removes enrollments.
//
//	GET    /api/enrollments
//	POST   /api/enrollments      {"course":"CSCI-2300","section":"01"}
//	DELETE /api/enrollments?id=CSCI-2300-01
func (s *Server) handleEnrollments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.plan.Enrollments())

	case http.MethodPost:
		var req enrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body")
			return
		}
		if s.catalog == nil {
			writeError(w, http.StatusServiceUnavailable, "no course catalog loaded")
			return
		}
		course, sec, ok := s.catalog.Find(req.Course, req.Section)
		if !ok {
			writeError(w, http.StatusNotFound, "course section not found")
			return
		}
		termID := req.TermID
		if termID == "" {
			termID = s.catalog.Term
		}
		enr := catalog.BuildEnrollment(course, sec, termID)

		err := s.plan.AddEnrollment(r.Context(), enr, planner.AddOptions{
			PrerequisitesText: sec.PrerequisitesText,
			Completed:         req.Completed,
		})
		switch {
		case errors.Is(err, planner.ErrConflict):
			writeError(w, http.StatusConflict, "schedule conflict")
		case errors.Is(err, planner.ErrPrerequisites):
			writeError(w, http.StatusUnprocessableEntity, "prerequisites not met")
		case err != nil:
			applog.Error("enrollment failed", err, "id", enr.ID)
			writeError(w, http.StatusInternalServerError, "failed to enroll")
		default:
			s.InvalidateAgenda()
			writeJSON(w, http.StatusOK, enr)
		}

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}
		if err := s.plan.RemoveEnrollment(id); err != nil {
			applog.Error("enrollment removal failed", err, "id", id)
			writeError(w, http.StatusInternalServerError, "failed to remove")
			return
		}
		s.InvalidateAgenda()
		writeJSON(w, http.StatusOK, map[string]string{"removed": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type overrideRequest struct {
	MeetingKey     string   `json:"meeting_key"`
	Classification string   `json:"classification,omitempty"`
	ExamDates      []string `json:"exam_dates,omitempty"`
}

// handleOverrides sets a meeting's classification or its exam dates.
// Posting exam_dates implies exam classification; an empty list reverts
// the meeting to normal.
func (s *Server) handleOverrides(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	key, err := model.ParseMeetingKey(req.MeetingKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad meeting key")
		return
	}

	ov := s.plan.Overrides()
	if req.ExamDates != nil {
		dates := make([]time.Time, 0, len(req.ExamDates))
		for _, ds := range req.ExamDates {
			d, err := timeutil.ParseDate(ds, s.loc)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad exam date; want YYYY-MM-DD")
				return
			}
			dates = append(dates, d)
		}
		if err := ov.SetExamDates(key, dates); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store exam dates")
			return
		}
	} else {
		if err := ov.SetClassification(key, model.ParseClassification(req.Classification)); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store classification")
			return
		}
	}
	s.InvalidateAgenda()
	writeJSON(w, http.StatusOK, map[string]string{
		"meeting_key":    key.String(),
		"classification": string(ov.Get(key)),
	})
}

type personalRequest struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Date     string `json:"date"`
	Start    string `json:"start,omitempty"` // "HH:MM"
	End      string `json:"end,omitempty"`
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// handlePersonal creates and deletes one-off personal events.
func (s *Server) handlePersonal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.plan.PersonalEvents())

	case http.MethodPost:
		var req personalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request body")
			return
		}
		if strings.TrimSpace(req.Title) == "" {
			writeError(w, http.StatusBadRequest, "missing title")
			return
		}
		date, err := timeutil.ParseDate(req.Date, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad date; want YYYY-MM-DD")
			return
		}
		ev := model.PersonalEvent{
			ID:       req.ID,
			Title:    strings.TrimSpace(req.Title),
			Date:     date,
			Location: req.Location,
			Notes:    req.Notes,
		}
		if req.Start != "" {
			if ev.StartMinute, err = timeutil.ParseTimeOfDay(req.Start); err != nil {
				writeError(w, http.StatusBadRequest, "bad start time; want HH:MM")
				return
			}
		}
		if req.End != "" {
			if ev.EndMinute, err = timeutil.ParseTimeOfDay(req.End); err != nil {
				writeError(w, http.StatusBadRequest, "bad end time; want HH:MM")
				return
			}
		}
		stored, err := s.plan.AddPersonalEvent(ev)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store event")
			return
		}
		s.InvalidateAgenda()
		writeJSON(w, http.StatusOK, stored)

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeError(w, http.StatusBadRequest, "missing id")
			return
		}
		if err := s.plan.RemovePersonalEvent(id); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to remove")
			return
		}
		s.InvalidateAgenda()
		writeJSON(w, http.StatusOK, map[string]string{"removed": id})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type hideRequest struct {
	IdentityKey  string `json:"identity_key"`
	AllDay       bool   `json:"all_day,omitempty"`
	EnrollmentID string `json:"enrollment_id,omitempty"`
	Unhide       bool   `json:"unhide,omitempty"`
}

// handleHide dismisses (or restores) a single occurrence by identity key.
func (s *Server) handleHide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req hideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IdentityKey == "" {
		writeError(w, http.StatusBadRequest, "missing identity_key")
		return
	}

	var err error
	switch {
	case req.AllDay && req.Unhide:
		err = s.plan.UnhideAllDay(req.IdentityKey)
	case req.AllDay:
		err = s.plan.HideAllDay(req.IdentityKey)
	case req.Unhide:
		err = s.plan.UnhideOccurrence(req.IdentityKey)
	default:
		err = s.plan.HideOccurrenceKey(req.IdentityKey, req.EnrollmentID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update suppression")
		return
	}
	s.InvalidateAgenda()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type gradeRequest struct {
	EnrollmentID string `json:"enrollment_id"`
	Grade        string `json:"grade"`
}

// handleGrades records a grade for an enrollment.
func (s *Server) handleGrades(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.plan.Grades())
	case http.MethodPost:
		var req gradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EnrollmentID == "" {
			writeError(w, http.StatusBadRequest, "missing enrollment_id")
			return
		}
		if err := s.plan.SetGrade(req.EnrollmentID, req.Grade); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to store grade")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleICS serves the planned schedule as an ICS calendar.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ov := s.plan.Overrides()
	body := export.Serialize(export.Inputs{
		Enrollments:    s.plan.Enrollments(),
		Personal:       s.plan.PersonalEvents(),
		Bounds:         s.bounds.BoundsFor,
		Classification: ov.Get,
		ExamDates:      ov.ExamDates,
		Loc:            s.loc,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
