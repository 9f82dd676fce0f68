package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"daycal/internal/config"
	appLog "daycal/internal/log"
	"daycal/internal/report"
	"daycal/internal/store"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Server serves day and month reports for the calendars held in a Store.
type Server struct {
	cfg   *config.Config
	store *store.Store
	mux   *http.ServeMux

	// now is replaceable in tests; it picks the default date and month.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st *store.Store) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen, "hashed", IsHashed(s.cfg.BasicAuth.Password))
		return s.basicAuthMiddleware(h)
	}
	return h
}

// StartServer serves on cfg.Listen until ctx is canceled, then shuts the
// server down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, st *store.Store) error {
	s := NewServer(cfg, st)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /month", s.handleMonthPage)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/month", http.StatusFound)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// calendarDTO is the /api/calendars view of one loaded calendar.
type calendarDTO struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timezone  string            `json:"timezone"`
	Events    int               `json:"events"`
	Recurring int               `json:"recurring"`
	Rejected  []report.Rejected `json:"rejected,omitempty"`
	LoadedAt  time.Time         `json:"loaded_at"`
	FromCache bool              `json:"from_cache"`
}

type calendarsResponse struct {
	Calendars   []calendarDTO `json:"calendars"`
	LastRefresh time.Time     `json:"last_refresh"`
	Errors      []string      `json:"errors,omitempty"`
}

func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	entries := s.store.Entries()
	resp := calendarsResponse{Calendars: make([]calendarDTO, 0, len(entries))}
	for _, e := range entries {
		resp.Calendars = append(resp.Calendars, calendarDTO{
			ID:        e.Calendar.ID,
			Name:      e.Calendar.Name,
			Timezone:  e.Calendar.Location.String(),
			Events:    len(e.Calendar.Events),
			Recurring: e.Calendar.RecurringCount(),
			Rejected:  report.Rejections(e.Rejected),
			LoadedAt:  e.LoadedAt,
			FromCache: e.FromCache,
		})
	}
	st := s.store.Status()
	resp.LastRefresh = st.LastRefresh
	resp.Errors = st.Errors
	writeJSON(w, http.StatusOK, resp)
}

// dayResponse is the JSON response shape for /api/day.
type dayResponse struct {
	CalendarID   string `json:"calendar_id"`
	CalendarName string `json:"calendar_name"`
	Timezone     string `json:"timezone"`
	report.DayReport
}

// handleDay returns the occurrences of a single date.
//
// GET /api/day?calendar=work&date=2013-09-09
//   - calendar: calendar ID (default: first configured calendar)
//   - date:     YYYY-MM-DD in the configured timezone (default: today)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.resolveEntry(w, r)
	if !ok {
		return
	}
	day, err := s.parseParam(r, "date", dateLayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	cal := entry.Calendar
	writeJSON(w, http.StatusOK, dayResponse{
		CalendarID:   cal.ID,
		CalendarName: cal.Name,
		Timezone:     cal.Location.String(),
		DayReport:    report.Day(cal, day),
	})
}

// handleMonth returns per-day reports for a month.
//
// GET /api/month?calendar=work&month=2013-09
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	m, ok := s.monthReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleMonthPage renders the month grid used by the browser and by the
// PNG capture.
func (s *Server) handleMonthPage(w http.ResponseWriter, r *http.Request) {
	m, ok := s.monthReport(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteHTML(&buf, m); err != nil {
		appLog.Error("month page render failed", err, "calendar", m.CalendarID, "month", m.Month)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Refresh(r.Context()); err != nil {
		appLog.Warn("manual refresh finished with errors", "err", err)
	}
	st := s.store.Status()
	writeJSON(w, http.StatusOK, calendarsResponse{
		Calendars:   []calendarDTO{},
		LastRefresh: st.LastRefresh,
		Errors:      st.Errors,
	})
}

func (s *Server) monthReport(w http.ResponseWriter, r *http.Request) (report.MonthReport, bool) {
	entry, ok := s.resolveEntry(w, r)
	if !ok {
		return report.MonthReport{}, false
	}
	month, err := s.parseParam(r, "month", monthLayout)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return report.MonthReport{}, false
	}
	m := report.Month(entry.Calendar, month)
	m.Rejected = report.Rejections(entry.Rejected)
	return m, true
}

// resolveEntry picks the calendar named by ?calendar=, or the first loaded
// one. It writes the error response itself.
func (s *Server) resolveEntry(w http.ResponseWriter, r *http.Request) (*store.Entry, bool) {
	id := r.URL.Query().Get("calendar")
	var (
		e  *store.Entry
		ok bool
	)
	if id == "" {
		e, ok = s.store.Default()
	} else {
		e, ok = s.store.Entry(id)
	}
	if !ok {
		if id == "" {
			writeError(w, http.StatusServiceUnavailable, "no calendar loaded")
		} else {
			writeError(w, http.StatusNotFound, "unknown calendar "+id)
		}
		return nil, false
	}
	return e, true
}

// parseParam reads a date-like query parameter in the store's zone,
// defaulting to now.
func (s *Server) parseParam(r *http.Request, name, layout string) (time.Time, error) {
	loc := s.store.Location()
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.now().In(loc), nil
	}
	return time.ParseInLocation(layout, v, loc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
