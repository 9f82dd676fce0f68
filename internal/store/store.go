package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"daycal/internal/calendar"
	"daycal/internal/config"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
)

// Entry is one loaded calendar together with the source records that
// could not be turned into events.
type Entry struct {
	Calendar *calendar.Calendar
	Rejected []*calendar.RecordError
	LoadedAt time.Time
	// FromCache is true when the feed body came from the HTTP cache.
	FromCache bool
}

// Store keeps the in-memory calendars. Calendars are replaced wholesale on
// Refresh and never mutated afterwards, so readers may keep using an
// Entry after a later refresh.
type Store struct {
	sources []ics.Source
	fetcher *ics.Fetcher
	loc     *time.Location

	mu          sync.RWMutex
	entries     map[string]*Entry
	lastRefresh time.Time
	lastErrs    []error

	refreshMu sync.Mutex
	cron      *cron.Cron
}

// New builds a Store for the calendars listed in cfg.
func New(cfg *config.Config, fetcher *ics.Fetcher) (*Store, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sources := make([]ics.Source, 0, len(cfg.Calendars))
	for _, cc := range cfg.Calendars {
		sources = append(sources, ics.Source{ID: cc.ID, Name: cc.Name, URL: cc.URL, Path: cc.Path})
	}
	return &Store{
		sources: sources,
		fetcher: fetcher,
		loc:     loc,
		entries: make(map[string]*Entry),
	}, nil
}

// Location is the zone every calendar is read in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Refresh fetches and parses every source, then swaps the loaded
// calendars in. Sources that fail keep their previous entry. The returned
// error joins all per-source failures.
func (s *Store) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	started := time.Now()
	results, errs := s.fetcher.FetchAll(ctx, s.sources)

	loaded := make(map[string]*Entry, len(results))
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body, s.loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("calendar %s: %w", res.Source.ID, err))
			continue
		}

		name := res.Source.Name
		if name == "" {
			name = parsed.Name
		}
		if name == "" {
			name = res.Source.ID
		}

		cal, rejected := calendar.NewCalendar(res.Source.ID, name, parsed.Records, s.loc)
		for _, re := range rejected {
			appLog.Warn("event rejected", "calendar", res.Source.ID, "index", re.Index, "uid", re.UID, "summary", re.Summary, "err", re.Err)
		}
		loaded[res.Source.ID] = &Entry{
			Calendar:  cal,
			Rejected:  rejected,
			LoadedAt:  time.Now(),
			FromCache: res.FromCache,
		}
		appLog.Info("calendar loaded", "calendar", res.Source.ID, "name", name,
			"events", len(cal.Events), "recurring", cal.RecurringCount(), "rejected", len(rejected))
	}

	s.mu.Lock()
	for id, e := range loaded {
		s.entries[id] = e
	}
	s.lastRefresh = time.Now()
	s.lastErrs = errs
	s.mu.Unlock()

	appLog.Info("refresh completed", "calendars", len(loaded), "errors", len(errs), "took", time.Since(started).Round(time.Millisecond))
	return errors.Join(errs...)
}

// Start runs Refresh on the given cron schedule until Stop is called or
// ctx is canceled.
func (s *Store) Start(ctx context.Context, spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(spec, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	c.Start()
	appLog.Info("refresh scheduler started", "spec", spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for a running refresh to finish.
func (s *Store) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
}

// Entry returns the loaded calendar with the given ID.
func (s *Store) Entry(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Entries returns the loaded calendars in configuration order.
func (s *Store) Entries() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, src := range s.sources {
		if e, ok := s.entries[src.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Default returns the first loaded calendar.
func (s *Store) Default() (*Entry, bool) {
	entries := s.Entries()
	if len(entries) == 0 {
		return nil, false
	}
	return entries[0], true
}

// Status describes the last refresh.
type Status struct {
	LastRefresh time.Time
	Errors      []string
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{LastRefresh: s.lastRefresh}
	for _, err := range s.lastErrs {
		st.Errors = append(st.Errors, err.Error())
	}
	return st
}
