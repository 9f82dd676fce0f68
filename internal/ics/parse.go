package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	appLog "daycal/internal/log"
	"daycal/internal/model"
)

// Calendar is the parsed content of one ICS payload.
type Calendar struct {
	// Name is the X-WR-CALNAME of the feed, if any.
	Name    string
	Records []model.Record
	// Skipped counts VEVENTs that could not be read at all.
	Skipped int
}

// ParseICS parses an ICS payload into raw records, reading floating and
// all-day times in loc.
//
//   - DTSTART / DTEND honor a TZID parameter; values without one are
//     read in loc.
//   - An all-day event without DTEND lasts one day.
//   - RRULE and EXDATE are kept verbatim for internal/calendar.
//   - Instances overridden with RECURRENCE-ID are skipped.
//   - VEVENTs without a UID get a stable name-based UUID.
//   - UTF-16 payloads and UTF-8 BOMs (common in desktop exports) are
//     decoded to plain UTF-8 first.
func ParseICS(src Source, body []byte, loc *time.Location) (Calendar, error) {
	var out Calendar
	if len(body) == 0 {
		return out, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	body, err := decodeBody(body)
	if err != nil {
		appLog.Error("ics decode failed", err, "id", src.ID, "source", src)
		return out, err
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "source", src)
		return out, err
	}

	for _, p := range cal.CalendarProperties {
		if p.IANAToken == string(ical.PropertyXWRCalName) {
			out.Name = p.Value
			break
		}
	}

	out.Records = make([]model.Record, 0)
	for _, ve := range cal.Events() {
		if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
			appLog.Debug("ics skipping overridden instance", "id", src.ID, "uid", propValue(ve, ical.ComponentPropertyUniqueId))
			continue
		}
		rec, perr := parseVEvent(src, ve, loc)
		if perr != nil {
			out.Skipped++
			appLog.Error("ics vevent parse failed", perr, "id", src.ID, "uid", rec.UID, "summary", rec.Summary)
			continue
		}
		if rec.UID == "" {
			rec.UID = derivedUID(src, rec)
		}
		out.Records = append(out.Records, rec)
	}

	appLog.Info("ics parse completed", "id", src.ID, "source", src, "event_count", len(out.Records), "skipped", out.Skipped)
	return out, nil
}

func parseVEvent(src Source, ve *ical.VEvent, loc *time.Location) (model.Record, error) {
	rec := model.Record{
		SourceID: src.ID,
		UID:      propValue(ve, ical.ComponentPropertyUniqueId),
		Summary:  propValue(ve, ical.ComponentPropertySummary),
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return rec, errors.New("missing DTSTART")
	}
	start, allDay, err := propTime(&startProp.BaseProperty, loc)
	if err != nil {
		return rec, fmt.Errorf("DTSTART: %w", err)
	}
	rec.Start = start

	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		end, _, err := propTime(&endProp.BaseProperty, loc)
		if err != nil {
			return rec, fmt.Errorf("DTEND: %w", err)
		}
		rec.End = end
	} else if allDay {
		rec.End = start.AddDate(0, 0, 1)
	} else {
		// RFC 5545: a DATE-TIME start without DTEND has no duration. The
		// calendar package rejects such records and reports them.
		rec.End = start
	}

	rrules := ve.GetProperties(ical.ComponentPropertyRrule)
	if len(rrules) > 0 {
		rec.RRule = strings.TrimSpace(rrules[0].Value)
		if len(rrules) > 1 {
			appLog.Warn("ics multiple RRULEs, using the first", "id", src.ID, "uid", rec.UID)
		}
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		dates, err := exdates(&p.BaseProperty, loc)
		if err != nil {
			return rec, fmt.Errorf("EXDATE: %w", err)
		}
		rec.ExDates = append(rec.ExDates, dates...)
	}

	return rec, nil
}

// decodeBody strips a UTF-8 BOM and converts BOM-marked UTF-16 to UTF-8.
func decodeBody(body []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), body)
	if err != nil {
		return nil, fmt.Errorf("decode ICS body: %w", err)
	}
	return out, nil
}

// derivedUID names a UID-less record by its source, start and summary so
// the same feed yields the same ID on every refresh.
func derivedUID(src Source, rec model.Record) string {
	key := src.ID + "\x00" + rec.Start.UTC().Format(time.RFC3339) + "\x00" + rec.Summary
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func propValue(ve *ical.VEvent, p ical.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

// propLocation returns the zone named by the TZID parameter, or loc.
func propLocation(p *ical.BaseProperty, loc *time.Location) (*time.Location, error) {
	tzs, ok := p.ICalParameters["TZID"]
	if !ok || len(tzs) == 0 {
		return loc, nil
	}
	return time.LoadLocation(strings.Trim(tzs[0], `"`))
}

// isDateValue reports whether a property holds a DATE rather than a
// DATE-TIME.
func isDateValue(p *ical.BaseProperty, value string) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}

// propTime parses a DTSTART/DTEND style property. UTC values keep their
// instant, floating values are read in loc unless a TZID is given.
func propTime(p *ical.BaseProperty, loc *time.Location) (time.Time, bool, error) {
	value := strings.TrimSpace(p.Value)
	if value == "" {
		return time.Time{}, false, errors.New("empty time value")
	}
	allDay := isDateValue(p, value)
	if allDay {
		// All-day dates are the viewer's dates, whatever zone they claim.
		t, err := time.ParseInLocation(rrule.DateFormat, value, loc)
		return t, true, err
	}
	tzLoc, err := propLocation(p, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := rrule.StrToDtStart(value, tzLoc)
	return t, false, err
}

// exdates parses a possibly comma separated EXDATE property.
func exdates(p *ical.BaseProperty, loc *time.Location) ([]time.Time, error) {
	tzLoc, err := propLocation(p, loc)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for _, part := range strings.Split(p.Value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var t time.Time
		if !strings.Contains(part, "T") {
			t, err = time.ParseInLocation(rrule.DateFormat, part, loc)
		} else {
			t, err = rrule.StrToDtStart(part, tzLoc)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
