package report

import (
	"math"
	"strconv"
	"time"

	"daycal/internal/calendar"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Line is one occurrence in a day report.
type Line struct {
	Start   string  `json:"start"`
	End     string  `json:"end"`
	Hours   float64 `json:"hours"`
	Summary string  `json:"summary"`
	UID     string  `json:"uid,omitempty"`
}

// DayReport lists the occurrences of one date and their total hours.
type DayReport struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	Hours   float64 `json:"hours"`
	Lines   []Line  `json:"events"`
}

// Rejected is a source record that could not be turned into an event.
type Rejected struct {
	Index   int    `json:"index"`
	UID     string `json:"uid,omitempty"`
	Summary string `json:"summary"`
	Reason  string `json:"reason"`
}

// MonthReport covers every day of one month.
type MonthReport struct {
	CalendarID   string      `json:"calendar_id"`
	CalendarName string      `json:"calendar_name"`
	Month        string      `json:"month"`
	Timezone     string      `json:"timezone"`
	Hours        float64     `json:"hours"`
	Days         []DayReport `json:"days"`
	Rejected     []Rejected  `json:"rejected,omitempty"`

	first time.Time
}

// Day builds the report for the date of day in the calendar's zone.
func Day(cal *calendar.Calendar, day time.Time) DayReport {
	return fromSummary(cal.Day(day))
}

// Month builds the report for the month containing month.
func Month(cal *calendar.Calendar, month time.Time) MonthReport {
	summaries := cal.DaysInMonth(month)
	r := MonthReport{
		CalendarID:   cal.ID,
		CalendarName: cal.Name,
		Timezone:     cal.Location.String(),
		Days:         make([]DayReport, 0, len(summaries)),
	}
	var total float64
	for _, s := range summaries {
		r.Days = append(r.Days, fromSummary(s))
		total += s.Hours
	}
	if len(summaries) > 0 {
		r.first = summaries[0].Date
		r.Month = r.first.Format(monthLayout)
	}
	r.Hours = roundHours(total)
	return r
}

// Rejections converts record errors into report rows.
func Rejections(errs []*calendar.RecordError) []Rejected {
	if len(errs) == 0 {
		return nil
	}
	out := make([]Rejected, 0, len(errs))
	for _, e := range errs {
		out = append(out, Rejected{Index: e.Index, UID: e.UID, Summary: e.Summary, Reason: e.Err.Error()})
	}
	return out
}

func fromSummary(s calendar.DaySummary) DayReport {
	d := DayReport{
		Date:    s.Date.Format(dateLayout),
		Weekday: s.Date.Weekday().String(),
		Hours:   roundHours(s.Hours),
		Lines:   make([]Line, 0, len(s.Occurrences)),
	}
	for _, o := range s.Occurrences {
		d.Lines = append(d.Lines, Line{
			Start:   o.StartTimeOfDay(),
			End:     o.EndTimeOfDay(),
			Hours:   roundHours(o.DurationHours()),
			Summary: o.Summary(),
			UID:     o.Event.UID(),
		})
	}
	return d
}

func roundHours(h float64) float64 {
	return math.Round(h*100) / 100
}

// FormatHours renders hours without trailing zeros: 1.5, 2, 0.25.
func FormatHours(h float64) string {
	return strconv.FormatFloat(roundHours(h), 'f', -1, 64)
}
