package report

import (
	"bufio"
	"embed"
	"encoding/csv"
	"fmt"
	"html/template"
	"io"
	"time"
)

// WriteText prints days in the plain report format:
//
//	2013-09-09: 1.5 hours
//	  09:00 - 09:30: Standup
//	  14:00 - 15:00: Review
func WriteText(w io.Writer, days ...DayReport) error {
	bw := bufio.NewWriter(w)
	for _, d := range days {
		fmt.Fprintf(bw, "%s: %s hours\n", d.Date, FormatHours(d.Hours))
		for _, l := range d.Lines {
			fmt.Fprintf(bw, "  %s - %s: %s\n", l.Start, l.End, l.Summary)
		}
	}
	return bw.Flush()
}

var csvHeader = []string{"date", "start", "end", "hours", "summary"}

// WriteCSV writes one row per occurrence and a TOTAL row closing each day.
func WriteCSV(w io.Writer, days ...DayReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, d := range days {
		for _, l := range d.Lines {
			if err := cw.Write([]string{d.Date, l.Start, l.End, FormatHours(l.Hours), l.Summary}); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{d.Date, "", "", FormatHours(d.Hours), "TOTAL"}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

//go:embed templates/month.html.tmpl
var templateFS embed.FS

var monthTemplate = template.Must(
	template.New("month.html.tmpl").
		Funcs(template.FuncMap{"hours": FormatHours}).
		ParseFS(templateFS, "templates/month.html.tmpl"),
)

type monthPage struct {
	MonthReport
	Title    string
	Weekdays []string
	Weeks    [][]*DayReport
}

// WriteHTML renders the month as a standalone page. The root element
// carries data-ready="true" once rendered, which the PNG capture waits for.
func WriteHTML(w io.Writer, r MonthReport) error {
	page := monthPage{
		MonthReport: r,
		Title:       r.Month,
		Weekdays:    make([]string, 0, 7),
		Weeks:       weeks(r),
	}
	if !r.first.IsZero() {
		page.Title = r.first.Format("January 2006")
	}
	if r.CalendarName != "" {
		page.Title = r.CalendarName + " · " + page.Title
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		page.Weekdays = append(page.Weekdays, wd.String()[:3])
	}
	return monthTemplate.Execute(w, page)
}

// weeks lays the days out on a Sunday-first grid; cells outside the month
// are nil.
func weeks(r MonthReport) [][]*DayReport {
	if len(r.Days) == 0 {
		return nil
	}
	lead := int(r.first.Weekday())
	cells := make([]*DayReport, lead, lead+len(r.Days)+6)
	for i := range r.Days {
		cells = append(cells, &r.Days[i])
	}
	for len(cells)%7 != 0 {
		cells = append(cells, nil)
	}
	out := make([][]*DayReport, 0, len(cells)/7)
	for i := 0; i < len(cells); i += 7 {
		out = append(out, cells[i:i+7])
	}
	return out
}
