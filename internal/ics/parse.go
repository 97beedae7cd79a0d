package ics

import (
	"bytes"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// ParsedEvent is the subset of a VEVENT that matters for marking calendar
// dates: what it is called, which naive dates it starts and ends on, and
// how it recurs.
type ParsedEvent struct {
	Source Source

	UID     string
	Summary string

	// Start is the first date; End is exclusive. For timed events both are
	// the wall-clock dates of DTSTART/DTEND as written in the feed.
	Start  model.Date
	End    model.Date
	AllDay bool

	RawRRule string
	ExDates  []model.Date
	// Recurrence is set when this VEVENT replaces one instance of a
	// recurring event (RECURRENCE-ID).
	Recurrence *model.Date
}

// ParseICS parses an ICS payload into events. A VEVENT that cannot be read
// is logged and skipped; only a payload that is not iCalendar at all fails.
func ParseICS(src Source, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "id", src.ID, "url", redactURL(src.URL))
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(src, ve)
		if perr != nil {
			appLog.Error("ics vevent skipped", perr, "id", src.ID)
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics parse completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events))
	return events, nil
}

func parseVEvent(src Source, ve *ical.VEvent) (ParsedEvent, error) {
	out := ParsedEvent{Source: src}

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parseDateValue(dtStart.Value)
	if err != nil {
		return out, err
	}
	if vs := dtStart.ICalParameters["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}
	out.Start = start
	out.AllDay = allDay

	// Without DTEND an all-day event covers one day (RFC 5545 3.6.1).
	out.End = start.AddDays(1)
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		end, endAllDay, err := parseDateValue(dtEnd.Value)
		if err != nil {
			return out, err
		}
		if endAllDay && end.After(start) {
			out.End = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if d, _, err := parseDateValue(part); err == nil {
				out.ExDates = append(out.ExDates, d)
			}
		}
	}

	if rid := ve.GetProperty("RECURRENCE-ID"); rid != nil {
		if d, _, err := parseDateValue(rid.Value); err == nil {
			out.Recurrence = &d
		}
	}

	return out, nil
}

// parseDateValue reads the date part of an ICS DATE or DATE-TIME value.
// The timezone is deliberately ignored: cycle calendars are naive.
func parseDateValue(v string) (model.Date, bool, error) {
	v = strings.TrimSpace(v)
	allDay := !strings.Contains(v, "T")
	if len(v) < 8 {
		return model.Date{}, false, errors.New("ics: short date value " + v)
	}
	compact := v[:8]
	d, err := model.ParseDate(compact[:4] + "-" + compact[4:6] + "-" + compact[6:8])
	if err != nil {
		return model.Date{}, false, err
	}
	return d, allDay, nil
}
