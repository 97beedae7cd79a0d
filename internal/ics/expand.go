package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
)

// MarkedDate is one calendar date covered by a feed event.
type MarkedDate struct {
	Date    model.Date
	UID     string
	Summary string
}

// ExpandConfig bounds expansion to the inclusive date range [From, To].
type ExpandConfig struct {
	From model.Date
	To   model.Date
	// IncludeTimed also marks the start date of timed events. Off by
	// default: a two-hour assembly does not make a day a holiday.
	IncludeTimed bool
}

// ExpandDates turns events into the set of dates they cover within the
// range, resolving RRULE, EXDATE and RECURRENCE-ID. The result is ordered by
// date and holds each date once (the first event wins).
func ExpandDates(events []ParsedEvent, cfg ExpandConfig) ([]MarkedDate, error) {
	if cfg.To.Before(cfg.From) {
		return nil, errors.New("expand: range end is before range start")
	}

	// Instances replaced via RECURRENCE-ID are dropped from their series;
	// the replacement VEVENT is expanded on its own.
	replaced := make(map[string][]model.Date)
	for _, ev := range events {
		if ev.Recurrence != nil {
			replaced[ev.UID] = append(replaced[ev.UID], *ev.Recurrence)
		}
	}

	seen := make(map[model.Date]MarkedDate)
	for _, ev := range events {
		if !ev.AllDay && !cfg.IncludeTimed {
			continue
		}
		span := ev.Start.DaysUntil(ev.End)
		if !ev.AllDay || span < 1 {
			span = 1
		}

		starts := []model.Date{ev.Start}
		if ev.RawRRule != "" && ev.Recurrence == nil {
			var err error
			starts, err = expandStarts(ev, replaced[ev.UID], cfg)
			if err != nil {
				appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
				continue
			}
		}

		for _, s := range starts {
			for i := 0; i < span; i++ {
				d := s.AddDays(i)
				if d.Before(cfg.From) || d.After(cfg.To) {
					continue
				}
				if _, ok := seen[d]; !ok {
					seen[d] = MarkedDate{Date: d, UID: ev.UID, Summary: ev.Summary}
				}
			}
		}
	}

	out := make([]MarkedDate, 0, len(seen))
	for d := cfg.From; !d.After(cfg.To); d = d.AddDays(1) {
		if m, ok := seen[d]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// expandStarts lists occurrence start dates of a recurring event. The
// window is widened backwards by the event's span so multi-day instances
// that begin before From still mark their tail.
func expandStarts(ev ParsedEvent, exclude []model.Date, cfg ExpandConfig) ([]model.Date, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, err
	}
	r.DTStart(ev.Start.Time())

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.Time())
	}
	for _, ex := range exclude {
		set.ExDate(ex.Time())
	}

	span := ev.Start.DaysUntil(ev.End)
	from := cfg.From.AddDays(-span).Time()
	to := cfg.To.Time().Add(24*time.Hour - time.Second)

	times := set.Between(from, to, true)
	out := make([]model.Date, 0, len(times))
	for _, t := range times {
		out = append(out, model.DateOf(t))
	}
	return out, nil
}
