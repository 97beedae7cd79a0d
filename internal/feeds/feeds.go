// Package feeds imports subscribed ICS calendars (district holidays, exam
// windows) into a project's exception registry.
package feeds

import (
	"context"
	"errors"
	"fmt"

	"cyclecal/internal/config"
	"cyclecal/internal/ics"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/schedule"
)

// Mark is one date a feed wants set to Type.
type Mark struct {
	Date    model.Date
	Type    model.DayType
	FeedID  string
	Summary string
}

// Collector fetches and expands feeds. It holds no project state, so it can
// run without holding whatever lock guards the planner.
type Collector struct {
	fetcher *ics.Fetcher
}

func NewCollector(fetcher *ics.Fetcher) *Collector {
	return &Collector{fetcher: fetcher}
}

// Collect returns the weekday marks of every feed within [from, to]. Feeds
// that fail are reported in the error (joined) while the others still
// contribute marks.
func (c *Collector) Collect(ctx context.Context, feeds []config.FeedConfig, from, to model.Date) ([]Mark, error) {
	sources := make([]ics.Source, 0, len(feeds))
	byID := make(map[string]config.FeedConfig, len(feeds))
	for _, f := range feeds {
		sources = append(sources, ics.Source{ID: f.ID, URL: f.URL})
		byID[f.ID] = f
	}
	results, errs := c.fetcher.FetchAll(ctx, sources)

	var marks []Mark
	for _, res := range results {
		f := byID[res.Source.ID]
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("feeds: parse %s: %w", f.ID, err))
			continue
		}
		dates, err := ics.ExpandDates(events, ics.ExpandConfig{From: from, To: to, IncludeTimed: f.IncludeTimed})
		if err != nil {
			errs = append(errs, fmt.Errorf("feeds: expand %s: %w", f.ID, err))
			continue
		}
		for _, d := range dates {
			// Weekends never reach the generated schedule.
			if d.Date.IsWeekend() {
				continue
			}
			marks = append(marks, Mark{Date: d.Date, Type: f.Type, FeedID: f.ID, Summary: d.Summary})
		}
		appLog.Info("feed collected", "id", f.ID, "dates", len(dates), "from_cache", res.FromCache)
	}
	return marks, errors.Join(errs...)
}

// Apply writes marks into the planner with a direct overwrite and returns
// how many dates changed.
func Apply(p *schedule.Planner, marks []Mark) (int, error) {
	changed := 0
	for _, m := range marks {
		if p.Exceptions().Get(m.Date) == m.Type {
			continue
		}
		if err := p.SetException(m.Date, m.Type); err != nil {
			return changed, fmt.Errorf("feeds: apply %s from %s: %w", m.Date, m.FeedID, err)
		}
		changed++
	}
	return changed, nil
}
