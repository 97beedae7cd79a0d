// Package cycle derives the day-by-day cycle schedule from a configuration
// and its registries.
package cycle

import (
	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

// Generate walks cfg.StartDate..cfg.EndDate inclusive and returns one
// GeneratedDay per weekday. It is a pure function of its inputs.
//
// Counter rules:
//   - a School weekday without override takes the counter, then advances it;
//   - an override is used verbatim, and on a School weekday it resynchronizes
//     the counter to follow it;
//   - an exception weekday advances the counter only in skip mode;
//   - weekends never touch the counter and are never emitted.
//
// The pass is bounded by the exact day count of the range; end before start
// yields an empty result.
func Generate(cfg model.CycleConfiguration, exceptions registry.Exceptions, overrides registry.Overrides, classes registry.ClassTable) []model.GeneratedDay {
	total := cfg.StartDate.DaysUntil(cfg.EndDate) + 1
	if total <= 0 {
		return []model.GeneratedDay{}
	}

	length := cfg.CycleLength
	if length < 1 {
		length = 1
	}
	periods := cfg.PeriodsPerDay
	if periods < 0 {
		periods = 0
	}
	next := func(n int) int { return n%length + 1 }

	days := make([]model.GeneratedDay, 0, total*5/7+2)
	counter := cfg.StartCycleDay
	date := cfg.StartDate

	for i := 0; i < total; i, date = i+1, date.AddDays(1) {
		weekend := date.IsWeekend()
		dayType := exceptions.Get(date)
		schoolDay := !weekend && dayType == model.School

		var assigned *int
		override, hasOverride := overrides.Get(date)
		switch {
		case hasOverride:
			assigned = intPtr(override)
			if schoolDay {
				counter = next(override)
			}
		case schoolDay:
			assigned = intPtr(counter)
			counter = next(counter)
		case cfg.Mode == model.ModeSkip && !weekend:
			counter = next(counter)
		}

		if weekend {
			continue
		}

		day := model.GeneratedDay{
			Date:     date,
			Type:     dayType,
			CycleDay: assigned,
			Classes:  make([]model.ClassSlot, periods),
		}
		if hasOverride {
			day.OverrideCycleDay = intPtr(override)
		}
		if assigned != nil {
			for p := 0; p < periods; p++ {
				day.Classes[p] = classes.Get(*assigned, p)
			}
		}
		days = append(days, day)
	}
	return days
}

func intPtr(v int) *int { return &v }
