package registry

import (
	"fmt"

	"cyclecal/internal/model"
)

// firstPeriodStart is where an empty schedule starts when grown.
const firstPeriodStart = 8 * 60

// BellSchedule is the ordered list of period windows. Its length follows the
// configured periods per day.
type BellSchedule struct {
	periods []model.BellPeriod
}

func NewBellSchedule(periods ...model.BellPeriod) BellSchedule {
	return BellSchedule{periods: append([]model.BellPeriod(nil), periods...)}
}

// DefaultBellSchedule lays out n one-hour periods starting at 08:00.
func DefaultBellSchedule(n int) BellSchedule {
	return BellSchedule{}.Resize(n)
}

func (b BellSchedule) Len() int { return len(b.periods) }

func (b BellSchedule) At(i int) (model.BellPeriod, bool) {
	if i < 0 || i >= len(b.periods) {
		return model.BellPeriod{}, false
	}
	return b.periods[i], true
}

// Periods returns a copy of the schedule.
func (b BellSchedule) Periods() []model.BellPeriod {
	return append([]model.BellPeriod(nil), b.periods...)
}

// Resize returns a schedule of exactly n periods. Growing appends one-hour
// periods contiguous with the last period's end; shrinking truncates.
func (b BellSchedule) Resize(n int) BellSchedule {
	if n < 0 {
		n = 0
	}
	if n <= len(b.periods) {
		return BellSchedule{periods: append([]model.BellPeriod(nil), b.periods[:n]...)}
	}

	next := make([]model.BellPeriod, len(b.periods), n)
	copy(next, b.periods)

	cursor := firstPeriodStart
	if len(b.periods) > 0 {
		if h, m, err := model.ParseClock(b.periods[len(b.periods)-1].End); err == nil {
			cursor = h*60 + m
		}
	}
	for len(next) < n {
		next = append(next, model.BellPeriod{
			Start: model.FormatClock(cursor),
			End:   model.FormatClock(cursor + 60),
		})
		cursor += 60
	}
	return BellSchedule{periods: next}
}

// Set replaces period i after checking both times parse.
func (b BellSchedule) Set(i int, p model.BellPeriod) (BellSchedule, error) {
	if i < 0 || i >= len(b.periods) {
		return b, fmt.Errorf("registry: bell period %d of %d: %w", i, len(b.periods), model.ErrOutOfRange)
	}
	if _, _, err := model.ParseClock(p.Start); err != nil {
		return b, err
	}
	if _, _, err := model.ParseClock(p.End); err != nil {
		return b, err
	}
	next := b.Periods()
	next[i] = p
	return BellSchedule{periods: next}, nil
}
