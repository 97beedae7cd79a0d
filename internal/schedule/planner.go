// Package schedule owns a cycle-calendar project in memory: its
// configuration and registries, the operations that edit them, and the
// memoized generation and export built on top.
package schedule

import (
	"fmt"
	"io"
	"time"

	"cyclecal/internal/config"
	"cyclecal/internal/cycle"
	"cyclecal/internal/ics"
	appLog "cyclecal/internal/log"
	"cyclecal/internal/model"
	"cyclecal/internal/registry"
)

// Planner is the single logical owner of a project. Each mutation replaces
// one registry with a new immutable snapshot and bumps Version; Generated
// recomputes lazily. A Planner is not safe for concurrent use.
type Planner struct {
	cal        model.CycleConfiguration
	bells      registry.BellSchedule
	exceptions registry.Exceptions
	overrides  registry.Overrides
	classes    registry.ClassTable
	rooms      registry.Rooms

	version uint64
	memo    cycle.Memo

	// Now stamps exports; tests pin it.
	Now func() time.Time
}

// New builds a planner for cal with a default bell schedule and empty
// registries.
func New(cal model.CycleConfiguration) (*Planner, error) {
	if err := config.ValidateCalendar(cal); err != nil {
		return nil, err
	}
	return &Planner{
		cal:   cal,
		bells: registry.DefaultBellSchedule(cal.PeriodsPerDay),
		Now:   time.Now,
	}, nil
}

// FromConfig loads a validated project.
func FromConfig(cfg *config.Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Planner{
		cal:        cfg.Calendar,
		bells:      registry.NewBellSchedule(cfg.BellSchedule...).Resize(cfg.Calendar.PeriodsPerDay),
		exceptions: registry.NewExceptions(cfg.Exceptions...),
		overrides:  registry.NewOverrides(cfg.Overrides...),
		classes:    registry.NewClassTable(cfg.Classes...),
		rooms:      registry.NewRooms(cfg.Rooms...),
		Now:        time.Now,
	}, nil
}

// WriteTo copies the planner state into the project fields of cfg,
// leaving server settings alone.
func (p *Planner) WriteTo(cfg *config.Config) {
	cfg.Calendar = p.cal
	cfg.BellSchedule = p.bells.Periods()
	cfg.Rooms = p.rooms.List()
	cfg.Exceptions = p.exceptions.Entries()
	cfg.Overrides = p.overrides.Entries()
	cfg.Classes = p.classes.Entries()
}

// Version increases with every successful mutation.
func (p *Planner) Version() uint64 { return p.version }

func (p *Planner) Config() model.CycleConfiguration { return p.cal }

func (p *Planner) BellSchedule() registry.BellSchedule { return p.bells }

func (p *Planner) Exceptions() registry.Exceptions { return p.exceptions }

func (p *Planner) Overrides() registry.Overrides { return p.overrides }

func (p *Planner) Classes() registry.ClassTable { return p.classes }

func (p *Planner) Rooms() []string { return p.rooms.List() }

// State is an opaque copy of everything a mutation can change.
type State struct {
	cal        model.CycleConfiguration
	bells      registry.BellSchedule
	exceptions registry.Exceptions
	overrides  registry.Overrides
	classes    registry.ClassTable
	rooms      registry.Rooms
	version    uint64
}

// State captures the current project. Registries are immutable, so the
// copy is shallow.
func (p *Planner) State() State {
	return State{
		cal:        p.cal,
		bells:      p.bells,
		exceptions: p.exceptions,
		overrides:  p.overrides,
		classes:    p.classes,
		rooms:      p.rooms,
		version:    p.version,
	}
}

// Restore rolls the planner back to s, including its version.
func (p *Planner) Restore(s State) {
	if s.version != p.version {
		appLog.Debug("planner restore", "from", p.version, "to", s.version)
	}
	p.cal = s.cal
	p.bells = s.bells
	p.exceptions = s.exceptions
	p.overrides = s.overrides
	p.classes = s.classes
	p.rooms = s.rooms
	p.version = s.version
}

// checkFits reports the first override or class that a calendar of the
// given shape could no longer address.
func (p *Planner) checkFits(length, periods int) error {
	for _, o := range p.overrides.Entries() {
		if o.Cycle > length {
			return fmt.Errorf("schedule: override %s = %d exceeds cycle length %d: %w", o.Date, o.Cycle, length, model.ErrOutOfRange)
		}
	}
	for _, c := range p.classes.Entries() {
		if c.CycleDay > length || c.Period >= periods {
			return fmt.Errorf("schedule: class at day %d period %d outside %d days x %d periods: %w",
				c.CycleDay, c.Period, length, periods, model.ErrOutOfRange)
		}
	}
	return nil
}

func (p *Planner) touch(op string, kv ...any) {
	p.version++
	appLog.Debug("planner "+op, append([]any{"version", p.version}, kv...)...)
}

// SetConfig replaces the calendar configuration. The bell schedule follows
// PeriodsPerDay. Shrinking CycleLength or PeriodsPerDay below a stored
// override or class is rejected with model.ErrOutOfRange; clear those first.
func (p *Planner) SetConfig(cal model.CycleConfiguration) error {
	if err := config.ValidateCalendar(cal); err != nil {
		return err
	}
	if err := p.checkFits(cal.CycleLength, cal.PeriodsPerDay); err != nil {
		return err
	}
	p.cal = cal
	p.bells = p.bells.Resize(cal.PeriodsPerDay)
	p.touch("set config", "cycle_length", cal.CycleLength, "mode", cal.Mode)
	return nil
}

// UpdatePeriodCount changes PeriodsPerDay and resizes the bell schedule in
// the same step.
func (p *Planner) UpdatePeriodCount(n int) error {
	if n < 1 {
		return fmt.Errorf("schedule: period count %d: %w", n, model.ErrOutOfRange)
	}
	if err := p.checkFits(p.cal.CycleLength, n); err != nil {
		return err
	}
	p.cal.PeriodsPerDay = n
	p.bells = p.bells.Resize(n)
	p.touch("update period count", "periods", n)
	return nil
}

// SetBell edits one bell period.
func (p *Planner) SetBell(i int, period model.BellPeriod) error {
	next, err := p.bells.Set(i, period)
	if err != nil {
		return err
	}
	p.bells = next
	p.touch("set bell", "index", i)
	return nil
}

// ResetBellSchedule lays out the default one-hour periods from 08:00.
func (p *Planner) ResetBellSchedule() {
	p.bells = registry.DefaultBellSchedule(p.cal.PeriodsPerDay)
	p.touch("reset bell schedule")
}

// ToggleException flips d between t and School.
func (p *Planner) ToggleException(d model.Date, t model.DayType) error {
	if _, err := model.ParseDayType(string(t)); err != nil {
		return err
	}
	p.exceptions = p.exceptions.Toggle(d, t)
	p.touch("toggle exception", "date", d, "type", p.exceptions.Get(d))
	return nil
}

// SetException overwrites the day type of d.
func (p *Planner) SetException(d model.Date, t model.DayType) error {
	if _, err := model.ParseDayType(string(t)); err != nil {
		return err
	}
	p.exceptions = p.exceptions.Set(d, t)
	p.touch("set exception", "date", d, "type", t)
	return nil
}

// SetCycleOverride forces the cycle number of d; nil clears it. Values
// outside [1, CycleLength] are rejected with model.ErrOutOfRange.
func (p *Planner) SetCycleOverride(d model.Date, v *int) error {
	if v != nil && (*v < 1 || *v > p.cal.CycleLength) {
		return fmt.Errorf("schedule: override %s = %d not in [1, %d]: %w", d, *v, p.cal.CycleLength, model.ErrOutOfRange)
	}
	p.overrides = p.overrides.Set(d, v)
	p.touch("set override", "date", d)
	return nil
}

// GetClass returns the slot at (day, period), empty when unset.
func (p *Planner) GetClass(day, period int) model.ClassSlot {
	return p.classes.Get(day, period)
}

// UpdateClass edits one field of one slot.
func (p *Planner) UpdateClass(day, period int, field registry.ClassField, value string) error {
	if err := p.checkSlot(day, period); err != nil {
		return err
	}
	next, err := p.classes.Update(day, period, field, value)
	if err != nil {
		return err
	}
	p.classes = next
	p.touch("update class", "day", day, "period", period, "field", field)
	return nil
}

// UpdateClassBatch applies all updates or none: the first out-of-range
// address rejects the whole batch.
func (p *Planner) UpdateClassBatch(updates []registry.ClassUpdate) error {
	for i, u := range updates {
		if err := p.checkSlot(u.CycleDay, u.Period); err != nil {
			return fmt.Errorf("schedule: batch item %d: %w", i, err)
		}
	}
	p.classes = p.classes.ApplyBatch(updates)
	p.touch("update class batch", "count", len(updates))
	return nil
}

func (p *Planner) checkSlot(day, period int) error {
	if day < 1 || day > p.cal.CycleLength {
		return fmt.Errorf("schedule: cycle day %d not in [1, %d]: %w", day, p.cal.CycleLength, model.ErrOutOfRange)
	}
	if period < 0 || period >= p.cal.PeriodsPerDay {
		return fmt.Errorf("schedule: period %d not in [0, %d): %w", period, p.cal.PeriodsPerDay, model.ErrOutOfRange)
	}
	return nil
}

func (p *Planner) AddRoom(name string) {
	p.rooms = p.rooms.Add(name)
	p.touch("add room", "room", name)
}

func (p *Planner) RemoveRoom(name string) {
	p.rooms = p.rooms.Remove(name)
	p.touch("remove room", "room", name)
}

// Generated returns the schedule for the current state, reusing the last
// result while no input changed. The slice must not be modified.
func (p *Planner) Generated() ([]model.GeneratedDay, error) {
	days, key, err := p.memo.Get(cycle.Input{
		Config:     p.cal,
		Exceptions: p.exceptions,
		Overrides:  p.overrides,
		Classes:    p.classes,
	})
	if err != nil {
		return nil, err
	}
	appLog.Debug("planner generated", "days", len(days), "fingerprint", key.String()[:12], "hits", p.memo.Hits, "misses", p.memo.Misses)
	return days, nil
}

// Export writes the iCalendar form of the current schedule to w.
func (p *Planner) Export(w io.Writer) error {
	days, err := p.Generated()
	if err != nil {
		return err
	}
	return ics.Export(w, days, p.bells, ics.ExportOptions{Now: p.Now})
}
