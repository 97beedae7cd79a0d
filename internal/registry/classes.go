package registry

import (
	"fmt"
	"sort"

	"cyclecal/internal/model"
)

// ClassField names one editable attribute of a ClassSlot.
type ClassField string

const (
	FieldName ClassField = "name"
	FieldRoom ClassField = "room"
	FieldNote ClassField = "note"
)

// ClassUpdate replaces the slot at (CycleDay, Period).
type ClassUpdate struct {
	CycleDay int             `json:"day"`
	Period   int             `json:"period"`
	Info     model.ClassSlot `json:"info"`
}

// ClassEntry is the flattened, persistable form of one table cell.
type ClassEntry struct {
	CycleDay int    `yaml:"cycle_day" json:"cycle_day"`
	Period   int    `yaml:"period" json:"period"`
	Name     string `yaml:"name" json:"name"`
	Room     string `yaml:"room,omitempty" json:"room"`
	Note     string `yaml:"note,omitempty" json:"note"`
}

type classKey struct {
	day    int
	period int
}

// ClassTable maps (cycle day, period index) to a class slot.
type ClassTable struct {
	m map[classKey]model.ClassSlot
}

func NewClassTable(entries ...ClassEntry) ClassTable {
	c := ClassTable{m: make(map[classKey]model.ClassSlot, len(entries))}
	for _, en := range entries {
		c.m[classKey{en.CycleDay, en.Period}] = model.ClassSlot{Name: en.Name, Room: en.Room, Note: en.Note}
	}
	return c
}

// Get returns the slot for (day, period), or the empty slot.
func (c ClassTable) Get(day, period int) model.ClassSlot {
	return c.m[classKey{day, period}]
}

func (c ClassTable) Len() int { return len(c.m) }

// Update edits a single field of one slot.
func (c ClassTable) Update(day, period int, field ClassField, value string) (ClassTable, error) {
	slot := c.Get(day, period)
	switch field {
	case FieldName:
		slot.Name = value
	case FieldRoom:
		slot.Room = value
	case FieldNote:
		slot.Note = value
	default:
		return c, fmt.Errorf("registry: class field %q: %w", field, model.ErrInvalid)
	}
	next := c.clone()
	next.m[classKey{day, period}] = slot
	return next, nil
}

// ApplyBatch replaces every addressed slot in one step.
func (c ClassTable) ApplyBatch(updates []ClassUpdate) ClassTable {
	next := c.clone()
	for _, u := range updates {
		next.m[classKey{u.CycleDay, u.Period}] = u.Info
	}
	return next
}

// Entries lists non-empty slots ordered by cycle day, then period.
func (c ClassTable) Entries() []ClassEntry {
	out := make([]ClassEntry, 0, len(c.m))
	for k, v := range c.m {
		if v == (model.ClassSlot{}) {
			continue
		}
		out = append(out, ClassEntry{CycleDay: k.day, Period: k.period, Name: v.Name, Room: v.Room, Note: v.Note})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CycleDay != out[j].CycleDay {
			return out[i].CycleDay < out[j].CycleDay
		}
		return out[i].Period < out[j].Period
	})
	return out
}

func (c ClassTable) clone() ClassTable {
	next := ClassTable{m: make(map[classKey]model.ClassSlot, len(c.m)+1)}
	for k, v := range c.m {
		next.m[k] = v
	}
	return next
}
