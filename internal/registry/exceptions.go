// Package registry holds the long-lived inputs of cycle generation.
//
// Every registry is an immutable value: mutating methods return a new
// registry and leave the receiver untouched, so a generation pass that holds
// a registry always observes one consistent snapshot.
package registry

import (
	"sort"

	"cyclecal/internal/model"
)

// ExceptionEntry marks a date as a non-School day.
type ExceptionEntry struct {
	Date model.Date    `yaml:"date" json:"date"`
	Type model.DayType `yaml:"type" json:"type"`
}

// Exceptions maps dates to a day type. Dates without an entry are School.
type Exceptions struct {
	m map[model.Date]model.DayType
}

func NewExceptions(entries ...ExceptionEntry) Exceptions {
	e := Exceptions{m: make(map[model.Date]model.DayType, len(entries))}
	for _, en := range entries {
		if en.Type == model.School || en.Type == "" {
			continue
		}
		e.m[en.Date] = en.Type
	}
	return e
}

// Get returns the day type of d, School when absent.
func (e Exceptions) Get(d model.Date) model.DayType {
	if t, ok := e.m[d]; ok {
		return t
	}
	return model.School
}

func (e Exceptions) Len() int { return len(e.m) }

// Toggle sets d to t, or reverts d to School when it already holds t.
func (e Exceptions) Toggle(d model.Date, t model.DayType) Exceptions {
	if e.Get(d) == t {
		return e.Set(d, model.School)
	}
	return e.Set(d, t)
}

// Set overwrites the entry for d unconditionally. Setting School removes it.
func (e Exceptions) Set(d model.Date, t model.DayType) Exceptions {
	next := e.clone()
	if t == model.School {
		delete(next.m, d)
	} else {
		next.m[d] = t
	}
	return next
}

// Entries lists the registry ordered by date.
func (e Exceptions) Entries() []ExceptionEntry {
	out := make([]ExceptionEntry, 0, len(e.m))
	for d, t := range e.m {
		out = append(out, ExceptionEntry{Date: d, Type: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (e Exceptions) clone() Exceptions {
	next := Exceptions{m: make(map[model.Date]model.DayType, len(e.m)+1)}
	for k, v := range e.m {
		next.m[k] = v
	}
	return next
}
