package registry

import (
	"sort"

	"cyclecal/internal/model"
)

// OverrideEntry forces the cycle number of a single date.
type OverrideEntry struct {
	Date  model.Date `yaml:"date" json:"date"`
	Cycle int        `yaml:"cycle" json:"cycle"`
}

// Overrides maps dates to manually forced cycle numbers. Values are stored
// verbatim; range checks belong to the owner of the configuration.
type Overrides struct {
	m map[model.Date]int
}

func NewOverrides(entries ...OverrideEntry) Overrides {
	o := Overrides{m: make(map[model.Date]int, len(entries))}
	for _, en := range entries {
		o.m[en.Date] = en.Cycle
	}
	return o
}

func (o Overrides) Get(d model.Date) (int, bool) {
	v, ok := o.m[d]
	return v, ok
}

func (o Overrides) Len() int { return len(o.m) }

// Set stores v for d; a nil v clears the override.
func (o Overrides) Set(d model.Date, v *int) Overrides {
	next := Overrides{m: make(map[model.Date]int, len(o.m)+1)}
	for k, val := range o.m {
		next.m[k] = val
	}
	if v == nil {
		delete(next.m, d)
	} else {
		next.m[d] = *v
	}
	return next
}

func (o Overrides) Entries() []OverrideEntry {
	out := make([]OverrideEntry, 0, len(o.m))
	for d, v := range o.m {
		out = append(out, OverrideEntry{Date: d, Cycle: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
