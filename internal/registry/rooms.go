package registry

import "sort"

// Rooms is the sorted, de-duplicated list of known rooms.
type Rooms struct {
	names []string
}

func NewRooms(names ...string) Rooms {
	r := Rooms{}
	for _, n := range names {
		r = r.Add(n)
	}
	return r
}

// Add ignores empty names and names already present.
func (r Rooms) Add(name string) Rooms {
	if name == "" || r.Has(name) {
		return r
	}
	next := append(append([]string(nil), r.names...), name)
	sort.Strings(next)
	return Rooms{names: next}
}

func (r Rooms) Remove(name string) Rooms {
	next := make([]string, 0, len(r.names))
	for _, n := range r.names {
		if n != name {
			next = append(next, n)
		}
	}
	return Rooms{names: next}
}

func (r Rooms) Has(name string) bool {
	i := sort.SearchStrings(r.names, name)
	return i < len(r.names) && r.names[i] == name
}

func (r Rooms) List() []string {
	return append([]string(nil), r.names...)
}
