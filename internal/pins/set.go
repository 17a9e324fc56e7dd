package pins

import (
	"fmt"
	"sort"
	"strings"
)

// Set is a deduplicated list of pins in registry order. A Set is a value:
// every operation returns a new Set and never mutates its receiver.
type Set []Pin

// NewSet normalizes pins into a Set. Unregistered pins sort after
// registered ones, by name.
func NewSet(pins ...Pin) Set {
	seen := make(map[Pin]bool, len(pins))
	out := make(Set, 0, len(pins))
	for _, p := range pins {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return out[i] < out[j]
	})
	return out
}

// Union returns s joined with every group in others.
func (s Set) Union(others ...Set) Set {
	all := append([]Pin(nil), s...)
	for _, o := range others {
		all = append(all, o...)
	}
	return NewSet(all...)
}

// With is Union over single pins.
func (s Set) With(pins ...Pin) Set {
	return s.Union(Set(pins))
}

// Contains reports whether p is in s.
func (s Set) Contains(p Pin) bool {
	for _, q := range s {
		if q == p {
			return true
		}
	}
	return false
}

// Tagged returns the members of s carrying tag t.
func (s Set) Tagged(t Tag) Set {
	var out Set
	for _, p := range s {
		if p.Has(t) {
			out = append(out, p)
		}
	}
	return out
}

// Without returns s minus every pin in remove.
func (s Set) Without(remove Set) Set {
	var out Set
	for _, p := range s {
		if !remove.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}

// Unknown returns the members of s missing from the registry.
func (s Set) Unknown() []Pin {
	var out []Pin
	for _, p := range s {
		if !p.Known() {
			out = append(out, p)
		}
	}
	return out
}

// Equal reports whether s and o hold the same pins.
func (s Set) Equal(o Set) bool {
	a, b := NewSet(s...), NewSet(o...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Strings returns the pin names in set order.
func (s Set) Strings() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = string(p)
	}
	return out
}

func (s Set) String() string {
	return "[" + strings.Join(s.Strings(), " ") + "]"
}

// Conflict is one violated mutual-exclusion rule.
type Conflict struct {
	Left, Right Tag
	LeftPins    Set
	RightPins   Set
}

func (c Conflict) String() string {
	return fmt.Sprintf("%s pins %v cannot be used with %s pins %v", c.Left, c.LeftPins, c.Right, c.RightPins)
}

// exclusions lists tag pairs that must never be energized together.
var exclusions = [][2]Tag{
	{TagPEK, TagNoPEK},
	{TagAthena, TagNotAthena},
	{TagPEKPlus, TagPEK},
}

// Conflicts returns every mutual-exclusion rule that s violates, in rule
// order. A nil result means s is safe to energize.
func Conflicts(s Set) []Conflict {
	var out []Conflict
	for _, ex := range exclusions {
		left, right := s.Tagged(ex[0]), s.Tagged(ex[1])
		if len(left) > 0 && len(right) > 0 {
			out = append(out, Conflict{Left: ex[0], Right: ex[1], LeftPins: left, RightPins: right})
		}
	}
	return out
}
