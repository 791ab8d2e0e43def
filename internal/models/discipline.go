package models

import (
	"encoding/json"
	"sort"
	"strings"
)

// Discipline is a training activity category (swim, run, stretching, ...).
type Discipline string

// Stretching gets special treatment in the per-day discipline cap.
const Stretching Discipline = "stretching"

// NormalizeDiscipline trims and lower-cases a discipline tag.
func NormalizeDiscipline(s string) Discipline {
	return Discipline(strings.ToLower(strings.TrimSpace(s)))
}

// DisciplineSet is a set of distinct disciplines. The zero value is empty and
// read-only; use NewDisciplineSet or Add on a made set.
type DisciplineSet map[Discipline]struct{}

// NewDisciplineSet builds a set from raw tags, normalizing each one.
// Empty tags are ignored.
func NewDisciplineSet(tags ...string) DisciplineSet {
	set := make(DisciplineSet, len(tags))
	for _, t := range tags {
		set.Add(NormalizeDiscipline(t))
	}
	return set
}

// Add inserts d unless it is empty.
func (s DisciplineSet) Add(d Discipline) {
	if d == "" {
		return
	}
	s[d] = struct{}{}
}

// Has reports whether d is in the set.
func (s DisciplineSet) Has(d Discipline) bool {
	_, ok := s[d]
	return ok
}

// Len returns the number of disciplines.
func (s DisciplineSet) Len() int {
	return len(s)
}

// Union returns a new set holding the members of s and other.
func (s DisciplineSet) Union(other DisciplineSet) DisciplineSet {
	out := make(DisciplineSet, len(s)+len(other))
	for d := range s {
		out[d] = struct{}{}
	}
	for d := range other {
		out[d] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s DisciplineSet) Sorted() []Discipline {
	out := make([]Discipline, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s DisciplineSet) String() string {
	names := make([]string, 0, len(s))
	for _, d := range s.Sorted() {
		names = append(names, string(d))
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// MarshalJSON encodes the set as a sorted array.
func (s DisciplineSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes an array of tags, normalizing each one.
func (s *DisciplineSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return err
	}
	*s = NewDisciplineSet(tags...)
	return nil
}
