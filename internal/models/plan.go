package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxSessionsPerDay bounds the workouts planned on one day.
const MaxSessionsPerDay = 3

// Workout is one training session of a day.
type Workout struct {
	ID           uuid.UUID   `json:"id"`
	OwnerDayID   uuid.UUID   `json:"ownerDayId"`
	SessionIndex int         `json:"sessionIndex"`
	Moveframes   []Moveframe `json:"moveframes"`
}

// DisciplineSet returns the distinct disciplines of the workout's moveframes.
func (w *Workout) DisciplineSet() DisciplineSet {
	set := make(DisciplineSet)
	for _, mf := range w.Moveframes {
		set.Add(mf.Discipline)
	}
	return set
}

// Letters returns the letters already used by the workout's moveframes.
func (w *Workout) Letters() []string {
	out := make([]string, 0, len(w.Moveframes))
	for _, mf := range w.Moveframes {
		out = append(out, mf.Letter)
	}
	return out
}

// Day is the top-level scheduling unit holding up to three workouts.
type Day struct {
	ID       uuid.UUID `json:"id"`
	Date     time.Time `json:"date"`
	Workouts []Workout `json:"workouts"`
}

// DisciplineSet returns the union of all workouts' discipline sets.
func (d *Day) DisciplineSet() DisciplineSet {
	set := make(DisciplineSet)
	for i := range d.Workouts {
		for disc := range d.Workouts[i].DisciplineSet() {
			set.Add(disc)
		}
	}
	return set
}

// ValidSessionIndex reports whether i is a usable session slot.
func ValidSessionIndex(i int) bool {
	return i >= 1 && i <= MaxSessionsPerDay
}
