package planner

import (
	"fmt"

	"github.com/claude/trainplan/internal/models"
)

// MaxDisciplines caps the distinct disciplines of a day and of a session.
const MaxDisciplines = 4

// DenyReason identifies which cap rejected a discipline.
type DenyReason string

const (
	ReasonDayCap     DenyReason = "day_cap"
	ReasonSessionCap DenyReason = "session_cap"
)

// Decision is the outcome of CanAssign.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
	Message string     `json:"message,omitempty"`
}

// CanAssign decides whether discipline may be added to a workout, given the
// day's and the workout's current discipline sets.
func CanAssign(discipline models.Discipline, daySet, workoutSet models.DisciplineSet) Decision {
	d := models.NormalizeDiscipline(string(discipline))

	if daySet.Has(d) {
		return Decision{Allowed: true}
	}
	if effectiveDaySize(daySet) >= MaxDisciplines {
		return Decision{
			Reason:  ReasonDayCap,
			Message: fmt.Sprintf("day already has %d disciplines: %s", MaxDisciplines, daySet),
		}
	}
	if !workoutSet.Has(d) && workoutSet.Len() >= MaxDisciplines {
		return Decision{
			Reason:  ReasonSessionCap,
			Message: fmt.Sprintf("session already has %d disciplines: %s", MaxDisciplines, workoutSet),
		}
	}
	return Decision{Allowed: true}
}

// Check normalizes a raw tag and runs CanAssign. An empty tag is an
// InvalidSequence failure on the discipline field.
func Check(discipline string, daySet, workoutSet models.DisciplineSet) (Decision, error) {
	d := models.NormalizeDiscipline(discipline)
	if d == "" {
		return Decision{}, invalid(-1, "discipline", "must not be empty")
	}
	return CanAssign(d, daySet, workoutSet), nil
}

// effectiveDaySize counts the day's disciplines. Stretching stops counting
// only when the raw count is exactly at the cap and stretching is one of them.
func effectiveDaySize(daySet models.DisciplineSet) int {
	n := daySet.Len()
	if n == MaxDisciplines && daySet.Has(models.Stretching) {
		return n - 1
	}
	return n
}
