package planner

import (
	"errors"
	"strings"

	"github.com/claude/trainplan/internal/duration"
	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
)

// MaxAlarmOffset bounds the alarm offset in seconds, either side of zero.
const MaxAlarmOffset = 3600

// Request carries everything Assemble needs. DaySet, WorkoutSet and
// ExistingLetters must come from one consistent snapshot.
type Request struct {
	MoveframeID     uuid.UUID
	WorkoutID       uuid.UUID
	DaySet          models.DisciplineSet
	WorkoutSet      models.DisciplineSet
	ExistingLetters []string

	Discipline  string
	Kind        models.Kind
	Sequences   []models.Sequence
	Annotations models.GlobalAnnotations
	// Content is the summary of ANNOTATION and MANUAL moveframes.
	Content string
}

// Assemble validates the discipline, allocates a letter, expands the
// sequences and synthesizes the summary. It performs no I/O.
func (o Options) Assemble(req Request) (*models.Moveframe, error) {
	if !req.Kind.Valid() {
		return nil, invalid(-1, "kind", "unknown kind %q", req.Kind)
	}
	discipline := models.NormalizeDiscipline(req.Discipline)
	if discipline == "" {
		return nil, invalid(-1, "discipline", "must not be empty")
	}

	// Validator, then allocator, then payload checks and expansion.
	if d := CanAssign(discipline, req.DaySet, req.WorkoutSet); !d.Allowed {
		return nil, &DisciplineError{Decision: d}
	}

	letter, err := NextLetter(req.ExistingLetters)
	if err != nil {
		return nil, err
	}

	annotations, err := normalizeAnnotations(req.Annotations)
	if err != nil {
		return nil, err
	}
	switch {
	case req.Kind.Expands() && len(req.Sequences) == 0:
		return nil, invalid(-1, "sequences", "%s moveframe needs at least one sequence", req.Kind)
	case !req.Kind.Expands() && len(req.Sequences) > 0:
		return nil, invalid(-1, "sequences", "%s moveframe takes no sequences", req.Kind)
	}

	mf := &models.Moveframe{
		ID:             req.MoveframeID,
		OwnerWorkoutID: req.WorkoutID,
		Letter:         letter,
		Discipline:     discipline,
		Kind:           req.Kind,
		Annotations:    annotations,
		Movelaps:       []models.Movelap{},
	}

	if !req.Kind.Expands() {
		mf.Summary = strings.TrimSpace(req.Content)
		return mf, nil
	}

	if err := o.Fill(mf, req.Sequences); err != nil {
		return nil, err
	}
	return mf, nil
}

// Assemble runs Options.Assemble with the keep trailing-rest policy.
func Assemble(req Request) (*models.Moveframe, error) {
	return Options{TrailingRest: TrailingRestKeep}.Assemble(req)
}

// Fill replaces mf's sequences, movelaps and summary with a fresh batch built
// from sequences and mf.Annotations. Letter and discipline are untouched.
func (o Options) Fill(mf *models.Moveframe, sequences []models.Sequence) error {
	if !mf.Kind.Expands() {
		return invalid(-1, "sequences", "%s moveframe takes no sequences", mf.Kind)
	}
	if len(sequences) == 0 {
		return invalid(-1, "sequences", "%s moveframe needs at least one sequence", mf.Kind)
	}
	movelaps, err := o.Expand(sequences, mf.Annotations)
	if err != nil {
		return err
	}
	for i := range movelaps {
		movelaps[i].OwnerMoveframeID = mf.ID
	}
	mf.Sequences = append([]models.Sequence(nil), sequences...)
	mf.Movelaps = movelaps
	mf.Summary = Summarize(sequences)
	return nil
}

func normalizeAnnotations(a models.GlobalAnnotations) (models.GlobalAnnotations, error) {
	out := a.Clone()
	if !out.AlarmSound.Valid() {
		return out, invalid(-1, "alarmSound", "unknown sound %q", out.AlarmSound)
	}
	if out.AlarmOffset != nil && (*out.AlarmOffset < -MaxAlarmOffset || *out.AlarmOffset > MaxAlarmOffset) {
		return out, invalid(-1, "alarmOffset", "must be within ±%d seconds, got %d", MaxAlarmOffset, *out.AlarmOffset)
	}
	if out.TotalTimeTarget != nil {
		token, err := duration.Normalize(*out.TotalTimeTarget)
		if err != nil {
			return out, &SequenceError{Index: -1, Field: "totalTimeTarget", Err: err}
		}
		out.TotalTimeTarget = &token
	}
	return out, nil
}

// ErrorKind returns the failure kind of err as a short code, or "" for errors
// that did not come from the core.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidSequence):
		return "invalid_sequence"
	case errors.Is(err, ErrDisciplineNotAllowed):
		return "discipline_not_allowed"
	case errors.Is(err, ErrNoIdentifierAvailable):
		return "no_identifier_available"
	}
	return ""
}
