package planner

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is; the concrete types below carry detail.
var (
	ErrInvalidSequence       = errors.New("invalid sequence")
	ErrDisciplineNotAllowed  = errors.New("discipline not allowed")
	ErrNoIdentifierAvailable = errors.New("no identifier available")
)

// SequenceError reports a malformed sequence or moveframe field.
// Index is the sequence position, or -1 for moveframe-level fields.
type SequenceError struct {
	Index int
	Field string
	Err   error
}

func (e *SequenceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s: %v", ErrInvalidSequence, e.Field, e.Err)
	}
	return fmt.Sprintf("%s %d: %s: %v", ErrInvalidSequence, e.Index, e.Field, e.Err)
}

// Unwrap exposes both the kind and the cause, so errors.As finds
// a *duration.ParseError underneath.
func (e *SequenceError) Unwrap() []error {
	return []error{ErrInvalidSequence, e.Err}
}

func invalid(index int, field, format string, args ...any) *SequenceError {
	return &SequenceError{Index: index, Field: field, Err: fmt.Errorf(format, args...)}
}

// DisciplineError carries the validator's denial.
type DisciplineError struct {
	Decision Decision
}

func (e *DisciplineError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDisciplineNotAllowed, e.Decision.Message)
}

func (e *DisciplineError) Unwrap() error {
	return ErrDisciplineNotAllowed
}
