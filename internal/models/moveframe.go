package models

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies a moveframe.
type Kind string

const (
	KindStandard   Kind = "STANDARD"
	KindBattery    Kind = "BATTERY"
	KindAnnotation Kind = "ANNOTATION"
	KindManual     Kind = "MANUAL"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindStandard, KindBattery, KindAnnotation, KindManual:
		return true
	}
	return false
}

// Expands reports whether moveframes of this kind are built from sequences.
// ANNOTATION and MANUAL carry caller-supplied content and no movelaps.
func (k Kind) Expands() bool {
	return k == KindStandard || k == KindBattery
}

// AlarmSound selects the sound played at a movelap's alarm offset.
type AlarmSound string

const (
	AlarmNone    AlarmSound = "none"
	AlarmBeep    AlarmSound = "beep"
	AlarmBell    AlarmSound = "bell"
	AlarmWhistle AlarmSound = "whistle"
)

// Valid reports whether s is empty or a known sound.
func (s AlarmSound) Valid() bool {
	switch s {
	case "", AlarmNone, AlarmBeep, AlarmBell, AlarmWhistle:
		return true
	}
	return false
}

// Sequence is one contiguous block of identical repeats,
// e.g. 4x100m A2 freestyle with 1'20" rest.
type Sequence struct {
	Distance             float64 `json:"distance" yaml:"distance"`
	PaceLabel            string  `json:"paceLabel" yaml:"pace"`
	Style                string  `json:"style" yaml:"style"`
	RepetitionCount      int     `json:"repetitionCount" yaml:"reps"`
	IntraRestInterval    string  `json:"intraRestInterval" yaml:"rest"`
	TerminalRestInterval *string `json:"terminalRestInterval,omitempty" yaml:"terminal_rest,omitempty"`
}

// GlobalAnnotations apply uniformly to every movelap of a moveframe.
type GlobalAnnotations struct {
	PaceTarget      *string    `json:"paceTarget,omitempty" yaml:"pace_target,omitempty"`
	TotalTimeTarget *string    `json:"totalTimeTarget,omitempty" yaml:"total_time_target,omitempty"`
	AlarmOffset     *int       `json:"alarmOffset,omitempty" yaml:"alarm_offset,omitempty"`
	AlarmSound      AlarmSound `json:"alarmSound,omitempty" yaml:"alarm_sound,omitempty"`
	Note            *string    `json:"note,omitempty" yaml:"note,omitempty"`
}

// Movelap is one atomic repeat produced by expanding a sequence.
type Movelap struct {
	OwnerMoveframeID uuid.UUID `json:"ownerMoveframeId"`
	SequencePosition int       `json:"sequencePosition"`
	Distance         float64   `json:"distance"`
	PaceLabel        string    `json:"paceLabel"`
	Style            string    `json:"style"`
	RestAfter        string    `json:"restAfter"`
	GlobalAnnotations
}

// Moveframe is a lettered block within a workout. Its movelaps are created
// and replaced as one batch.
type Moveframe struct {
	ID             uuid.UUID         `json:"id"`
	OwnerWorkoutID uuid.UUID         `json:"ownerWorkoutId"`
	Letter         string            `json:"letter"`
	Discipline     Discipline        `json:"discipline"`
	Kind           Kind              `json:"kind"`
	Summary        string            `json:"summary"`
	Sequences      []Sequence        `json:"sequences,omitempty"`
	Annotations    GlobalAnnotations `json:"annotations"`
	Movelaps       []Movelap         `json:"movelaps"`
	CreatedAt      time.Time         `json:"createdAt,omitzero"`
}

// TotalDistance sums the distance of all movelaps.
func (m *Moveframe) TotalDistance() float64 {
	var total float64
	for _, ml := range m.Movelaps {
		total += ml.Distance
	}
	return total
}

// Clone copies pointer fields so the copy never shares mutable state.
func (a GlobalAnnotations) Clone() GlobalAnnotations {
	out := a
	if a.PaceTarget != nil {
		v := *a.PaceTarget
		out.PaceTarget = &v
	}
	if a.TotalTimeTarget != nil {
		v := *a.TotalTimeTarget
		out.TotalTimeTarget = &v
	}
	if a.AlarmOffset != nil {
		v := *a.AlarmOffset
		out.AlarmOffset = &v
	}
	if a.Note != nil {
		v := *a.Note
		out.Note = &v
	}
	return out
}

// Clone returns a deep copy of the moveframe.
func (m *Moveframe) Clone() Moveframe {
	out := *m
	out.Annotations = m.Annotations.Clone()
	if m.Sequences != nil {
		out.Sequences = make([]Sequence, len(m.Sequences))
		for i, s := range m.Sequences {
			if s.TerminalRestInterval != nil {
				v := *s.TerminalRestInterval
				s.TerminalRestInterval = &v
			}
			out.Sequences[i] = s
		}
	}
	out.Movelaps = make([]Movelap, len(m.Movelaps))
	for i, l := range m.Movelaps {
		l.GlobalAnnotations = l.GlobalAnnotations.Clone()
		out.Movelaps[i] = l
	}
	return out
}
