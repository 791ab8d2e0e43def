package planner

import (
	"fmt"
	"math"
	"strings"

	"github.com/claude/trainplan/internal/duration"
	"github.com/claude/trainplan/internal/models"
)

// MaxRepetitions bounds a sequence's repetition count.
const MaxRepetitions = 50

// TrailingRest decides the rest after the very last movelap of a moveframe.
type TrailingRest string

const (
	// TrailingRestKeep applies terminalRestInterval (or intraRestInterval) as for any sequence end.
	TrailingRestKeep TrailingRest = "keep"
	// TrailingRestSuppress sets the last movelap's rest to zero.
	TrailingRestSuppress TrailingRest = "suppress"
)

// ParseTrailingRest maps a config value to a policy. Empty means keep.
func ParseTrailingRest(s string) (TrailingRest, error) {
	switch TrailingRest(strings.ToLower(strings.TrimSpace(s))) {
	case "", TrailingRestKeep:
		return TrailingRestKeep, nil
	case TrailingRestSuppress:
		return TrailingRestSuppress, nil
	}
	return "", fmt.Errorf("unknown trailing rest policy %q (want keep or suppress)", s)
}

// Options tune expansion.
type Options struct {
	TrailingRest TrailingRest
}

// normalizedSequence is a validated sequence with canonical rest tokens.
type normalizedSequence struct {
	models.Sequence
	intraRest    string
	terminalRest string
}

func normalizeSequence(i int, seq models.Sequence) (normalizedSequence, error) {
	if math.IsNaN(seq.Distance) || math.IsInf(seq.Distance, 0) || seq.Distance <= 0 {
		return normalizedSequence{}, invalid(i, "distance", "must be positive, got %v", seq.Distance)
	}
	if strings.TrimSpace(seq.PaceLabel) == "" {
		return normalizedSequence{}, invalid(i, "paceLabel", "must not be empty")
	}
	if seq.RepetitionCount < 1 || seq.RepetitionCount > MaxRepetitions {
		return normalizedSequence{}, invalid(i, "repetitionCount", "must be 1..%d, got %d", MaxRepetitions, seq.RepetitionCount)
	}

	intra, err := duration.Normalize(seq.IntraRestInterval)
	if err != nil {
		return normalizedSequence{}, &SequenceError{Index: i, Field: "intraRestInterval", Err: err}
	}
	terminal := intra
	if seq.TerminalRestInterval != nil {
		terminal, err = duration.Normalize(*seq.TerminalRestInterval)
		if err != nil {
			return normalizedSequence{}, &SequenceError{Index: i, Field: "terminalRestInterval", Err: err}
		}
	}
	return normalizedSequence{Sequence: seq, intraRest: intra, terminalRest: terminal}, nil
}

// Expand turns sequences into movelaps using the keep trailing-rest policy.
func Expand(sequences []models.Sequence, annotations models.GlobalAnnotations) ([]models.Movelap, error) {
	return Options{TrailingRest: TrailingRestKeep}.Expand(sequences, annotations)
}

// Expand emits repetitionCount movelaps per sequence, in submission order.
// sequencePosition runs 0..N-1 across the whole list. OwnerMoveframeID is left
// for the caller to set.
func (o Options) Expand(sequences []models.Sequence, annotations models.GlobalAnnotations) ([]models.Movelap, error) {
	normalized := make([]normalizedSequence, len(sequences))
	total := 0
	for i, seq := range sequences {
		ns, err := normalizeSequence(i, seq)
		if err != nil {
			return nil, err
		}
		normalized[i] = ns
		total += seq.RepetitionCount
	}

	movelaps := make([]models.Movelap, 0, total)
	for i, ns := range normalized {
		for r := 0; r < ns.RepetitionCount; r++ {
			rest := ns.intraRest
			if r == ns.RepetitionCount-1 {
				rest = ns.terminalRest
				if i == len(normalized)-1 && o.TrailingRest == TrailingRestSuppress {
					rest = duration.Format(0)
				}
			}
			movelaps = append(movelaps, models.Movelap{
				SequencePosition:  len(movelaps),
				Distance:          ns.Distance,
				PaceLabel:         ns.PaceLabel,
				Style:             ns.Style,
				RestAfter:         rest,
				GlobalAnnotations: annotations.Clone(),
			})
		}
	}
	return movelaps, nil
}
