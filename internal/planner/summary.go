package planner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/claude/trainplan/internal/duration"
	"github.com/claude/trainplan/internal/models"
)

// SummarySeparator joins per-sequence summary parts.
const SummarySeparator = ", "

// Summarize describes sequences on one line, e.g. "4×100 A2 Freestyle 1'20\", 2×50 A3 Backstroke 30\"".
// It ignores terminalRestInterval and never looks at expanded movelaps.
// Rest tokens that do not parse are shown as written.
func Summarize(sequences []models.Sequence) string {
	parts := make([]string, 0, len(sequences))
	for _, seq := range sequences {
		parts = append(parts, summarizeOne(seq))
	}
	return strings.Join(parts, SummarySeparator)
}

func summarizeOne(seq models.Sequence) string {
	rest := strings.TrimSpace(seq.IntraRestInterval)
	if d, err := duration.Parse(rest); err == nil {
		rest = duration.Format(d)
	}

	fields := []string{fmt.Sprintf("%d×%s", seq.RepetitionCount, formatDistance(seq.Distance))}
	for _, f := range []string{seq.PaceLabel, seq.Style, rest} {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return strings.Join(fields, " ")
}

func formatDistance(d float64) string {
	return strconv.FormatFloat(d, 'f', -1, 64)
}
