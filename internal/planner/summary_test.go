package planner

import (
	"testing"

	"github.com/claude/trainplan/internal/models"
)

// TestSummarize verifies the one-line rendering and submission order.
func TestSummarize(t *testing.T) {
	got := Summarize(swimSet())
	want := `4×100 A2 Freestyle 1'20", 2×50 A3 Backstroke 30"`
	if got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}

// TestSummarizeIgnoresTerminalRest verifies lists differing only in terminal
// rest share a summary.
func TestSummarizeIgnoresTerminalRest(t *testing.T) {
	a := swimSet()
	b := swimSet()
	b[0].TerminalRestInterval = strPtr(`5'`)
	if Summarize(a) != Summarize(b) {
		t.Errorf("summaries differ: %q vs %q", Summarize(a), Summarize(b))
	}
}

// TestSummarizeFormatsDurations verifies rest tokens are shown canonically and
// fractional distances keep their decimals.
func TestSummarizeFormatsDurations(t *testing.T) {
	got := Summarize([]models.Sequence{{Distance: 12.5, RepetitionCount: 3, PaceLabel: "B2", Style: "Kick", IntraRestInterval: "75"}})
	if want := `3×12.5 B2 Kick 1'15"`; got != want {
		t.Errorf("Summarize = %q, want %q", got, want)
	}
}

// TestSummarizeNeverFails verifies malformed input still yields a line.
func TestSummarizeNeverFails(t *testing.T) {
	got := Summarize([]models.Sequence{{RepetitionCount: 0, IntraRestInterval: "soon"}})
	if got != "0×0 soon" {
		t.Errorf("Summarize = %q, want %q", got, "0×0 soon")
	}
	if Summarize(nil) != "" {
		t.Error("empty list should summarize to empty string")
	}
}
