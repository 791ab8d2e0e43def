package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/planner"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var testDate = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func assembler(discipline string, seqs ...models.Sequence) AssembleFunc {
	if len(seqs) == 0 {
		seqs = []models.Sequence{{Distance: 100, PaceLabel: "A2", RepetitionCount: 2, IntraRestInterval: `20"`}}
	}
	return func(s Snapshot) (*models.Moveframe, error) {
		return planner.Assemble(planner.Request{
			MoveframeID:     uuid.New(),
			WorkoutID:       s.WorkoutID,
			DaySet:          s.DaySet,
			WorkoutSet:      s.WorkoutSet,
			ExistingLetters: s.Letters,
			Discipline:      discipline,
			Kind:            models.KindStandard,
			Sequences:       seqs,
		})
	}
}

// TestMemoryEnsureWorkout verifies a session slot is created once and reused.
func TestMemoryEnsureWorkout(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	w1, created, err := m.EnsureWorkout(ctx, 1, testDate, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("first call: created = false, want true")
	}
	w2, created, err := m.EnsureWorkout(ctx, 1, testDate, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("second call: created = true, want false")
	}
	if w1.ID != w2.ID || w1.OwnerDayID != w2.OwnerDayID {
		t.Errorf("second call returned %s, want %s", w2.ID, w1.ID)
	}

	if _, _, err := m.EnsureWorkout(ctx, 1, testDate, 4); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("session 4: err = %v, want ErrInvalidSession", err)
	}
}

// TestMemoryCreateMoveframeSnapshot verifies letters and discipline sets are
// read from the day the workout belongs to.
func TestMemoryCreateMoveframeSnapshot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w1, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)
	w2, _, _ := m.EnsureWorkout(ctx, 1, testDate, 2)

	a, _, err := m.CreateMoveframe(ctx, 1, w1.ID, "", assembler("swim"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _, err := m.CreateMoveframe(ctx, 1, w1.ID, "", assembler("run"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Letter != "A" || b.Letter != "B" {
		t.Errorf("letters = %s,%s, want A,B", a.Letter, b.Letter)
	}

	var seen Snapshot
	_, _, err = m.CreateMoveframe(ctx, 1, w2.ID, "", func(s Snapshot) (*models.Moveframe, error) {
		seen = s
		return assembler("bike")(s)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := seen.DaySet.String(); got != "{run, swim}" {
		t.Errorf("day set = %s, want {run, swim}", got)
	}
	if seen.WorkoutSet.Len() != 0 || len(seen.Letters) != 0 {
		t.Errorf("workout snapshot = %s %v, want empty", seen.WorkoutSet, seen.Letters)
	}

	plan, err := m.GetDayPlan(ctx, 1, testDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Workouts) != 2 {
		t.Fatalf("workouts = %d, want 2", len(plan.Workouts))
	}
	if got := plan.Disciplines.String(); got != "{bike, run, swim}" {
		t.Errorf("plan day set = %s, want {bike, run, swim}", got)
	}
	if got := plan.Workouts[0].Moveframes[1].Letter; got != "B" {
		t.Errorf("second moveframe letter = %q, want B", got)
	}
}

// TestMemoryCreateMoveframeBuildError verifies a failed build stores nothing.
func TestMemoryCreateMoveframeBuildError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)

	bad := models.Sequence{Distance: 100, PaceLabel: "A2", RepetitionCount: 0, IntraRestInterval: `20"`}
	_, _, err := m.CreateMoveframe(ctx, 1, w.ID, "k1", assembler("swim", bad))
	if !errors.Is(err, planner.ErrInvalidSequence) {
		t.Fatalf("err = %v, want ErrInvalidSequence", err)
	}
	plan, _ := m.GetDayPlan(ctx, 1, testDate)
	if n := len(plan.Workouts[0].Moveframes); n != 0 {
		t.Errorf("moveframes = %d, want 0", n)
	}

	// The key was not consumed by the failure.
	mf, replayed, err := m.CreateMoveframe(ctx, 1, w.ID, "k1", assembler("swim"))
	if err != nil || replayed {
		t.Fatalf("retry: replayed=%v err=%v, want fresh create", replayed, err)
	}
	if mf.Letter != "A" {
		t.Errorf("letter = %q, want A", mf.Letter)
	}
}

// TestMemoryIdempotencyKey verifies a repeated key replays the first result
// instead of allocating a second letter.
func TestMemoryIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)

	first, replayed, err := m.CreateMoveframe(ctx, 1, w.ID, "retry-1", assembler("swim"))
	if err != nil || replayed {
		t.Fatalf("first: replayed=%v err=%v", replayed, err)
	}
	second, replayed, err := m.CreateMoveframe(ctx, 1, w.ID, "retry-1", assembler("swim"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !replayed {
		t.Error("replayed = false, want true")
	}
	if second.ID != first.ID || second.Letter != "A" {
		t.Errorf("replay = %s/%s, want %s/A", second.ID, second.Letter, first.ID)
	}

	// Keys are scoped per user: another user cannot see the workout at all.
	if _, _, err := m.CreateMoveframe(ctx, 2, w.ID, "retry-1", assembler("swim")); !errors.Is(err, ErrNotFound) {
		t.Errorf("other user: err = %v, want ErrNotFound", err)
	}

	// Deleting the moveframe drops its key.
	if err := m.DeleteMoveframe(ctx, 1, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	third, replayed, err := m.CreateMoveframe(ctx, 1, w.ID, "retry-1", assembler("swim"))
	if err != nil || replayed {
		t.Fatalf("after delete: replayed=%v err=%v", replayed, err)
	}
	if third.ID == first.ID {
		t.Error("after delete: got the deleted moveframe back")
	}
}

// TestMemoryIdempotencyKeyAcrossDays verifies concurrent creates that share a
// key on different days yield one moveframe and replays, never an error.
func TestMemoryIdempotencyKeyAcrossDays(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const n = 8
	workouts := make([]uuid.UUID, n)
	for i := range workouts {
		w, _, err := m.EnsureWorkout(ctx, 1, testDate.AddDate(0, 0, i), 1)
		if err != nil {
			t.Fatal(err)
		}
		workouts[i] = w.ID
	}

	type outcome struct {
		id       uuid.UUID
		replayed bool
		err      error
	}
	results := make(chan outcome, n)
	var wg sync.WaitGroup
	for _, wid := range workouts {
		wg.Add(1)
		go func(wid uuid.UUID) {
			defer wg.Done()
			mf, replayed, err := m.CreateMoveframe(ctx, 1, wid, "shared", assembler("swim"))
			o := outcome{replayed: replayed, err: err}
			if mf != nil {
				o.id = mf.ID
			}
			results <- o
		}(wid)
	}
	wg.Wait()
	close(results)

	var created int
	ids := map[uuid.UUID]bool{}
	for o := range results {
		if o.err != nil {
			t.Fatalf("unexpected error: %v", o.err)
		}
		if !o.replayed {
			created++
		}
		ids[o.id] = true
	}
	if created != 1 || len(ids) != 1 {
		t.Errorf("created = %d, distinct ids = %d, want 1 and 1", created, len(ids))
	}
}

// TestIsUniqueViolation verifies only SQLSTATE 23505 turns a failed key
// insert into a replay.
func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_pkey"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestMemoryReplaceMovelaps verifies regeneration swaps the whole batch and a
// failed rebuild leaves the stored moveframe untouched.
func TestMemoryReplaceMovelaps(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)
	mf, _, err := m.CreateMoveframe(ctx, 1, w.ID, "", assembler("swim"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := planner.Options{}
	seqs := []models.Sequence{{Distance: 50, PaceLabel: "B1", RepetitionCount: 5, IntraRestInterval: `10"`}}
	got, err := m.ReplaceMovelaps(ctx, 1, mf.ID, func(mf *models.Moveframe) error {
		return opts.Fill(mf, seqs)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Movelaps) != 5 || got.Letter != "A" {
		t.Errorf("regenerated = %d movelaps letter %s, want 5 letter A", len(got.Movelaps), got.Letter)
	}

	_, err = m.ReplaceMovelaps(ctx, 1, mf.ID, func(mf *models.Moveframe) error {
		mf.Movelaps = nil
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	stored, err := m.GetMoveframe(ctx, 1, mf.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stored.Movelaps) != 5 {
		t.Errorf("stored movelaps = %d, want 5", len(stored.Movelaps))
	}

	if _, err := m.ReplaceMovelaps(ctx, 1, uuid.New(), nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}
}

// TestMemoryReturnsCopies verifies callers cannot mutate stored state.
func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	w, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)
	mf, _, _ := m.CreateMoveframe(ctx, 1, w.ID, "", assembler("swim"))

	mf.Movelaps[0].PaceLabel = "changed"
	mf.Letter = "Z"

	stored, _ := m.GetMoveframe(ctx, 1, mf.ID)
	if stored.Letter != "A" || stored.Movelaps[0].PaceLabel != "A2" {
		t.Errorf("stored = %s/%s, want A/A2", stored.Letter, stored.Movelaps[0].PaceLabel)
	}
}

// TestMemoryStatsAndVolume verifies aggregates over two weeks.
func TestMemoryStatsAndVolume(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	next := testDate.AddDate(0, 0, 7)

	w1, _, _ := m.EnsureWorkout(ctx, 1, testDate, 1)
	w2, _, _ := m.EnsureWorkout(ctx, 1, next, 1)
	m.CreateMoveframe(ctx, 1, w1.ID, "", assembler("swim"))
	m.CreateMoveframe(ctx, 1, w1.ID, "", assembler("run"))
	m.CreateMoveframe(ctx, 1, w2.ID, "", assembler("swim"))

	stats, err := m.GetPlanStats(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalDays != 2 || stats.TotalWorkouts != 2 || stats.TotalMoveframes != 3 || stats.TotalMovelaps != 6 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.ByDiscipline) != 2 || stats.ByDiscipline[0].Discipline != "swim" {
		t.Fatalf("by discipline = %+v, want swim first", stats.ByDiscipline)
	}
	if stats.ByDiscipline[0].TotalDistance != 400 {
		t.Errorf("swim distance = %v, want 400", stats.ByDiscipline[0].TotalDistance)
	}

	vol, err := m.GetTrainingVolume(ctx, 1, testDate, next.AddDate(0, 0, 1), "week")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vol) != 2 {
		t.Fatalf("periods = %d, want 2", len(vol))
	}
	if vol[0].Period != "2026-03-16" || vol[1].Period != "2026-03-09" {
		t.Errorf("periods = %s,%s, want 2026-03-16,2026-03-09", vol[0].Period, vol[1].Period)
	}
	if len(vol[1].Disciplines) != 2 || vol[1].Disciplines[0].Distance != 200 {
		t.Errorf("first week = %+v", vol[1].Disciplines)
	}

	empty, _ := m.GetPlanStats(ctx, 2)
	if empty.TotalDays != 0 || len(empty.ByDiscipline) != 0 {
		t.Errorf("other user stats = %+v, want empty", empty)
	}
}

// TestTruncateDate verifies period boundaries.
func TestTruncateDate(t *testing.T) {
	wed := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		bucket string
		want   string
	}{
		{"day", "2026-03-11"},
		{"week", "2026-03-09"},
		{"1 week", "2026-03-09"},
		{"month", "2026-03-01"},
		{"", "2026-03-01"},
	}
	for _, tt := range tests {
		if got := TruncateDate(wed, tt.bucket).Format(time.DateOnly); got != tt.want {
			t.Errorf("TruncateDate(%q) = %s, want %s", tt.bucket, got, tt.want)
		}
	}
	sun := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if got := TruncateDate(sun, "week").Format(time.DateOnly); got != "2026-03-09" {
		t.Errorf("sunday week = %s, want 2026-03-09", got)
	}
}

// TestMemorySubmissionLogs verifies newest-first ordering and the limit.
func TestMemorySubmissionLogs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, status := range []string{SubmissionSuccess, SubmissionDenied, SubmissionInvalid} {
		if _, err := m.InsertSubmissionLog(ctx, SubmissionLog{UserID: 1, Status: status}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	m.InsertSubmissionLog(ctx, SubmissionLog{UserID: 2, Status: SubmissionError})

	logs, err := m.QuerySubmissionLogs(ctx, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].Status != SubmissionInvalid || logs[1].Status != SubmissionDenied {
		t.Errorf("statuses = %s,%s, want invalid,denied", logs[0].Status, logs[1].Status)
	}
}

// TestMemoryDisciplines verifies catalog lookups.
func TestMemoryDisciplines(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Discipline{Name: "swim", Category: "endurance", Enabled: true},
		Discipline{Name: "polo", Category: "team", Enabled: false})

	if ok, _ := m.IsDisciplineKnown(ctx, "swim"); !ok {
		t.Error("swim: known = false, want true")
	}
	if ok, _ := m.IsDisciplineKnown(ctx, "polo"); ok {
		t.Error("disabled polo: known = true, want false")
	}
	if ok, _ := m.IsDisciplineKnown(ctx, "curling"); ok {
		t.Error("curling: known = true, want false")
	}
	all, _ := m.GetDisciplines(ctx)
	if len(all) != 2 || all[0].Name != "swim" {
		t.Errorf("catalog = %+v, want swim first", all)
	}
}
