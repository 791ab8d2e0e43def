package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/planner"
	"github.com/claude/trainplan/internal/storage"
	"github.com/google/uuid"
)

// ErrUnknownDiscipline marks a discipline tag missing from the catalog.
var ErrUnknownDiscipline = errors.New("unknown discipline")

// CreateInput is the caller-supplied part of a new moveframe.
type CreateInput struct {
	Discipline  string                   `json:"discipline"`
	Kind        models.Kind              `json:"kind,omitempty"`
	Sequences   []models.Sequence        `json:"sequences,omitempty"`
	Annotations models.GlobalAnnotations `json:"annotations"`
	Content     string                   `json:"content,omitempty"`
}

func (in CreateInput) kind() models.Kind {
	if in.Kind == "" {
		return models.KindStandard
	}
	return in.Kind
}

// PreviewInput is a CreateInput evaluated against caller-supplied state
// instead of stored state.
type PreviewInput struct {
	CreateInput
	DaySet          models.DisciplineSet `json:"daySet"`
	WorkoutSet      models.DisciplineSet `json:"workoutSet"`
	ExistingLetters []string             `json:"existingLetters"`
}

// Result holds the outcome of a create call.
type Result struct {
	Moveframe *models.Moveframe `json:"moveframe"`
	Replayed  bool              `json:"replayed"`
}

// Provider assembles moveframes against stored plan state.
type Provider struct {
	store Store
	opts  planner.Options
	log   *slog.Logger
}

// NewProvider creates a new Provider.
func NewProvider(store Store, opts planner.Options, log *slog.Logger) *Provider {
	return &Provider{store: store, opts: opts, log: log}
}

// Options returns the planner options the provider assembles with.
func (p *Provider) Options() planner.Options {
	return p.opts
}

// CreateMoveframe assembles a moveframe into the given workout. The snapshot
// read, assembly and insert run as one unit in the store; a repeated
// non-empty key returns the first result with Replayed set.
func (p *Provider) CreateMoveframe(ctx context.Context, userID int, workoutID uuid.UUID, key string, in CreateInput) (*Result, error) {
	start := time.Now()
	entry := storage.SubmissionLog{UserID: userID, WorkoutID: &workoutID}

	result, err := p.create(ctx, userID, workoutID, key, in)
	if result != nil {
		entry.MoveframeID = &result.Moveframe.ID
		entry.Movelaps = len(result.Moveframe.Movelaps)
		if result.Replayed {
			reason := "replayed"
			entry.Reason = &reason
		}
	}
	p.record(ctx, entry, start, err)

	if err != nil {
		p.log.Info("moveframe rejected", "workout", workoutID, "kind", ErrorKind(err), "error", err)
		return nil, err
	}
	p.log.Info("moveframe created",
		"workout", workoutID, "moveframe", result.Moveframe.ID,
		"letter", result.Moveframe.Letter, "movelaps", len(result.Moveframe.Movelaps),
		"replayed", result.Replayed)
	return result, nil
}

func (p *Provider) create(ctx context.Context, userID int, workoutID uuid.UUID, key string, in CreateInput) (*Result, error) {
	if err := p.checkCatalog(ctx, in.Discipline); err != nil {
		return nil, err
	}
	mf, replayed, err := p.store.CreateMoveframe(ctx, userID, workoutID, key, func(s storage.Snapshot) (*models.Moveframe, error) {
		return p.opts.Assemble(planner.Request{
			MoveframeID:     uuid.New(),
			WorkoutID:       s.WorkoutID,
			DaySet:          s.DaySet,
			WorkoutSet:      s.WorkoutSet,
			ExistingLetters: s.Letters,
			Discipline:      in.Discipline,
			Kind:            in.kind(),
			Sequences:       in.Sequences,
			Annotations:     in.Annotations,
			Content:         in.Content,
		})
	})
	if err != nil {
		return nil, err
	}
	return &Result{Moveframe: mf, Replayed: replayed}, nil
}

// Regenerate replaces a moveframe's sequences and movelap batch. Letter,
// discipline and annotations are kept.
func (p *Provider) Regenerate(ctx context.Context, userID int, id uuid.UUID, sequences []models.Sequence) (*models.Moveframe, error) {
	start := time.Now()
	mf, err := p.store.ReplaceMovelaps(ctx, userID, id, func(mf *models.Moveframe) error {
		return p.opts.Fill(mf, sequences)
	})

	entry := storage.SubmissionLog{UserID: userID, MoveframeID: &id}
	if mf != nil {
		entry.WorkoutID = &mf.OwnerWorkoutID
		entry.Movelaps = len(mf.Movelaps)
		reason := "regenerated"
		entry.Reason = &reason
	}
	p.record(ctx, entry, start, err)

	if err != nil {
		return nil, err
	}
	p.log.Info("moveframe regenerated", "moveframe", id, "movelaps", len(mf.Movelaps))
	return mf, nil
}

// Delete removes a moveframe and its movelaps.
func (p *Provider) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	if err := p.store.DeleteMoveframe(ctx, userID, id); err != nil {
		return err
	}
	p.log.Info("moveframe deleted", "moveframe", id)
	return nil
}

// EnsureWorkout returns the workout in a session slot, creating it if needed.
func (p *Provider) EnsureWorkout(ctx context.Context, userID int, date time.Time, sessionIndex int) (*models.Workout, bool, error) {
	w, created, err := p.store.EnsureWorkout(ctx, userID, date, sessionIndex)
	if err != nil {
		return nil, false, err
	}
	if created {
		p.log.Info("workout created", "date", date.Format(time.DateOnly), "session", sessionIndex, "workout", w.ID)
	}
	return w, created, nil
}

// Preview assembles with the provider's options without touching the store.
func (p *Provider) Preview(in PreviewInput) (*models.Moveframe, error) {
	return Preview(p.opts, in)
}

// Preview assembles in against caller-supplied state. The moveframe id and
// owner are zero.
func Preview(opts planner.Options, in PreviewInput) (*models.Moveframe, error) {
	return opts.Assemble(planner.Request{
		DaySet:          in.DaySet,
		WorkoutSet:      in.WorkoutSet,
		ExistingLetters: in.ExistingLetters,
		Discipline:      in.Discipline,
		Kind:            in.kind(),
		Sequences:       in.Sequences,
		Annotations:     in.Annotations,
		Content:         in.Content,
	})
}

// CheckDiscipline runs the allocation validator on a raw tag.
func CheckDiscipline(discipline string, daySet, workoutSet models.DisciplineSet) (planner.Decision, error) {
	return planner.Check(discipline, daySet, workoutSet)
}

// checkCatalog rejects tags missing from the disciplines catalog. Empty tags
// pass through so the core reports them.
func (p *Provider) checkCatalog(ctx context.Context, discipline string) error {
	d := models.NormalizeDiscipline(discipline)
	if d == "" {
		return nil
	}
	known, err := p.store.IsDisciplineKnown(ctx, string(d))
	if err != nil {
		return err
	}
	if !known {
		return &planner.SequenceError{Index: -1, Field: "discipline", Err: fmt.Errorf("%w %q", ErrUnknownDiscipline, d)}
	}
	return nil
}

// record writes a submission log entry. Failures are logged, never returned.
func (p *Provider) record(ctx context.Context, entry storage.SubmissionLog, start time.Time, err error) {
	ms := int(time.Since(start).Milliseconds())
	entry.DurationMs = &ms
	entry.Status = submissionStatus(err)
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
		if kind := ErrorKind(err); kind != "" {
			entry.ErrorKind = &kind
		}
		var de *planner.DisciplineError
		if errors.As(err, &de) {
			reason := string(de.Decision.Reason)
			entry.Reason = &reason
		}
	}
	if _, logErr := p.store.InsertSubmissionLog(ctx, entry); logErr != nil {
		p.log.Warn("failed to write submission log", "error", logErr)
	}
}

func submissionStatus(err error) string {
	switch {
	case err == nil:
		return storage.SubmissionSuccess
	case errors.Is(err, planner.ErrDisciplineNotAllowed), errors.Is(err, planner.ErrNoIdentifierAvailable):
		return storage.SubmissionDenied
	case errors.Is(err, planner.ErrInvalidSequence), errors.Is(err, storage.ErrNotFound):
		return storage.SubmissionInvalid
	default:
		return storage.SubmissionError
	}
}

// ErrorKind extends planner.ErrorKind with the calling layer's failures.
// Returns "" for internal errors.
func ErrorKind(err error) string {
	if kind := planner.ErrorKind(err); kind != "" {
		return kind
	}
	if errors.Is(err, storage.ErrNotFound) {
		return "not_found"
	}
	return ""
}
