package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/trainplan/internal/models"
)

// Stats tracks submission progress.
type Stats struct {
	Days       int
	Workouts   int
	Moveframes int

	Submitted int
	Replayed  int
	Skipped   int
	Rejected  int

	// Rejections lists "date/session/position: reason" for every moveframe
	// the server refused.
	Rejections []string
}

// Uploader submits a plan file to the trainplan server, one moveframe at a
// time and in plan order, so letters are allocated in the order written.
type Uploader struct {
	client *Client
	state  *StateDB
	dryRun bool
	log    *slog.Logger
	stats  Stats
}

// New creates a new Uploader. client may be nil in dry-run mode.
func New(client *Client, state *StateDB, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dryRun: dryRun,
		log:    log,
	}
}

// Run submits every moveframe of the plan that the ledger has not seen.
// Server refusals (4xx) are counted and skipped; transport failures that
// survive the client's retries abort the run.
func (u *Uploader) Run(ctx context.Context, plan *Plan) (*Stats, error) {
	var catalog map[string]bool
	if !u.dryRun {
		var err error
		catalog, err = u.client.FetchDisciplines(ctx)
		if err != nil {
			return &u.stats, fmt.Errorf("fetching disciplines: %w", err)
		}
		u.log.Info("fetched disciplines", "count", len(catalog))
	}

	for _, day := range plan.Days {
		u.stats.Days++
		for _, session := range day.Sessions {
			if err := u.submitSession(ctx, day.Date, session, catalog); err != nil {
				return &u.stats, err
			}
		}
	}
	return &u.stats, nil
}

func (u *Uploader) submitSession(ctx context.Context, date string, session PlanSession, catalog map[string]bool) error {
	type pending struct {
		position int
		key      string
		mf       PlanMoveframe
	}

	var todo []pending
	for i, mf := range session.Moveframes {
		u.stats.Moveframes++
		key, err := mf.Key(date, session.Index, i+1)
		if err != nil {
			return err
		}
		done, err := u.state.IsSubmitted(key)
		if err != nil {
			return fmt.Errorf("checking ledger: %w", err)
		}
		if done {
			u.stats.Skipped++
			continue
		}
		todo = append(todo, pending{position: i + 1, key: key, mf: mf})
	}
	if len(todo) == 0 {
		return nil
	}

	if u.dryRun {
		for _, p := range todo {
			u.log.Info("would submit", "date", date, "session", session.Index,
				"position", p.position, "discipline", p.mf.Discipline, "key", p.key)
		}
		return nil
	}

	workoutID, err := u.client.EnsureWorkout(ctx, date, session.Index)
	if err != nil {
		return err
	}
	u.stats.Workouts++

	for _, p := range todo {
		where := fmt.Sprintf("%s/%d/%d", date, session.Index, p.position)

		disc := string(models.NormalizeDiscipline(p.mf.Discipline))
		if !catalog[disc] {
			u.reject(where, fmt.Sprintf("unknown discipline %q", disc))
			continue
		}

		res, err := u.client.SubmitMoveframe(ctx, workoutID, p.key, p.mf)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !apiErr.Retryable() {
				u.reject(where, apiErr.Error())
				continue
			}
			return fmt.Errorf("submitting %s: %w", where, err)
		}
		if res.Moveframe == nil {
			return fmt.Errorf("submitting %s: empty response", where)
		}

		if err := u.state.MarkSubmitted(p.key, res.Moveframe.ID, res.Moveframe.Letter); err != nil {
			return fmt.Errorf("recording %s: %w", where, err)
		}
		if res.Replayed {
			u.stats.Replayed++
		} else {
			u.stats.Submitted++
		}
		u.log.Info("submitted moveframe", "at", where, "letter", res.Moveframe.Letter,
			"id", res.Moveframe.ID, "replayed", res.Replayed)
	}
	return nil
}

func (u *Uploader) reject(where, reason string) {
	u.stats.Rejected++
	u.stats.Rejections = append(u.stats.Rejections, where+": "+reason)
	u.log.Warn("moveframe rejected", "at", where, "reason", reason)
}
