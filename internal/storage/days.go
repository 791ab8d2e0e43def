package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WorkoutPlan is a workout with its derived discipline set.
type WorkoutPlan struct {
	models.Workout
	Disciplines models.DisciplineSet `json:"disciplineSet"`
}

// DayPlan is a day with its workouts, moveframes and discipline sets.
type DayPlan struct {
	ID          uuid.UUID            `json:"id"`
	Date        string               `json:"date"`
	Disciplines models.DisciplineSet `json:"disciplineSet"`
	Workouts    []WorkoutPlan        `json:"workouts"`
}

// NewDayPlan derives the discipline sets of a loaded day.
func NewDayPlan(day *models.Day) *DayPlan {
	plan := &DayPlan{
		ID:          day.ID,
		Date:        day.Date.Format(time.DateOnly),
		Disciplines: day.DisciplineSet(),
		Workouts:    make([]WorkoutPlan, 0, len(day.Workouts)),
	}
	for _, w := range day.Workouts {
		plan.Workouts = append(plan.Workouts, WorkoutPlan{Workout: w, Disciplines: w.DisciplineSet()})
	}
	return plan
}

// EnsureWorkout returns the workout in the given session slot of the user's
// day, creating the day and workout when missing. created reports whether a
// new workout row was inserted.
func (db *DB) EnsureWorkout(ctx context.Context, userID int, date time.Time, sessionIndex int) (*models.Workout, bool, error) {
	if !models.ValidSessionIndex(sessionIndex) {
		return nil, false, fmt.Errorf("%w: got %d", ErrInvalidSession, sessionIndex)
	}

	var w models.Workout
	var created bool
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var dayID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO days (id, user_id, date) VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, date) DO UPDATE SET date = EXCLUDED.date
			 RETURNING id`,
			uuid.New(), userID, date).Scan(&dayID)
		if err != nil {
			return fmt.Errorf("upserting day: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO workouts (id, day_id, session_index) VALUES ($1, $2, $3)
			 ON CONFLICT (day_id, session_index) DO NOTHING`,
			uuid.New(), dayID, sessionIndex)
		if err != nil {
			return fmt.Errorf("inserting workout: %w", err)
		}
		created = tag.RowsAffected() > 0

		err = tx.QueryRow(ctx,
			`SELECT id, day_id, session_index FROM workouts WHERE day_id = $1 AND session_index = $2`,
			dayID, sessionIndex).Scan(&w.ID, &w.OwnerDayID, &w.SessionIndex)
		if err != nil {
			return fmt.Errorf("reading workout: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	w.Moveframes = []models.Moveframe{}
	return &w, created, nil
}

// GetDayPlan loads a user's day with all workouts, moveframes and movelaps.
func (db *DB) GetDayPlan(ctx context.Context, userID int, date time.Time) (*DayPlan, error) {
	day := models.Day{Date: date}
	err := db.Pool.QueryRow(ctx,
		`SELECT id FROM days WHERE user_id = $1 AND date = $2`,
		userID, date).Scan(&day.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying day: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT id, day_id, session_index FROM workouts WHERE day_id = $1 ORDER BY session_index`,
		day.ID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	for rows.Next() {
		var w models.Workout
		if err := rows.Scan(&w.ID, &w.OwnerDayID, &w.SessionIndex); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning workout: %w", err)
		}
		day.Workouts = append(day.Workouts, w)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range day.Workouts {
		mfs, err := db.queryMoveframes(ctx, db.Pool, day.Workouts[i].ID)
		if err != nil {
			return nil, err
		}
		day.Workouts[i].Moveframes = mfs
	}
	return NewDayPlan(&day), nil
}
