package schedule

import (
	"context"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/storage"
	"github.com/google/uuid"
)

// Store is the persistence the Provider and HTTP server need.
// Satisfied by *storage.DB and *storage.Memory.
type Store interface {
	GetDisciplines(ctx context.Context) ([]storage.Discipline, error)
	IsDisciplineKnown(ctx context.Context, name string) (bool, error)
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)

	EnsureWorkout(ctx context.Context, userID int, date time.Time, sessionIndex int) (*models.Workout, bool, error)
	GetDayPlan(ctx context.Context, userID int, date time.Time) (*storage.DayPlan, error)

	CreateMoveframe(ctx context.Context, userID int, workoutID uuid.UUID, key string, build storage.AssembleFunc) (*models.Moveframe, bool, error)
	GetMoveframe(ctx context.Context, userID int, id uuid.UUID) (*models.Moveframe, error)
	ReplaceMovelaps(ctx context.Context, userID int, id uuid.UUID, rebuild storage.RebuildFunc) (*models.Moveframe, error)
	DeleteMoveframe(ctx context.Context, userID int, id uuid.UUID) error

	InsertSubmissionLog(ctx context.Context, log storage.SubmissionLog) (int64, error)
	QuerySubmissionLogs(ctx context.Context, userID, limit int) ([]storage.SubmissionLog, error)
	GetPlanStats(ctx context.Context, userID int) (*storage.PlanStats, error)
	GetTrainingVolume(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.VolumePeriod, error)
}

var (
	_ Store = (*storage.DB)(nil)
	_ Store = (*storage.Memory)(nil)
)
