package mcp

import (
	"context"
	"time"

	"github.com/claude/trainplan/internal/storage"
)

// DataSource abstracts the data layer for MCP tools. *storage.DB and
// *storage.Memory (local) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	GetDisciplines(ctx context.Context) ([]storage.Discipline, error)
	GetDayPlan(ctx context.Context, userID int, date time.Time) (*storage.DayPlan, error)
	GetTrainingVolume(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.VolumePeriod, error)
	GetPlanStats(ctx context.Context, userID int) (*storage.PlanStats, error)
}

// Compile-time checks.
var (
	_ DataSource = (*storage.DB)(nil)
	_ DataSource = (*storage.Memory)(nil)
)
