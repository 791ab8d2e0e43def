package storage

import (
	"context"
	"fmt"
	"time"
)

// PlanStats holds aggregate statistics about a user's stored plan.
type PlanStats struct {
	TotalDays       int64            `json:"total_days"`
	TotalWorkouts   int64            `json:"total_workouts"`
	TotalMoveframes int64            `json:"total_moveframes"`
	TotalMovelaps   int64            `json:"total_movelaps"`
	EarliestDay     *time.Time       `json:"earliest_day"`
	LatestDay       *time.Time       `json:"latest_day"`
	ByDiscipline    []DisciplineStat `json:"by_discipline"`
}

// DisciplineStat holds totals for a single discipline.
type DisciplineStat struct {
	Discipline    string  `json:"discipline"`
	Moveframes    int64   `json:"moveframes"`
	Movelaps      int64   `json:"movelaps"`
	TotalDistance float64 `json:"total_distance"`
}

// GetPlanStats returns aggregate statistics for a user's plan.
func (db *DB) GetPlanStats(ctx context.Context, userID int) (*PlanStats, error) {
	stats := &PlanStats{ByDiscipline: []DisciplineStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(date), MAX(date) FROM days WHERE user_id = $1`, userID,
	).Scan(&stats.TotalDays, &stats.EarliestDay, &stats.LatestDay)
	if err != nil {
		return nil, fmt.Errorf("counting days: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workouts w JOIN days d ON d.id = w.day_id WHERE d.user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	// Moveframes and movelaps by discipline
	rows, err := db.Pool.Query(ctx,
		`SELECT m.discipline,
		        COUNT(DISTINCT m.id),
		        COUNT(l.moveframe_id),
		        COALESCE(SUM(l.distance), 0)
		 FROM moveframes m
		 JOIN workouts w ON w.id = m.workout_id
		 JOIN days d ON d.id = w.day_id
		 LEFT JOIN movelaps l ON l.moveframe_id = m.id
		 WHERE d.user_id = $1
		 GROUP BY m.discipline
		 ORDER BY COUNT(DISTINCT m.id) DESC, m.discipline`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying disciplines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s DisciplineStat
		if err := rows.Scan(&s.Discipline, &s.Moveframes, &s.Movelaps, &s.TotalDistance); err != nil {
			return nil, fmt.Errorf("scanning discipline stat: %w", err)
		}
		stats.TotalMoveframes += s.Moveframes
		stats.TotalMovelaps += s.Movelaps
		stats.ByDiscipline = append(stats.ByDiscipline, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
