package storage

import (
	"context"
	"fmt"
	"time"
)

// DisciplineVolume is the planned load of one discipline within a period.
type DisciplineVolume struct {
	Discipline string  `json:"discipline"`
	Moveframes int     `json:"moveframes"`
	Movelaps   int     `json:"movelaps"`
	Distance   float64 `json:"distance"`
}

// VolumePeriod holds per-discipline volume for one time bucket.
type VolumePeriod struct {
	Period      string             `json:"period"`
	Disciplines []DisciplineVolume `json:"disciplines"`
}

// GetTrainingVolume returns planned distance per discipline per period for
// days in [start, end). Periods are ordered newest first.
func (db *DB) GetTrainingVolume(ctx context.Context, userID int, start, end time.Time, bucket string) ([]VolumePeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, d.date)::date AS period,
		        m.discipline,
		        COUNT(DISTINCT m.id)::int,
		        COUNT(l.moveframe_id)::int,
		        COALESCE(SUM(l.distance), 0)
		 FROM days d
		 JOIN workouts w ON w.day_id = d.id
		 JOIN moveframes m ON m.workout_id = w.id
		 LEFT JOIN movelaps l ON l.moveframe_id = m.id
		 WHERE d.user_id = $2 AND d.date >= $3 AND d.date < $4
		 GROUP BY period, m.discipline
		 ORDER BY period DESC, m.discipline`,
		truncInterval(bucket), userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying training volume: %w", err)
	}
	defer rows.Close()

	periodMap := make(map[string]*VolumePeriod)
	var periodOrder []string

	for rows.Next() {
		var periodTime time.Time
		var v DisciplineVolume
		if err := rows.Scan(&periodTime, &v.Discipline, &v.Moveframes, &v.Movelaps, &v.Distance); err != nil {
			return nil, fmt.Errorf("scanning training volume: %w", err)
		}
		key := periodTime.Format(time.DateOnly)
		if _, ok := periodMap[key]; !ok {
			periodMap[key] = &VolumePeriod{Period: key}
			periodOrder = append(periodOrder, key)
		}
		periodMap[key].Disciplines = append(periodMap[key].Disciplines, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]VolumePeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 week" to the field name
// that date_trunc expects.
func truncInterval(bucket string) string {
	switch bucket {
	case "day", "1 day":
		return "day"
	case "week", "1 week":
		return "week"
	default:
		return "month"
	}
}

// TruncateDate mirrors date_trunc for the in-memory store. Weeks start on Monday.
func TruncateDate(t time.Time, bucket string) time.Time {
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch truncInterval(bucket) {
	case "day":
		return t
	case "week":
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}
