package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Submission statuses.
const (
	SubmissionSuccess = "success"
	SubmissionDenied  = "denied"
	SubmissionInvalid = "invalid"
	SubmissionError   = "error"
)

// SubmissionLog records the outcome of one moveframe create or regenerate call.
type SubmissionLog struct {
	ID           int64      `json:"id"`
	UserID       int        `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	WorkoutID    *uuid.UUID `json:"workout_id"`
	MoveframeID  *uuid.UUID `json:"moveframe_id"`
	Status       string     `json:"status"`
	ErrorKind    *string    `json:"error_kind"`
	Reason       *string    `json:"reason"`
	Movelaps     int        `json:"movelaps"`
	DurationMs   *int       `json:"duration_ms"`
	ErrorMessage *string    `json:"error_message"`
}

// InsertSubmissionLog creates a new submission log entry and returns its ID.
func (db *DB) InsertSubmissionLog(ctx context.Context, log SubmissionLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO submission_logs (user_id, workout_id, moveframe_id, status, error_kind,
		 reason, movelaps, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 RETURNING id`,
		log.UserID, log.WorkoutID, log.MoveframeID, log.Status, log.ErrorKind,
		log.Reason, log.Movelaps, log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting submission log: %w", err)
	}
	return id, nil
}

// QuerySubmissionLogs returns the most recent submission logs for a user.
func (db *DB) QuerySubmissionLogs(ctx context.Context, userID, limit int) ([]SubmissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, workout_id, moveframe_id, status, error_kind,
		 reason, movelaps, duration_ms, error_message
		 FROM submission_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying submission logs: %w", err)
	}
	defer rows.Close()

	result := []SubmissionLog{}
	for rows.Next() {
		var l SubmissionLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.CreatedAt, &l.WorkoutID, &l.MoveframeID,
			&l.Status, &l.ErrorKind, &l.Reason, &l.Movelaps, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning submission log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
