package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Snapshot is the state a new moveframe is validated against. It is read
// while the day is locked, so it stays valid until the transaction commits.
type Snapshot struct {
	DayID      uuid.UUID
	WorkoutID  uuid.UUID
	DaySet     models.DisciplineSet
	WorkoutSet models.DisciplineSet
	Letters    []string
}

// AssembleFunc builds the moveframe to persist from a snapshot.
type AssembleFunc func(Snapshot) (*models.Moveframe, error)

// RebuildFunc replaces a moveframe's movelap batch in place.
type RebuildFunc func(*models.Moveframe) error

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// errKeyClaimed aborts a create whose idempotency key was committed by a
// concurrent create holding a different day lock.
var errKeyClaimed = errors.New("idempotency key claimed concurrently")

// CreateMoveframe locks the workout's day, reads a snapshot, calls build and
// persists the result together with its movelaps in one transaction.
// With a non-empty key, a repeated call returns the moveframe created by the
// first one and replayed=true.
func (db *DB) CreateMoveframe(ctx context.Context, userID int, workoutID uuid.UUID, key string, build AssembleFunc) (mf *models.Moveframe, replayed bool, err error) {
	err = db.createMoveframe(ctx, userID, workoutID, key, build, &mf, &replayed)
	if errors.Is(err, errKeyClaimed) {
		// Our insert was rolled back; the winner's row is committed now.
		id, found, lookupErr := lookupKey(ctx, db.Pool, userID, key)
		switch {
		case lookupErr != nil:
			return nil, false, lookupErr
		case !found:
			return nil, false, fmt.Errorf("idempotency key %q vanished after conflict", key)
		}
		mf, err = db.getMoveframe(ctx, db.Pool, userID, id)
		if err != nil {
			return nil, false, err
		}
		return mf, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return mf, replayed, nil
}

func (db *DB) createMoveframe(ctx context.Context, userID int, workoutID uuid.UUID, key string, build AssembleFunc, out **models.Moveframe, replayed *bool) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		var dayID uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT w.day_id FROM workouts w JOIN days d ON d.id = w.day_id
			 WHERE w.id = $1 AND d.user_id = $2
			 FOR UPDATE OF d`,
			workoutID, userID).Scan(&dayID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("locking day: %w", err)
		}

		if key != "" {
			existing, found, err := lookupKey(ctx, tx, userID, key)
			if err != nil {
				return err
			}
			if found {
				*out, err = db.getMoveframe(ctx, tx, userID, existing)
				*replayed = true
				return err
			}
		}

		snap, err := loadSnapshot(ctx, tx, dayID, workoutID)
		if err != nil {
			return err
		}
		mf, err := build(snap)
		if err != nil {
			return err
		}

		if err := insertMoveframe(ctx, tx, mf); err != nil {
			return err
		}
		if key != "" {
			if _, err := tx.Exec(ctx,
				`INSERT INTO idempotency_keys (user_id, key, moveframe_id) VALUES ($1, $2, $3)`,
				userID, key, mf.ID); err != nil {
				if isUniqueViolation(err) {
					return errKeyClaimed
				}
				return fmt.Errorf("recording idempotency key: %w", err)
			}
		}
		*out = mf
		return nil
	})
}

// lookupKey returns the moveframe recorded under a user's idempotency key.
func lookupKey(ctx context.Context, q querier, userID int, key string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx,
		`SELECT moveframe_id FROM idempotency_keys WHERE user_id = $1 AND key = $2`,
		userID, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("checking idempotency key: %w", err)
	}
	return id, true, nil
}

// isUniqueViolation reports a PostgreSQL unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func loadSnapshot(ctx context.Context, q querier, dayID, workoutID uuid.UUID) (Snapshot, error) {
	snap := Snapshot{
		DayID:      dayID,
		WorkoutID:  workoutID,
		DaySet:     models.NewDisciplineSet(),
		WorkoutSet: models.NewDisciplineSet(),
	}
	rows, err := q.Query(ctx,
		`SELECT m.workout_id, m.discipline, m.letter
		 FROM moveframes m JOIN workouts w ON w.id = m.workout_id
		 WHERE w.day_id = $1`,
		dayID)
	if err != nil {
		return snap, fmt.Errorf("querying day moveframes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var wid uuid.UUID
		var discipline, letter string
		if err := rows.Scan(&wid, &discipline, &letter); err != nil {
			return snap, fmt.Errorf("scanning snapshot row: %w", err)
		}
		d := models.Discipline(discipline)
		snap.DaySet.Add(d)
		if wid == workoutID {
			snap.WorkoutSet.Add(d)
			snap.Letters = append(snap.Letters, letter)
		}
	}
	return snap, rows.Err()
}

func insertMoveframe(ctx context.Context, q querier, mf *models.Moveframe) error {
	seqs, err := json.Marshal(mf.Sequences)
	if err != nil {
		return fmt.Errorf("encoding sequences: %w", err)
	}
	ann, err := json.Marshal(mf.Annotations)
	if err != nil {
		return fmt.Errorf("encoding annotations: %w", err)
	}

	err = q.QueryRow(ctx,
		`INSERT INTO moveframes (id, workout_id, letter, discipline, kind, summary, sequences, annotations)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at`,
		mf.ID, mf.OwnerWorkoutID, mf.Letter, string(mf.Discipline), string(mf.Kind),
		mf.Summary, seqs, ann).Scan(&mf.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting moveframe: %w", err)
	}
	_, err = insertMovelaps(ctx, q, mf.Movelaps)
	return err
}

// insertMovelaps batch-inserts a movelap batch. Returns count inserted.
func insertMovelaps(ctx context.Context, q querier, laps []models.Movelap) (int64, error) {
	if len(laps) == 0 {
		return 0, nil
	}

	query := `INSERT INTO movelaps (moveframe_id, sequence_position, distance, pace_label, style,
		rest_after, pace_target, total_time_target, alarm_offset, alarm_sound, note) VALUES `
	args := make([]any, 0, len(laps)*11)
	valueStrings := make([]string, 0, len(laps))

	for i, l := range laps {
		base := i * 11
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args, l.OwnerMoveframeID, l.SequencePosition, l.Distance, l.PaceLabel, l.Style,
			l.RestAfter, l.PaceTarget, l.TotalTimeTarget, l.AlarmOffset, string(l.AlarmSound), l.Note)
	}

	query += strings.Join(valueStrings, ",")

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting movelaps: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetMoveframe retrieves a single moveframe with its movelaps.
func (db *DB) GetMoveframe(ctx context.Context, userID int, id uuid.UUID) (*models.Moveframe, error) {
	return db.getMoveframe(ctx, db.Pool, userID, id)
}

const moveframeColumns = `m.id, m.workout_id, m.letter, m.discipline, m.kind, m.summary,
	m.sequences, m.annotations, m.created_at`

func (db *DB) getMoveframe(ctx context.Context, q querier, userID int, id uuid.UUID) (*models.Moveframe, error) {
	row := q.QueryRow(ctx,
		`SELECT `+moveframeColumns+`
		 FROM moveframes m
		 JOIN workouts w ON w.id = m.workout_id
		 JOIN days d ON d.id = w.day_id
		 WHERE m.id = $1 AND d.user_id = $2`,
		id, userID)
	mf, err := scanMoveframe(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	laps, err := queryMovelaps(ctx, q, []uuid.UUID{mf.ID})
	if err != nil {
		return nil, err
	}
	mf.Movelaps = laps[mf.ID]
	if mf.Movelaps == nil {
		mf.Movelaps = []models.Movelap{}
	}
	return mf, nil
}

// queryMoveframes loads a workout's moveframes ordered by letter.
func (db *DB) queryMoveframes(ctx context.Context, q querier, workoutID uuid.UUID) ([]models.Moveframe, error) {
	rows, err := q.Query(ctx,
		`SELECT `+moveframeColumns+` FROM moveframes m WHERE m.workout_id = $1 ORDER BY m.letter`,
		workoutID)
	if err != nil {
		return nil, fmt.Errorf("querying moveframes: %w", err)
	}
	defer rows.Close()

	result := []models.Moveframe{}
	var ids []uuid.UUID
	for rows.Next() {
		mf, err := scanMoveframe(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *mf)
		ids = append(ids, mf.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	laps, err := queryMovelaps(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Movelaps = laps[result[i].ID]
		if result[i].Movelaps == nil {
			result[i].Movelaps = []models.Movelap{}
		}
	}
	return result, nil
}

func scanMoveframe(row pgx.Row) (*models.Moveframe, error) {
	var mf models.Moveframe
	var discipline, kind string
	var seqs, ann []byte
	if err := row.Scan(&mf.ID, &mf.OwnerWorkoutID, &mf.Letter, &discipline, &kind, &mf.Summary,
		&seqs, &ann, &mf.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning moveframe: %w", err)
	}
	mf.Discipline = models.Discipline(discipline)
	mf.Kind = models.Kind(kind)
	if err := json.Unmarshal(seqs, &mf.Sequences); err != nil {
		return nil, fmt.Errorf("decoding sequences of %s: %w", mf.ID, err)
	}
	if err := json.Unmarshal(ann, &mf.Annotations); err != nil {
		return nil, fmt.Errorf("decoding annotations of %s: %w", mf.ID, err)
	}
	return &mf, nil
}

func queryMovelaps(ctx context.Context, q querier, ids []uuid.UUID) (map[uuid.UUID][]models.Movelap, error) {
	out := make(map[uuid.UUID][]models.Movelap, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = id.String()
	}
	rows, err := q.Query(ctx,
		`SELECT moveframe_id, sequence_position, distance, pace_label, style, rest_after,
		 pace_target, total_time_target, alarm_offset, alarm_sound, note
		 FROM movelaps
		 WHERE moveframe_id = ANY($1::uuid[])
		 ORDER BY moveframe_id, sequence_position ASC`,
		idStrs)
	if err != nil {
		return nil, fmt.Errorf("querying movelaps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l models.Movelap
		var sound string
		if err := rows.Scan(&l.OwnerMoveframeID, &l.SequencePosition, &l.Distance, &l.PaceLabel, &l.Style,
			&l.RestAfter, &l.PaceTarget, &l.TotalTimeTarget, &l.AlarmOffset, &sound, &l.Note); err != nil {
			return nil, fmt.Errorf("scanning movelap: %w", err)
		}
		l.AlarmSound = models.AlarmSound(sound)
		out[l.OwnerMoveframeID] = append(out[l.OwnerMoveframeID], l)
	}
	return out, rows.Err()
}

// ReplaceMovelaps regenerates a moveframe's movelaps. rebuild receives the
// stored moveframe and must fill in a complete new batch; the old batch is
// deleted and the new one inserted in the same transaction.
func (db *DB) ReplaceMovelaps(ctx context.Context, userID int, id uuid.UUID, rebuild RebuildFunc) (*models.Moveframe, error) {
	var mf *models.Moveframe
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT m.id FROM moveframes m
			 JOIN workouts w ON w.id = m.workout_id
			 JOIN days d ON d.id = w.day_id
			 WHERE m.id = $1 AND d.user_id = $2
			 FOR UPDATE OF m`,
			id, userID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("locking moveframe: %w", err)
		}

		mf, err = db.getMoveframe(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if err := rebuild(mf); err != nil {
			return err
		}

		seqs, err := json.Marshal(mf.Sequences)
		if err != nil {
			return fmt.Errorf("encoding sequences: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE moveframes SET summary = $2, sequences = $3 WHERE id = $1`,
			id, mf.Summary, seqs); err != nil {
			return fmt.Errorf("updating moveframe: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM movelaps WHERE moveframe_id = $1`, id); err != nil {
			return fmt.Errorf("deleting movelaps: %w", err)
		}
		_, err = insertMovelaps(ctx, tx, mf.Movelaps)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mf, nil
}

// DeleteMoveframe removes a moveframe; its movelaps and idempotency keys go
// with it through ON DELETE CASCADE.
func (db *DB) DeleteMoveframe(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM moveframes m
		 USING workouts w, days d
		 WHERE m.id = $1 AND w.id = m.workout_id AND d.id = w.day_id AND d.user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("deleting moveframe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
