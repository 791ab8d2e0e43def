package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/google/uuid"
)

// DefaultDisciplines is the catalog seeded by the initial migration.
var DefaultDisciplines = []Discipline{
	{Name: "bike", Category: "endurance", Enabled: true},
	{Name: "rowing", Category: "endurance", Enabled: true},
	{Name: "run", Category: "endurance", Enabled: true},
	{Name: "ski", Category: "endurance", Enabled: true},
	{Name: "swim", Category: "endurance", Enabled: true},
	{Name: "stretching", Category: "mobility", Enabled: true},
	{Name: "yoga", Category: "mobility", Enabled: true},
	{Name: "gym", Category: "strength", Enabled: true},
}

type memDay struct {
	id     uuid.UUID
	userID int
	date   time.Time
}

type memWorkout struct {
	id      uuid.UUID
	dayID   uuid.UUID
	session int
}

type idemKey struct {
	userID int
	key    string
}

// Memory is an in-process store with the same behavior as DB. One mutex
// guards everything, so each call sees and writes a consistent state.
// Used by tests and by the server's -memory mode.
type Memory struct {
	mu          sync.Mutex
	disciplines []Discipline
	users       map[string]int
	days        map[string]*memDay
	workouts    map[uuid.UUID]*memWorkout
	moveframes  map[uuid.UUID]*models.Moveframe
	keys        map[idemKey]uuid.UUID
	logs        []SubmissionLog
	nextLogID   int64
}

// NewMemory returns an empty store seeded with the given catalog, or
// DefaultDisciplines when none is passed, and the "local" user as id 1.
func NewMemory(disciplines ...Discipline) *Memory {
	if len(disciplines) == 0 {
		disciplines = DefaultDisciplines
	}
	return &Memory{
		disciplines: append([]Discipline(nil), disciplines...),
		users:       map[string]int{"local": 1},
		days:        make(map[string]*memDay),
		workouts:    make(map[uuid.UUID]*memWorkout),
		moveframes:  make(map[uuid.UUID]*models.Moveframe),
		keys:        make(map[idemKey]uuid.UUID),
	}
}

func dayKey(userID int, date time.Time) string {
	return fmt.Sprintf("%d/%s", userID, date.Format(time.DateOnly))
}

// GetDisciplines returns the catalog ordered by category and name.
func (m *Memory) GetDisciplines(_ context.Context) ([]Discipline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]Discipline(nil), m.disciplines...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// IsDisciplineKnown checks if a discipline is in the catalog and enabled.
func (m *Memory) IsDisciplineKnown(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.disciplines {
		if d.Name == name {
			return d.Enabled, nil
		}
	}
	return false, nil
}

// GetOrCreateUser finds or creates a user by login name.
func (m *Memory) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.users[login]; ok {
		return id, nil
	}
	id := len(m.users) + 1
	m.users[login] = id
	return id, nil
}

// EnsureWorkout returns the workout in the given session slot, creating the
// day and workout when missing.
func (m *Memory) EnsureWorkout(_ context.Context, userID int, date time.Time, sessionIndex int) (*models.Workout, bool, error) {
	if !models.ValidSessionIndex(sessionIndex) {
		return nil, false, fmt.Errorf("%w: got %d", ErrInvalidSession, sessionIndex)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := dayKey(userID, date)
	day, ok := m.days[k]
	if !ok {
		day = &memDay{id: uuid.New(), userID: userID, date: date}
		m.days[k] = day
	}
	for _, w := range m.workouts {
		if w.dayID == day.id && w.session == sessionIndex {
			return &models.Workout{ID: w.id, OwnerDayID: day.id, SessionIndex: w.session, Moveframes: []models.Moveframe{}}, false, nil
		}
	}
	w := &memWorkout{id: uuid.New(), dayID: day.id, session: sessionIndex}
	m.workouts[w.id] = w
	return &models.Workout{ID: w.id, OwnerDayID: day.id, SessionIndex: w.session, Moveframes: []models.Moveframe{}}, true, nil
}

// GetDayPlan loads a user's day with all workouts, moveframes and movelaps.
func (m *Memory) GetDayPlan(_ context.Context, userID int, date time.Time) (*DayPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.days[dayKey(userID, date)]
	if !ok {
		return nil, ErrNotFound
	}
	day := models.Day{ID: d.id, Date: d.date}
	for _, w := range m.workouts {
		if w.dayID != d.id {
			continue
		}
		day.Workouts = append(day.Workouts, models.Workout{
			ID:           w.id,
			OwnerDayID:   d.id,
			SessionIndex: w.session,
			Moveframes:   m.workoutMoveframes(w.id),
		})
	}
	sort.Slice(day.Workouts, func(i, j int) bool {
		return day.Workouts[i].SessionIndex < day.Workouts[j].SessionIndex
	})
	return NewDayPlan(&day), nil
}

// workoutMoveframes returns copies of a workout's moveframes ordered by
// letter. Caller holds m.mu.
func (m *Memory) workoutMoveframes(workoutID uuid.UUID) []models.Moveframe {
	out := []models.Moveframe{}
	for _, mf := range m.moveframes {
		if mf.OwnerWorkoutID == workoutID {
			out = append(out, *cloneMoveframe(mf))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Letter < out[j].Letter })
	return out
}

// ownedWorkout returns the workout and its day when both belong to userID.
// Caller holds m.mu.
func (m *Memory) ownedWorkout(userID int, workoutID uuid.UUID) (*memWorkout, *memDay, bool) {
	w, ok := m.workouts[workoutID]
	if !ok {
		return nil, nil, false
	}
	for _, d := range m.days {
		if d.id == w.dayID {
			return w, d, d.userID == userID
		}
	}
	return nil, nil, false
}

// CreateMoveframe reads a snapshot of the workout's day, calls build and
// stores the result. Behaves like DB.CreateMoveframe, idempotency included.
func (m *Memory) CreateMoveframe(_ context.Context, userID int, workoutID uuid.UUID, key string, build AssembleFunc) (*models.Moveframe, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, day, ok := m.ownedWorkout(userID, workoutID)
	if !ok {
		return nil, false, ErrNotFound
	}
	if key != "" {
		if id, ok := m.keys[idemKey{userID, key}]; ok {
			if mf, ok := m.moveframes[id]; ok {
				return cloneMoveframe(mf), true, nil
			}
		}
	}

	snap := Snapshot{
		DayID:      day.id,
		WorkoutID:  w.id,
		DaySet:     models.NewDisciplineSet(),
		WorkoutSet: models.NewDisciplineSet(),
	}
	for _, mf := range m.moveframes {
		owner := m.workouts[mf.OwnerWorkoutID]
		if owner == nil || owner.dayID != day.id {
			continue
		}
		snap.DaySet.Add(mf.Discipline)
		if owner.id == w.id {
			snap.WorkoutSet.Add(mf.Discipline)
			snap.Letters = append(snap.Letters, mf.Letter)
		}
	}

	mf, err := build(snap)
	if err != nil {
		return nil, false, err
	}
	for _, other := range m.moveframes {
		if other.OwnerWorkoutID == mf.OwnerWorkoutID && other.Letter == mf.Letter {
			return nil, false, fmt.Errorf("inserting moveframe: letter %s already used in workout %s", mf.Letter, mf.OwnerWorkoutID)
		}
	}
	mf.CreatedAt = time.Now().UTC()
	m.moveframes[mf.ID] = cloneMoveframe(mf)
	if key != "" {
		m.keys[idemKey{userID, key}] = mf.ID
	}
	return mf, false, nil
}

// GetMoveframe retrieves a single moveframe with its movelaps.
func (m *Memory) GetMoveframe(_ context.Context, userID int, id uuid.UUID) (*models.Moveframe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mf, ok := m.moveframes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if _, _, owned := m.ownedWorkout(userID, mf.OwnerWorkoutID); !owned {
		return nil, ErrNotFound
	}
	return cloneMoveframe(mf), nil
}

// ReplaceMovelaps regenerates a moveframe's movelaps. The stored copy is
// only replaced when rebuild succeeds.
func (m *Memory) ReplaceMovelaps(_ context.Context, userID int, id uuid.UUID, rebuild RebuildFunc) (*models.Moveframe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.moveframes[id]
	if !ok {
		return nil, ErrNotFound
	}
	if _, _, owned := m.ownedWorkout(userID, stored.OwnerWorkoutID); !owned {
		return nil, ErrNotFound
	}
	mf := cloneMoveframe(stored)
	if err := rebuild(mf); err != nil {
		return nil, err
	}
	m.moveframes[id] = cloneMoveframe(mf)
	return mf, nil
}

// DeleteMoveframe removes a moveframe together with its movelaps and
// idempotency keys.
func (m *Memory) DeleteMoveframe(_ context.Context, userID int, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mf, ok := m.moveframes[id]
	if !ok {
		return ErrNotFound
	}
	if _, _, owned := m.ownedWorkout(userID, mf.OwnerWorkoutID); !owned {
		return ErrNotFound
	}
	delete(m.moveframes, id)
	for k, v := range m.keys {
		if v == id {
			delete(m.keys, k)
		}
	}
	return nil
}

// InsertSubmissionLog appends a submission log entry and returns its ID.
func (m *Memory) InsertSubmissionLog(_ context.Context, log SubmissionLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLogID++
	log.ID = m.nextLogID
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	m.logs = append(m.logs, log)
	return log.ID, nil
}

// QuerySubmissionLogs returns the most recent submission logs for a user.
func (m *Memory) QuerySubmissionLogs(_ context.Context, userID, limit int) ([]SubmissionLog, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []SubmissionLog{}
	for i := len(m.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if m.logs[i].UserID == userID {
			result = append(result, m.logs[i])
		}
	}
	return result, nil
}

// GetPlanStats returns aggregate statistics for a user's plan.
func (m *Memory) GetPlanStats(_ context.Context, userID int) (*PlanStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &PlanStats{ByDiscipline: []DisciplineStat{}}
	dayIDs := make(map[uuid.UUID]bool)
	for _, d := range m.days {
		if d.userID != userID {
			continue
		}
		dayIDs[d.id] = true
		stats.TotalDays++
		date := d.date
		if stats.EarliestDay == nil || date.Before(*stats.EarliestDay) {
			stats.EarliestDay = &date
		}
		if stats.LatestDay == nil || date.After(*stats.LatestDay) {
			stats.LatestDay = &date
		}
	}
	for _, w := range m.workouts {
		if dayIDs[w.dayID] {
			stats.TotalWorkouts++
		}
	}

	byDisc := make(map[string]*DisciplineStat)
	for _, mf := range m.moveframes {
		w := m.workouts[mf.OwnerWorkoutID]
		if w == nil || !dayIDs[w.dayID] {
			continue
		}
		name := string(mf.Discipline)
		s, ok := byDisc[name]
		if !ok {
			s = &DisciplineStat{Discipline: name}
			byDisc[name] = s
		}
		s.Moveframes++
		s.Movelaps += int64(len(mf.Movelaps))
		s.TotalDistance += mf.TotalDistance()
	}
	for _, s := range byDisc {
		stats.TotalMoveframes += s.Moveframes
		stats.TotalMovelaps += s.Movelaps
		stats.ByDiscipline = append(stats.ByDiscipline, *s)
	}
	sort.Slice(stats.ByDiscipline, func(i, j int) bool {
		a, b := stats.ByDiscipline[i], stats.ByDiscipline[j]
		if a.Moveframes != b.Moveframes {
			return a.Moveframes > b.Moveframes
		}
		return a.Discipline < b.Discipline
	})
	return stats, nil
}

// GetTrainingVolume returns planned distance per discipline per period for
// days in [start, end), newest period first.
func (m *Memory) GetTrainingVolume(_ context.Context, userID int, start, end time.Time, bucket string) ([]VolumePeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type cell struct{ period, discipline string }
	cells := make(map[cell]*DisciplineVolume)
	for _, mf := range m.moveframes {
		w := m.workouts[mf.OwnerWorkoutID]
		if w == nil {
			continue
		}
		var day *memDay
		for _, d := range m.days {
			if d.id == w.dayID {
				day = d
				break
			}
		}
		if day == nil || day.userID != userID || day.date.Before(start) || !day.date.Before(end) {
			continue
		}
		c := cell{TruncateDate(day.date, bucket).Format(time.DateOnly), string(mf.Discipline)}
		v, ok := cells[c]
		if !ok {
			v = &DisciplineVolume{Discipline: c.discipline}
			cells[c] = v
		}
		v.Moveframes++
		v.Movelaps += len(mf.Movelaps)
		v.Distance += mf.TotalDistance()
	}

	periods := make(map[string]*VolumePeriod)
	for c, v := range cells {
		p, ok := periods[c.period]
		if !ok {
			p = &VolumePeriod{Period: c.period}
			periods[c.period] = p
		}
		p.Disciplines = append(p.Disciplines, *v)
	}
	result := make([]VolumePeriod, 0, len(periods))
	for _, p := range periods {
		sort.Slice(p.Disciplines, func(i, j int) bool {
			return p.Disciplines[i].Discipline < p.Disciplines[j].Discipline
		})
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Period > result[j].Period })
	return result, nil
}

func cloneMoveframe(mf *models.Moveframe) *models.Moveframe {
	out := mf.Clone()
	return &out
}
