package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/planner"
	"github.com/claude/trainplan/internal/schedule"
	"github.com/claude/trainplan/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
	Field  string `json:"field,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

type workoutRequest struct {
	SessionIndex int `json:"sessionIndex"`
}

type workoutResponse struct {
	models.Workout
	Created bool `json:"created"`
}

type sequencesRequest struct {
	Sequences []models.Sequence `json:"sequences"`
}

type checkRequest struct {
	Discipline string               `json:"discipline"`
	DaySet     models.DisciplineSet `json:"daySet"`
	WorkoutSet models.DisciplineSet `json:"workoutSet"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleDisciplines(w http.ResponseWriter, r *http.Request) {
	disciplines, err := s.store.GetDisciplines(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disciplines)
}

func (s *Server) handleGetDay(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	plan, err := s.store.GetDayPlan(r.Context(), userIDFromContext(r), date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleEnsureWorkout(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDateParam(w, r)
	if !ok {
		return
	}
	var req workoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	workout, created, err := s.provider.EnsureWorkout(r.Context(), userIDFromContext(r), date, req.SessionIndex)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, workoutResponse{Workout: *workout, Created: created})
}

func (s *Server) handleCreateMoveframe(w http.ResponseWriter, r *http.Request) {
	workoutID, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var in schedule.CreateInput
	if !decodeJSON(w, r, &in) {
		return
	}

	key := r.Header.Get("Idempotency-Key")
	result, err := s.provider.CreateMoveframe(r.Context(), userIDFromContext(r), workoutID, key, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) handleGetMoveframe(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	mf, err := s.store.GetMoveframe(r.Context(), userIDFromContext(r), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mf)
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	var req sequencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mf, err := s.provider.Regenerate(r.Context(), userIDFromContext(r), id, req.Sequences)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mf)
}

func (s *Server) handleDeleteMoveframe(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}
	if err := s.provider.Delete(r.Context(), userIDFromContext(r), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var in schedule.PreviewInput
	if !decodeJSON(w, r, &in) {
		return
	}
	mf, err := s.provider.Preview(in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mf)
}

func (s *Server) handleCheckDiscipline(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	decision, err := schedule.CheckDiscipline(req.Discipline, req.DaySet, req.WorkoutSet)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetPlanStats(r.Context(), userIDFromContext(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	bucket := r.URL.Query().Get("bucket")
	switch bucket {
	case "":
		bucket = "week"
	case "day", "week", "month":
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bucket must be day, week or month"})
		return
	}

	periods, err := s.store.GetTrainingVolume(r.Context(), userIDFromContext(r), start, end, bucket)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periods)
}

func (s *Server) handleSubmissionLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	logs, err := s.store.QuerySubmissionLogs(r.Context(), userIDFromContext(r), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// writeError maps failure kinds to statuses:
// invalid input 400, cap or letter exhaustion 409, missing rows 404.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: err.Error(), Kind: schedule.ErrorKind(err)}

	var se *planner.SequenceError
	if errors.As(err, &se) {
		resp.Field = se.Field
		if se.Index >= 0 {
			idx := se.Index
			resp.Index = &idx
		}
	}
	var de *planner.DisciplineError
	if errors.As(err, &de) {
		resp.Reason = string(de.Decision.Reason)
	}

	switch {
	case errors.Is(err, planner.ErrInvalidSequence):
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, storage.ErrInvalidSession):
		resp.Kind = "invalid_session"
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, planner.ErrDisciplineNotAllowed), errors.Is(err, planner.ErrNoIdentifierAvailable):
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid ID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}

// parseDateRange reads start/end as dates. end is inclusive in the query
// and exclusive in the result. Defaults to the last 12 weeks.
func parseDateRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	end = today.AddDate(0, 0, 1)
	if endStr != "" {
		end, err = time.Parse(time.DateOnly, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		end = end.AddDate(0, 0, 1)
	}

	start = end.AddDate(0, 0, -7*12)
	if startStr != "" {
		start, err = time.Parse(time.DateOnly, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, errors.New("start must not be after end")
	}
	return start, end, nil
}
