package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/planner"
	"github.com/claude/trainplan/internal/schedule"
	"github.com/claude/trainplan/internal/storage"
	"github.com/google/uuid"
)

// TestHandleMeDefault verifies the /api/v1/me endpoint returns the dev user
// identity when no Tailscale middleware is active.
func TestHandleMeDefault(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "local", DisplayName: "Local Dev User"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "local" {
		t.Errorf("login = %q, want %q", info.Login, "local")
	}
	if info.DisplayName != "Local Dev User" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Local Dev User")
	}
}

// TestHandleMeTailscaleUser verifies the /api/v1/me endpoint returns the
// Tailscale user identity when set in context.
func TestHandleMeTailscaleUser(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	ctx := context.WithValue(req.Context(), userInfoKey, UserInfo{Login: "alice@example.com", DisplayName: "Alice"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	s.handleMe(rec, req)

	var info UserInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if info.Login != "alice@example.com" {
		t.Errorf("login = %q, want %q", info.Login, "alice@example.com")
	}
	if info.DisplayName != "Alice" {
		t.Errorf("display_name = %q, want %q", info.DisplayName, "Alice")
	}
}

const testKey = "test-key"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := storage.NewMemory()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := schedule.NewProvider(store, planner.Options{}, log)
	return New(store, provider, testKey, log)
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func createWorkout(t *testing.T, s *Server, date string, session int) uuid.UUID {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/v1/days/"+date+"/workouts", fmt.Sprintf(`{"sessionIndex":%d}`, session))
	if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
		t.Fatalf("create workout: status = %d, body = %s", rec.Code, rec.Body)
	}
	var w workoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&w); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return w.ID
}

const swimBody = `{
	"discipline": "swim",
	"sequences": [
		{"distance": 100, "paceLabel": "A2", "style": "free", "repetitionCount": 4, "intraRestInterval": "20\""},
		{"distance": 50, "paceLabel": "B1", "repetitionCount": 2, "intraRestInterval": "15", "terminalRestInterval": "1'"}
	],
	"annotations": {"alarmSound": "beep", "alarmOffset": -10}
}`

// TestCreateMoveframeEndpoint verifies the create flow and the response shape.
func TestCreateMoveframeEndpoint(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-01", 1)

	rec := do(t, s, http.MethodPost, "/api/v1/workouts/"+wid.String()+"/moveframes", swimBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body = %s", rec.Code, rec.Body)
	}
	var res schedule.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	mf := res.Moveframe
	if mf.Letter != "A" || len(mf.Movelaps) != 6 || res.Replayed {
		t.Errorf("result = %s/%d/replayed=%v, want A/6/false", mf.Letter, len(mf.Movelaps), res.Replayed)
	}
	if got := mf.Movelaps[5].RestAfter; got != `1'00"` {
		t.Errorf("last restAfter = %q, want 1'00\"", got)
	}
	if got := mf.Movelaps[4].RestAfter; got != `15"` {
		t.Errorf("intra restAfter = %q, want 15\"", got)
	}
	if mf.Movelaps[0].AlarmSound != models.AlarmBeep {
		t.Errorf("alarm sound = %q, want beep", mf.Movelaps[0].AlarmSound)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/days/2026-06-01", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get day: status = %d", rec.Code)
	}
	var plan storage.DayPlan
	if err := json.NewDecoder(rec.Body).Decode(&plan); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if plan.Disciplines.String() != "{swim}" || len(plan.Workouts) != 1 {
		t.Errorf("plan = %s with %d workouts, want {swim} with 1", plan.Disciplines, len(plan.Workouts))
	}
}

// TestCreateMoveframeIdempotencyKey verifies a retried request replays with 200.
func TestCreateMoveframeIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-01", 1)
	path := "/api/v1/workouts/" + wid.String() + "/moveframes"

	first := do(t, s, http.MethodPost, path, swimBody, "Idempotency-Key", "abc")
	second := do(t, s, http.MethodPost, path, swimBody, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated || second.Code != http.StatusOK {
		t.Fatalf("statuses = %d/%d, want 201/200", first.Code, second.Code)
	}
	var a, b schedule.Result
	json.NewDecoder(first.Body).Decode(&a)
	json.NewDecoder(second.Body).Decode(&b)
	if !b.Replayed || a.Moveframe.ID != b.Moveframe.ID {
		t.Errorf("replay = %s replayed=%v, want %s", b.Moveframe.ID, b.Replayed, a.Moveframe.ID)
	}
}

// TestCreateMoveframeErrors verifies failure kinds map to statuses and bodies.
func TestCreateMoveframeErrors(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-01", 1)
	path := "/api/v1/workouts/" + wid.String() + "/moveframes"

	for _, d := range []string{"swim", "bike", "run", "gym"} {
		body := strings.Replace(swimBody, `"swim"`, `"`+d+`"`, 1)
		if rec := do(t, s, http.MethodPost, path, body); rec.Code != http.StatusCreated {
			t.Fatalf("%s: status = %d, body = %s", d, rec.Code, rec.Body)
		}
	}

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantKind   string
		wantReason string
		wantField  string
	}{
		{
			name:       "day cap",
			path:       path,
			body:       strings.Replace(swimBody, `"swim"`, `"yoga"`, 1),
			wantStatus: http.StatusConflict,
			wantKind:   "discipline_not_allowed",
			wantReason: "day_cap",
		},
		{
			name:       "bad repetition count",
			path:       path,
			body:       `{"discipline":"swim","sequences":[{"distance":100,"paceLabel":"A2","repetitionCount":0,"intraRestInterval":"20"}]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_sequence",
			wantField:  "repetitionCount",
		},
		{
			name:       "unknown discipline",
			path:       path,
			body:       `{"discipline":"curling","sequences":[{"distance":100,"paceLabel":"A2","repetitionCount":1,"intraRestInterval":"20"}]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   "invalid_sequence",
			wantField:  "discipline",
		},
		{
			name:       "unknown workout",
			path:       "/api/v1/workouts/" + uuid.New().String() + "/moveframes",
			body:       swimBody,
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body)
			}
			var resp errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if resp.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", resp.Reason, tt.wantReason)
			}
			if resp.Field != tt.wantField {
				t.Errorf("field = %q, want %q", resp.Field, tt.wantField)
			}
		})
	}
}

// TestMutationsRequireAPIKey verifies plan mutations are guarded and reads are not.
func TestMutationsRequireAPIKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/days/2026-06-01/workouts", strings.NewReader(`{"sessionIndex":1}`))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("POST without key: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/disciplines", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET without key: status = %d, want 200", rec.Code)
	}
}

// TestEnsureWorkoutEndpoint verifies session slots and the three-session bound.
func TestEnsureWorkoutEndpoint(t *testing.T) {
	s := newTestServer(t)

	if rec := do(t, s, http.MethodPost, "/api/v1/days/2026-06-01/workouts", `{"sessionIndex":3}`); rec.Code != http.StatusCreated {
		t.Errorf("first: status = %d, want 201", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/days/2026-06-01/workouts", `{"sessionIndex":3}`); rec.Code != http.StatusOK {
		t.Errorf("repeat: status = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/days/2026-06-01/workouts", `{"sessionIndex":4}`); rec.Code != http.StatusBadRequest {
		t.Errorf("session 4: status = %d, want 400", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/days/june/workouts", `{"sessionIndex":1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", rec.Code)
	}
}

// TestRegenerateAndDeleteEndpoints verifies PUT replaces the batch and DELETE removes it.
func TestRegenerateAndDeleteEndpoints(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-01", 1)
	rec := do(t, s, http.MethodPost, "/api/v1/workouts/"+wid.String()+"/moveframes", swimBody)
	var res schedule.Result
	json.NewDecoder(rec.Body).Decode(&res)
	mfPath := "/api/v1/moveframes/" + res.Moveframe.ID.String()

	rec = do(t, s, http.MethodPut, mfPath+"/sequences",
		`{"sequences":[{"distance":400,"paceLabel":"C","repetitionCount":2,"intraRestInterval":"2'"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate: status = %d, body = %s", rec.Code, rec.Body)
	}
	var mf models.Moveframe
	json.NewDecoder(rec.Body).Decode(&mf)
	if len(mf.Movelaps) != 2 || mf.Letter != "A" || mf.Summary != `2×400 C 2'00"` {
		t.Errorf("regenerated = %d/%s/%q", len(mf.Movelaps), mf.Letter, mf.Summary)
	}

	if rec := do(t, s, http.MethodDelete, mfPath, ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, mfPath, ""); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

// TestPreviewEndpoint verifies preview assembles without persisting.
func TestPreviewEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{"discipline":"Run","sequences":[{"distance":1000,"paceLabel":"T","repetitionCount":3,"intraRestInterval":"90"}],
		"daySet":["swim"],"workoutSet":[],"existingLetters":["A","B"]}`

	rec := do(t, s, http.MethodPost, "/api/v1/preview", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var mf models.Moveframe
	json.NewDecoder(rec.Body).Decode(&mf)
	if mf.Letter != "C" || mf.Discipline != "run" || len(mf.Movelaps) != 3 {
		t.Errorf("preview = %s/%s/%d, want C/run/3", mf.Letter, mf.Discipline, len(mf.Movelaps))
	}

	rec = do(t, s, http.MethodGet, "/api/v1/stats", "")
	var stats storage.PlanStats
	json.NewDecoder(rec.Body).Decode(&stats)
	if stats.TotalMoveframes != 0 {
		t.Errorf("moveframes after preview = %d, want 0", stats.TotalMoveframes)
	}
}

// TestCheckDisciplineEndpoint verifies the session cap decision.
func TestCheckDisciplineEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := `{"discipline":"yoga","daySet":["swim","bike","run","gym"],"workoutSet":["swim","bike","run","gym"]}`

	rec := do(t, s, http.MethodPost, "/api/v1/check-discipline", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var d planner.Decision
	json.NewDecoder(rec.Body).Decode(&d)
	if d.Allowed || d.Reason != planner.ReasonDayCap {
		t.Errorf("decision = %+v, want denied day_cap", d)
	}

	rec = do(t, s, http.MethodPost, "/api/v1/check-discipline", `{"discipline":"  ","daySet":[],"workoutSet":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank discipline: status = %d, want 400", rec.Code)
	}
	var e errorResponse
	json.NewDecoder(rec.Body).Decode(&e)
	if e.Kind != "invalid_sequence" || e.Field != "discipline" {
		t.Errorf("error = %+v, want invalid_sequence on discipline", e)
	}
}

// TestVolumeEndpoint verifies weekly volume and bucket validation.
func TestVolumeEndpoint(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-03", 1)
	do(t, s, http.MethodPost, "/api/v1/workouts/"+wid.String()+"/moveframes", swimBody)

	rec := do(t, s, http.MethodGet, "/api/v1/volume?start=2026-06-01&end=2026-06-07&bucket=week", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	var periods []storage.VolumePeriod
	json.NewDecoder(rec.Body).Decode(&periods)
	if len(periods) != 1 || periods[0].Period != "2026-06-01" {
		t.Fatalf("periods = %+v, want one starting 2026-06-01", periods)
	}
	if got := periods[0].Disciplines[0].Distance; got != 500 {
		t.Errorf("distance = %v, want 500", got)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/volume?bucket=year", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad bucket: status = %d, want 400", rec.Code)
	}
}

// TestSubmissionLogsEndpoint verifies attempts are listed newest first.
func TestSubmissionLogsEndpoint(t *testing.T) {
	s := newTestServer(t)
	wid := createWorkout(t, s, "2026-06-01", 1)
	path := "/api/v1/workouts/" + wid.String() + "/moveframes"
	do(t, s, http.MethodPost, path, swimBody)
	do(t, s, http.MethodPost, path, `{"discipline":"swim","sequences":[]}`)

	rec := do(t, s, http.MethodGet, "/api/v1/logs?limit=10", "")
	var logs []storage.SubmissionLog
	json.NewDecoder(rec.Body).Decode(&logs)
	if len(logs) != 2 {
		t.Fatalf("logs = %d, want 2", len(logs))
	}
	if logs[0].Status != storage.SubmissionInvalid || logs[1].Status != storage.SubmissionSuccess {
		t.Errorf("statuses = %s,%s, want invalid,success", logs[0].Status, logs[1].Status)
	}
}
