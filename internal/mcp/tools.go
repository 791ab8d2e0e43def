package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/trainplan/internal/models"
	"github.com/claude/trainplan/internal/planner"
	"github.com/claude/trainplan/internal/schedule"
	"github.com/claude/trainplan/internal/storage"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultDateRange returns [start, end) for date-only inputs, defaulting to
// the last 12 weeks. end is inclusive in the input.
func defaultDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 1)
	if endStr != "" {
		t, err := time.Parse(time.DateOnly, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t.AddDate(0, 0, 1)
	}

	start := end.AddDate(0, 0, -7*12)
	if startStr != "" {
		t, err := time.Parse(time.DateOnly, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}

// --- Tool definitions ---

var sequenceSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"distance":             map[string]any{"type": "number"},
		"paceLabel":            map[string]any{"type": "string"},
		"style":                map[string]any{"type": "string"},
		"repetitionCount":      map[string]any{"type": "integer", "minimum": 1, "maximum": planner.MaxRepetitions},
		"intraRestInterval":    map[string]any{"type": "string"},
		"terminalRestInterval": map[string]any{"type": "string"},
	},
	"required": []string{"distance", "paceLabel", "repetitionCount", "intraRestInterval"},
}

var toolPreviewMoveframe = mcp.NewTool("preview_moveframe",
	mcp.WithDescription("Assemble a moveframe without saving it. Expands sequences into movelaps, builds the one-line summary, allocates the next free letter and checks the discipline caps against the given sets."),
	mcp.WithString("discipline", mcp.Required(), mcp.Description("Discipline tag (e.g. swim, bike, run)")),
	mcp.WithString("kind", mcp.Description("Moveframe kind. Defaults to STANDARD."), mcp.Enum("STANDARD", "BATTERY", "ANNOTATION", "MANUAL")),
	mcp.WithArray("sequences", mcp.Description("Sequences for STANDARD and BATTERY moveframes. Rest tokens look like 20\" or 1'30\"."), mcp.Items(sequenceSchema)),
	mcp.WithString("content", mcp.Description("Text of ANNOTATION and MANUAL moveframes")),
	mcp.WithArray("daySet", mcp.Description("Disciplines already planned on the day"), mcp.WithStringItems()),
	mcp.WithArray("workoutSet", mcp.Description("Disciplines already planned in the session"), mcp.WithStringItems()),
	mcp.WithArray("existingLetters", mcp.Description("Letters already used in the session"), mcp.WithStringItems()),
)

var toolCheckDiscipline = mcp.NewTool("check_discipline",
	mcp.WithDescription("Check whether a discipline may be added to a session: at most 4 disciplines per day and per session, with stretching not counting against a full day."),
	mcp.WithString("discipline", mcp.Required(), mcp.Description("Discipline tag")),
	mcp.WithArray("daySet", mcp.Description("Disciplines already planned on the day"), mcp.WithStringItems()),
	mcp.WithArray("workoutSet", mcp.Description("Disciplines already planned in the session"), mcp.WithStringItems()),
)

var toolGetDayPlan = mcp.NewTool("get_day_plan",
	mcp.WithDescription("Retrieve a planned day: sessions, moveframes with summaries and movelaps, and discipline sets."),
	mcp.WithString("date", mcp.Required(), mcp.Description("Date (YYYY-MM-DD)")),
)

var toolGetTrainingVolume = mcp.NewTool("get_training_volume",
	mcp.WithDescription("Planned distance, moveframe and movelap counts per discipline per period."),
	mcp.WithString("start", mcp.Description("Start date (YYYY-MM-DD). Defaults to 12 weeks ago.")),
	mcp.WithString("end", mcp.Description("End date, inclusive (YYYY-MM-DD). Defaults to today.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to 'week'."), mcp.Enum("day", "week", "month")),
)

var toolGetPlanStats = mcp.NewTool("get_plan_stats",
	mcp.WithDescription("Totals of planned days, sessions, moveframes and movelaps, with distance per discipline."),
)

// --- Tool handlers ---

type checkArgs struct {
	Discipline string   `json:"discipline"`
	DaySet     []string `json:"daySet"`
	WorkoutSet []string `json:"workoutSet"`
}

func (h *handlers) previewMoveframe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in schedule.PreviewInput
	if err := req.BindArguments(&in); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}

	mf, err := schedule.Preview(h.opts, in)
	if err != nil {
		return mcp.NewToolResultError(planner.ErrorKind(err) + ": " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(mf)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) checkDiscipline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args checkArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError("invalid arguments: " + err.Error()), nil
	}
	if args.Discipline == "" {
		return mcp.NewToolResultError("discipline parameter is required"), nil
	}

	decision, err := schedule.CheckDiscipline(args.Discipline,
		models.NewDisciplineSet(args.DaySet...), models.NewDisciplineSet(args.WorkoutSet...))
	if err != nil {
		return mcp.NewToolResultError(planner.ErrorKind(err) + ": " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(decision)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getDayPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dateStr, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError("date parameter is required"), nil
	}
	date, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	plan, err := h.ds.GetDayPlan(ctx, UserIDFromContext(ctx), date)
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultText("nothing planned on " + dateStr), nil
	}
	if err != nil {
		h.log.Error("mcp get_day_plan", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(plan)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getTrainingVolume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultDateRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	bucket := req.GetString("bucket", "week")

	periods, err := h.ds.GetTrainingVolume(ctx, UserIDFromContext(ctx), start, end, bucket)
	if err != nil {
		h.log.Error("mcp get_training_volume", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(periods)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPlanStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.ds.GetPlanStats(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_plan_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(stats)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
