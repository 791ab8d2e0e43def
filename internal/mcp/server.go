package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/trainplan/internal/planner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 1
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
// Preview and discipline checks run locally with opts; plan reads go to ds.
func New(ds DataSource, opts planner.Options, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("trainplan", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("Training plan server. Preview moveframes from sequences, check discipline caps, and read day plans and planned volume. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, opts: opts, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolPreviewMoveframe, Handler: h.previewMoveframe},
		server.ServerTool{Tool: toolCheckDiscipline, Handler: h.checkDiscipline},
		server.ServerTool{Tool: toolGetDayPlan, Handler: h.getDayPlan},
		server.ServerTool{Tool: toolGetTrainingVolume, Handler: h.getTrainingVolume},
		server.ServerTool{Tool: toolGetPlanStats, Handler: h.getPlanStats},
	)

	s.AddResources(
		server.ServerResource{Resource: resDisciplines, Handler: h.disciplines},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds   DataSource
	opts planner.Options
	log  *slog.Logger
}

var resDisciplines = mcp.NewResource(
	"trainplan://disciplines",
	"Discipline Catalog",
	mcp.WithResourceDescription("All discipline tags with categories and enabled status"),
	mcp.WithMIMEType("application/json"),
)
