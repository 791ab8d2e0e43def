package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/trainplan/internal/schedule"
	"github.com/go-chi/chi/v5"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    schedule.Store
	provider *schedule.Provider
	log      *slog.Logger
	apiKey   string
	whois    WhoIser
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(store schedule.Store, provider *schedule.Provider, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		provider: provider,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// SetTailscale switches identity resolution from the dev user to WhoIs
// lookups against the tailnet.
func (s *Server) SetTailscale(who WhoIser) {
	s.whois = who
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Reads and pure evaluation (no auth, tsnet handles access)
		r.Get("/me", s.handleMe)
		r.Get("/disciplines", s.handleDisciplines)
		r.Get("/days/{date}", s.handleGetDay)
		r.Get("/moveframes/{id}", s.handleGetMoveframe)
		r.Get("/stats", s.handleStats)
		r.Get("/volume", s.handleVolume)
		r.Get("/logs", s.handleSubmissionLogs)
		r.Post("/preview", s.handlePreview)
		r.Post("/check-discipline", s.handleCheckDiscipline)

		// Plan mutations (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/days/{date}/workouts", s.handleEnsureWorkout)
			r.Post("/workouts/{id}/moveframes", s.handleCreateMoveframe)
			r.Put("/moveframes/{id}/sequences", s.handleRegenerate)
			r.Delete("/moveframes/{id}", s.handleDeleteMoveframe)
		})
	})
}

// identity picks Tailscale or dev identity per request, so SetTailscale
// may be called after routes are built.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.store, s.log)(next).ServeHTTP(w, r)
	})
}
