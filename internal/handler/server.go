// Package handler implements the HTTP handlers for the itinerary API.
// All handlers are methods on Server. Methods are split into
// resource-specific files (health.go, runs.go, events.go, ...) but share
// the same Server struct so they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/middleware"
	"github.com/pkordes/itinerary/internal/policy"
	"github.com/pkordes/itinerary/internal/progress"
	"github.com/pkordes/itinerary/internal/service"
)

// RunStarter starts a workflow run in the background.
type RunStarter interface {
	Start(ctx context.Context, docs []domain.Document) (string, error)
}

// RunStore reads and observes runs. *progress.Registry satisfies it.
type RunStore interface {
	Get(id string) (domain.Run, error)
	List() []domain.Run
	Clear()
	Subscribe(id string) (*progress.Subscription, error)
}

// UploadPolicy admits or rejects an upload batch.
type UploadPolicy interface {
	Check(ctx context.Context, files []policy.File) error
}

// ItineraryReader reads archived itineraries.
type ItineraryReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Itinerary, int64, error)
}

// Exporter renders archived itineraries as downloadable files.
type Exporter interface {
	Export(ctx context.Context, id uuid.UUID, format service.ExportFormat) (service.Export, error)
}

// Deps collects the Server's collaborators. Policy, Itineraries and
// Exports may be nil: a nil Policy admits every batch, and nil
// itinerary collaborators make the archive routes answer 503.
type Deps struct {
	Runs        RunStarter
	Store       RunStore
	Policy      UploadPolicy
	Itineraries ItineraryReader
	Exports     Exporter
	Logger      *slog.Logger

	// MaxUploadBytes bounds the whole POST /runs body. Zero means no bound.
	MaxUploadBytes int64

	// AllowedOrigins is consulted by the websocket origin check. Empty
	// allows any origin.
	AllowedOrigins []string
}

// Server serves every API endpoint.
type Server struct {
	runs        RunStarter
	store       RunStore
	policy      UploadPolicy
	itineraries ItineraryReader
	exports     Exporter
	log         *slog.Logger
	maxUpload   int64
	origins     map[string]bool
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	s := &Server{
		runs:        d.Runs,
		store:       d.Store,
		policy:      d.Policy,
		itineraries: d.Itineraries,
		exports:     d.Exports,
		log:         d.Logger,
		maxUpload:   d.MaxUploadBytes,
		origins:     make(map[string]bool, len(d.AllowedOrigins)),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	for _, o := range d.AllowedOrigins {
		s.origins[o] = true
	}
	return s
}

// Routes returns a chi router with every endpoint registered. Global
// middleware is applied by the caller.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)

	r.Route("/runs", func(r chi.Router) {
		upload := r.With()
		if s.maxUpload > 0 {
			upload = r.With(middleware.NewMaxBodySizeHandler(s.maxUpload))
		}
		upload.Post("/", s.CreateRun)
		r.Get("/", s.ListRuns)
		r.Delete("/", s.ClearRuns)
		r.Get("/{id}", s.GetRun)
		r.Get("/{id}/events", s.StreamRunEvents)
		r.Get("/{id}/ws", s.StreamRunWebSocket)
	})

	r.Route("/itineraries", func(r chi.Router) {
		r.Get("/", s.ListItineraries)
		r.Get("/{id}", s.GetItinerary)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return r
}
