package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

// ItinerarySummary is one item of GET /itineraries.
type ItinerarySummary struct {
	ID        openapi_types.UUID  `json:"id"`
	RunID     string              `json:"runId"`
	StartDate *openapi_types.Date `json:"startDate,omitempty"`
	EndDate   *openapi_types.Date `json:"endDate,omitempty"`
	DayCount  int                 `json:"dayCount"`
	Warnings  []string            `json:"warnings"`
	CreatedAt time.Time           `json:"createdAt"`
}

// ItineraryListResponse is the body of GET /itineraries.
type ItineraryListResponse struct {
	Data       []ItinerarySummary `json:"data"`
	Pagination Pagination         `json:"pagination"`
}

// ItineraryResponse is the JSON body of GET /itineraries/{id}.
type ItineraryResponse struct {
	ItinerarySummary
	Markdown  string                   `json:"markdown"`
	Days      []domain.DayRow          `json:"days"`
	Documents []domain.DocumentSummary `json:"documents"`
}

// ListItineraries handles GET /itineraries.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListItineraries(w http.ResponseWriter, r *http.Request) {
	if s.itineraries == nil {
		s.respondError(w, r, domain.ErrArchiveDisabled, "")
		return
	}

	var page, limit *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "page must be an integer")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "limit must be an integer")
		return
	}

	params := domain.NewPaginationParams(page, limit)
	items, total, err := s.itineraries.ListPaged(r.Context(), params)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}

	data := make([]ItinerarySummary, len(items))
	for i, it := range items {
		data[i] = toSummary(it)
	}
	writeJSON(w, http.StatusOK, ItineraryListResponse{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetItinerary handles GET /itineraries/{id}.
// ?format=csv or ?format=markdown downloads a rendering instead of JSON.
func (s *Server) GetItinerary(w http.ResponseWriter, r *http.Request) {
	if s.itineraries == nil {
		s.respondError(w, r, domain.ErrArchiveDisabled, "")
		return
	}

	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "id must be a UUID")
		return
	}

	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, "invalid format")
		return
	}

	if format != nil && *format != "json" {
		if s.exports == nil {
			s.respondError(w, r, domain.ErrArchiveDisabled, "")
			return
		}
		exp, err := s.exports.Export(r.Context(), id, service.ExportFormat(*format))
		if err != nil {
			s.respondError(w, r, err, "itinerary not found")
			return
		}
		w.Header().Set("Content-Type", exp.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+exp.Filename+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(exp.Body)
		return
	}

	it, err := s.itineraries.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, "itinerary not found")
		return
	}
	writeJSON(w, http.StatusOK, ItineraryResponse{
		ItinerarySummary: toSummary(it),
		Markdown:         it.Markdown,
		Days:             it.Days,
		Documents:        it.Documents,
	})
}

func toSummary(it domain.Itinerary) ItinerarySummary {
	out := ItinerarySummary{
		ID:        it.ID,
		RunID:     it.RunID,
		DayCount:  it.DayCount,
		Warnings:  it.Warnings,
		CreatedAt: it.CreatedAt,
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if it.StartDate != nil {
		out.StartDate = &openapi_types.Date{Time: *it.StartDate}
	}
	if it.EndDate != nil {
		out.EndDate = &openapi_types.Date{Time: *it.EndDate}
	}
	return out
}
