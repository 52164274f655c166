package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/repo"
)

// ItineraryService reads archived itineraries.
type ItineraryService struct {
	repo repo.ItineraryRepo
}

// NewItineraryService constructs an ItineraryService backed by r.
// A nil r yields a service whose reads fail with domain.ErrArchiveDisabled.
func NewItineraryService(r repo.ItineraryRepo) *ItineraryService {
	return &ItineraryService{repo: r}
}

// GetByID returns one archived itinerary with its days and documents.
func (s *ItineraryService) GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error) {
	if s.repo == nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.GetByID: %w", domain.ErrArchiveDisabled)
	}
	it, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.GetByID: %w", err)
	}
	return it, nil
}

// ListPaged returns one page of archived itineraries, newest first, and the
// total count. Listed items carry no days or documents.
func (s *ItineraryService) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Itinerary, int64, error) {
	if s.repo == nil {
		return nil, 0, fmt.Errorf("service.ItineraryService.ListPaged: %w", domain.ErrArchiveDisabled)
	}
	items, total, err := s.repo.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.ItineraryService.ListPaged: %w", err)
	}
	return items, total, nil
}

// Save validates and archives a finished itinerary. It satisfies Archiver.
func (s *ItineraryService) Save(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	if s.repo == nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.Save: %w", domain.ErrArchiveDisabled)
	}
	if it.RunID == "" {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.Save: %w: run id is required", domain.ErrValidation)
	}
	if it.StartDate != nil && it.EndDate != nil && it.EndDate.Before(*it.StartDate) {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.Save: %w: end date before start date", domain.ErrValidation)
	}
	if it.Warnings == nil {
		it.Warnings = []string{}
	}
	it.DayCount = len(it.Days)
	saved, err := s.repo.Save(ctx, it)
	if err != nil {
		return domain.Itinerary{}, fmt.Errorf("service.ItineraryService.Save: %w", err)
	}
	return saved, nil
}
