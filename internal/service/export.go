package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/itinerary"
)

// ExportFormat names a downloadable rendering of an archived itinerary.
type ExportFormat string

const (
	FormatCSV      ExportFormat = "csv"
	FormatMarkdown ExportFormat = "markdown"
)

// Export is a rendered itinerary ready to be written to a response.
type Export struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ItineraryGetter loads one archived itinerary. *ItineraryService satisfies it.
type ItineraryGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Itinerary, error)
}

// ExportService renders archived itineraries as files.
type ExportService struct {
	itineraries ItineraryGetter
}

// NewExportService constructs an ExportService backed by g.
func NewExportService(g ItineraryGetter) *ExportService {
	return &ExportService{itineraries: g}
}

// Export renders itinerary id in format. An unknown format is a validation
// error and is reported before the itinerary is loaded.
func (s *ExportService) Export(ctx context.Context, id uuid.UUID, format ExportFormat) (Export, error) {
	if format != FormatCSV && format != FormatMarkdown {
		return Export{}, fmt.Errorf("service.ExportService.Export: %w: unknown format %q", domain.ErrValidation, format)
	}

	it, err := s.itineraries.GetByID(ctx, id)
	if err != nil {
		return Export{}, fmt.Errorf("service.ExportService.Export: %w", err)
	}

	if format == FormatMarkdown {
		return Export{
			Filename:    fmt.Sprintf("itinerary-%s.md", id),
			ContentType: "text/markdown; charset=utf-8",
			Body:        []byte(it.Markdown),
		}, nil
	}

	var buf bytes.Buffer
	if err := itinerary.WriteCSV(&buf, it.Days); err != nil {
		return Export{}, fmt.Errorf("service.ExportService.Export: csv: %w", err)
	}
	return Export{
		Filename:    fmt.Sprintf("itinerary-%s.csv", id),
		ContentType: "text/csv; charset=utf-8",
		Body:        buf.Bytes(),
	}, nil
}
