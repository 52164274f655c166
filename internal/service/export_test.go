package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/service"
)

func exportFixture() domain.Itinerary {
	return domain.Itinerary{
		RunID:    "run-1",
		Markdown: "# Your Trip Itinerary\n",
		Days: []domain.DayRow{
			{Date: "2025-01-15", Hotels: []string{"Grand Hotel"}, Flights: []string{"UA100 SFO → ORD 08:00", "UA200 ORD → JFK 17:30"}, Cars: []string{}},
		},
	}
}

func exportServiceWith(it domain.Itinerary, err error) *service.ExportService {
	return service.NewExportService(&mockItineraryRepo{
		getByID: func(context.Context, uuid.UUID) (domain.Itinerary, error) { return it, err },
	})
}

func TestExportService_CSV(t *testing.T) {
	id := uuid.New()
	svc := exportServiceWith(exportFixture(), nil)

	got, err := svc.Export(context.Background(), id, service.FormatCSV)

	require.NoError(t, err)
	assert.Equal(t, "text/csv; charset=utf-8", got.ContentType)
	assert.Equal(t, "itinerary-"+id.String()+".csv", got.Filename)
	assert.Equal(t,
		"date,lodging,flights,car\n2025-01-15,Grand Hotel,UA100 SFO → ORD 08:00; UA200 ORD → JFK 17:30,\n",
		string(got.Body))
}

func TestExportService_Markdown(t *testing.T) {
	svc := exportServiceWith(exportFixture(), nil)

	got, err := svc.Export(context.Background(), uuid.New(), service.FormatMarkdown)

	require.NoError(t, err)
	assert.Equal(t, "# Your Trip Itinerary\n", string(got.Body))
	assert.Contains(t, got.ContentType, "text/markdown")
}

func TestExportService_UnknownFormat(t *testing.T) {
	svc := service.NewExportService(&mockItineraryRepo{}) // getByID must not be called

	_, err := svc.Export(context.Background(), uuid.New(), "pdf")

	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestExportService_NotFound(t *testing.T) {
	svc := exportServiceWith(domain.Itinerary{}, domain.ErrNotFound)

	_, err := svc.Export(context.Background(), uuid.New(), service.FormatCSV)

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
