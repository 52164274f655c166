package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/normalize"
)

func TestAirportCode(t *testing.T) {
	assert.Equal(t, "SFO", normalize.AirportCode(" sfo "))
	assert.Equal(t, "JFK", normalize.AirportCode("JFK"))
	assert.Equal(t, "San Francisco Intl", normalize.AirportCode("  San Francisco Intl "))
	assert.Equal(t, "K1X", normalize.AirportCode("K1X"), "non-alphabetic codes are left untouched")
	assert.Equal(t, "ab", normalize.AirportCode("ab"))
}

func TestDate(t *testing.T) {
	assert.Equal(t, "2025-01-15", normalize.Date("2025-01-15"))
	assert.Equal(t, "2025-01-15", normalize.Date("01/15/2025"))
	assert.Equal(t, "2025-01-05", normalize.Date("1-5-2025"))
	assert.Equal(t, "2025-01-15", normalize.Date("2025-01-15T22:00:00-08:00"))
	assert.Equal(t, "sometime in May", normalize.Date("  sometime in May "))
	assert.Equal(t, "", normalize.Date(""))
}

func TestDateTime(t *testing.T) {
	assert.Equal(t, "2025-01-15T08:00:00Z", normalize.DateTime("2025-01-15T08:00"))
	assert.Equal(t, "2025-01-15T08:00:00-05:00", normalize.DateTime(" 2025-01-15T08:00:00-05:00 "))
	assert.Equal(t, "2025-01-15T14:30:00Z", normalize.DateTime("01/15/2025 2:30 PM"))
	assert.Equal(t, "TBD", normalize.DateTime("TBD"))
}

func TestRecord_Flight(t *testing.T) {
	raw := domain.FlightBooking(domain.Flight{
		Segments: []domain.Segment{{
			DepartAirport: "sfo",
			ArriveAirport: " ord",
			DepartTime:    "2025-01-15T08:00:00",
			FlightNumber:  " UA100 ",
		}},
		ConfirmationNumber: " ABC123 ",
	})

	got := normalize.Record(raw)

	require.Equal(t, domain.KindFlight, got.Kind)
	require.NotNil(t, got.Flight)
	require.Len(t, got.Flight.Segments, 1)
	seg := got.Flight.Segments[0]
	assert.Equal(t, "SFO", seg.DepartAirport)
	assert.Equal(t, "ORD", seg.ArriveAirport)
	assert.Equal(t, "2025-01-15T08:00:00Z", seg.DepartTime)
	assert.Equal(t, "UA100", seg.FlightNumber)
	assert.Equal(t, "ABC123", got.Flight.ConfirmationNumber)
}

func TestRecord_NilVariantBecomesEmpty(t *testing.T) {
	got := normalize.Record(domain.Booking{Kind: domain.KindFlight})

	require.NotNil(t, got.Flight)
	assert.NotNil(t, got.Flight.Segments)
	assert.Empty(t, got.Flight.Segments)
}

func TestRecord_Idempotent(t *testing.T) {
	inputs := []domain.Booking{
		domain.HotelBooking(domain.Hotel{PropertyName: " Grand ", CheckInDate: "01/15/2025", CheckOutDate: "2025-1-17", Address: " 1 Main St "}),
		domain.CarBooking(domain.Car{PickupLocation: " LAX ", PickupTime: "2025-01-15 10:00", DropoffTime: "garbage", RentalCompany: " Hertz"}),
		domain.FlightBooking(domain.Flight{Segments: []domain.Segment{{DepartAirport: "lhr", ArriveAirport: "Charles de Gaulle", DepartTime: "2025-03-01T09:15:00+00:00"}}}),
	}
	for _, in := range inputs {
		t.Run(string(in.Kind), func(t *testing.T) {
			once := normalize.Record(in)
			twice := normalize.Record(once)
			assert.Equal(t, once, twice)
		})
	}
}
