package itinerary

import (
	"fmt"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// Validate inspects the built rows and the source trip and returns
// human-readable warnings. An empty result means nothing needs attention.
// Checks run in a fixed order: coverage gaps, double bookings, flight
// completeness, hotel completeness.
func Validate(trip domain.Trip, rows []domain.DayRow) []string {
	warnings := []string{}
	warnings = append(warnings, coverageGaps(rows)...)
	warnings = append(warnings, doubleBookings(rows)...)
	warnings = append(warnings, incompleteFlights(trip.Flights)...)
	warnings = append(warnings, incompleteHotels(trip.Hotels)...)
	return warnings
}

func coverageGaps(rows []domain.DayRow) []string {
	var out []string
	total := 0
	for _, row := range rows {
		total += len(row.Hotels)
		if len(row.Hotels) == 0 {
			out = append(out, "No hotel booked for "+row.Date)
		}
	}
	if len(rows) > 1 && total == 0 {
		out = append(out, "No hotel bookings found for multi-day trip")
	}
	return out
}

func doubleBookings(rows []domain.DayRow) []string {
	var out []string
	for _, row := range rows {
		if len(row.Hotels) > 1 {
			out = append(out, fmt.Sprintf("Double hotel booking on %s: %s", row.Date, strings.Join(row.Hotels, ", ")))
		}
	}
	return out
}

func incompleteFlights(flights []domain.Flight) []string {
	var out []string
	for i, f := range flights {
		if len(f.Segments) == 0 {
			out = append(out, fmt.Sprintf("Flight #%d has no segments", i+1))
			continue
		}
		for j, s := range f.Segments {
			missing := missingFields(
				field{"departure airport", s.DepartAirport},
				field{"arrival airport", s.ArriveAirport},
				field{"departure time", s.DepartTime},
				field{"arrival time", s.ArriveTime},
			)
			if len(missing) > 0 {
				out = append(out, fmt.Sprintf("Flight #%d segment #%d missing: %s", i+1, j+1, strings.Join(missing, ", ")))
			}
		}
	}
	return out
}

func incompleteHotels(hotels []domain.Hotel) []string {
	var out []string
	for i, h := range hotels {
		missing := missingFields(
			field{"property name", h.PropertyName},
			field{"check-in date", h.CheckInDate},
			field{"check-out date", h.CheckOutDate},
		)
		if len(missing) == 0 {
			continue
		}
		label := h.PropertyName
		if label == "" {
			label = fmt.Sprintf("Hotel #%d", i+1)
		}
		out = append(out, fmt.Sprintf("%s missing: %s", label, strings.Join(missing, ", ")))
	}
	return out
}

type field struct {
	name  string
	value string
}

func missingFields(fields ...field) []string {
	var out []string
	for _, f := range fields {
		if f.value == "" {
			out = append(out, f.name)
		}
	}
	return out
}
