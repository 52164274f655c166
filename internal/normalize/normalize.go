// Package normalize canonicalizes raw extracted booking fields into a stable
// shape: trimmed strings, upper-case IATA codes, YYYY-MM-DD dates and
// RFC 3339 timestamps.
//
// Normalization never fails. A value that cannot be parsed is kept as
// written (trimmed) so the validator can report it later. Applying
// Record twice gives the same result as applying it once.
package normalize

import (
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/dates"
	"github.com/pkordes/itinerary/internal/domain"
)

// Record normalizes b according to its Kind. A nil variant pointer becomes
// an empty record of the same kind.
func Record(b domain.Booking) domain.Booking {
	switch b.Kind {
	case domain.KindFlight:
		if b.Flight == nil {
			return domain.EmptyBooking(domain.KindFlight)
		}
		return domain.FlightBooking(Flight(*b.Flight))
	case domain.KindCar:
		if b.Car == nil {
			return domain.EmptyBooking(domain.KindCar)
		}
		return domain.CarBooking(Car(*b.Car))
	default:
		if b.Hotel == nil {
			return domain.EmptyBooking(domain.KindHotel)
		}
		return domain.HotelBooking(Hotel(*b.Hotel))
	}
}

// Flight normalizes every segment and trims the flight-level fields.
func Flight(f domain.Flight) domain.Flight {
	out := domain.Flight{
		Segments:           make([]domain.Segment, 0, len(f.Segments)),
		ConfirmationNumber: strings.TrimSpace(f.ConfirmationNumber),
		PassengerName:      strings.TrimSpace(f.PassengerName),
	}
	for _, s := range f.Segments {
		out.Segments = append(out.Segments, domain.Segment{
			DepartAirport: AirportCode(s.DepartAirport),
			ArriveAirport: AirportCode(s.ArriveAirport),
			DepartTime:    DateTime(s.DepartTime),
			ArriveTime:    DateTime(s.ArriveTime),
			FlightNumber:  strings.TrimSpace(s.FlightNumber),
			Airline:       strings.TrimSpace(s.Airline),
		})
	}
	return out
}

// Hotel trims all fields and canonicalizes the stay dates.
func Hotel(h domain.Hotel) domain.Hotel {
	return domain.Hotel{
		PropertyName:       strings.TrimSpace(h.PropertyName),
		CheckInDate:        Date(h.CheckInDate),
		CheckOutDate:       Date(h.CheckOutDate),
		ConfirmationNumber: strings.TrimSpace(h.ConfirmationNumber),
		Address:            strings.TrimSpace(h.Address),
		GuestName:          strings.TrimSpace(h.GuestName),
	}
}

// Car trims all fields and canonicalizes pickup and dropoff times.
func Car(c domain.Car) domain.Car {
	return domain.Car{
		PickupLocation:     strings.TrimSpace(c.PickupLocation),
		DropoffLocation:    strings.TrimSpace(c.DropoffLocation),
		PickupTime:         DateTime(c.PickupTime),
		DropoffTime:        DateTime(c.DropoffTime),
		ConfirmationNumber: strings.TrimSpace(c.ConfirmationNumber),
		VehicleType:        strings.TrimSpace(c.VehicleType),
		RentalCompany:      strings.TrimSpace(c.RentalCompany),
	}
}

// AirportCode upper-cases s when it is exactly three ASCII letters.
// Anything else is assumed to be a full airport name and only trimmed.
func AirportCode(s string) string {
	s = strings.TrimSpace(s)
	if len(s) != 3 {
		return s
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return s
		}
	}
	return strings.ToUpper(s)
}

// Date renders s as YYYY-MM-DD, or returns it trimmed if unparseable.
func Date(s string) string {
	s = strings.TrimSpace(s)
	if d, ok := dates.Day(s); ok {
		return dates.Format(d)
	}
	return s
}

// DateTime renders s as RFC 3339 keeping its written offset, or returns it
// trimmed if unparseable. Values without an offset are read as UTC.
func DateTime(s string) string {
	s = strings.TrimSpace(s)
	if t, ok := dates.ParseLoose(s); ok {
		return t.Format(time.RFC3339)
	}
	return s
}
