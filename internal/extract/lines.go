package extract

import (
	"bufio"
	"context"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// LineExtractor reads "Key: value" lines. It needs no network and backs
// EXTRACT_MODE=mock, the CLI's offline mode, and tests.
//
// Keys are matched case-insensitively with spaces, dashes and underscores
// ignored, so "Check-in Date", "check_in_date" and "CheckInDate" are the
// same key. A flight starts a new segment every time a segment key repeats.
type LineExtractor struct{}

// Extract implements Extractor. It never fails.
func (LineExtractor) Extract(_ context.Context, text string, kind domain.Kind) (domain.Booking, error) {
	pairs := parseLines(clip(text, ExtractTextLimit))
	switch kind {
	case domain.KindFlight:
		return domain.FlightBooking(flightFromPairs(pairs)), nil
	case domain.KindCar:
		var c domain.Car
		for _, p := range pairs {
			switch p.key {
			case "pickuplocation":
				c.PickupLocation = p.value
			case "dropofflocation":
				c.DropoffLocation = p.value
			case "pickuptime", "pickupdate":
				c.PickupTime = p.value
			case "dropofftime", "dropoffdate":
				c.DropoffTime = p.value
			case "confirmationnumber", "confirmation":
				c.ConfirmationNumber = p.value
			case "vehicletype", "vehicle":
				c.VehicleType = p.value
			case "rentalcompany", "company":
				c.RentalCompany = p.value
			}
		}
		return domain.CarBooking(c), nil
	default:
		var h domain.Hotel
		for _, p := range pairs {
			switch p.key {
			case "propertyname", "hotel", "hotelname", "property":
				h.PropertyName = p.value
			case "checkindate", "checkin":
				h.CheckInDate = p.value
			case "checkoutdate", "checkout":
				h.CheckOutDate = p.value
			case "confirmationnumber", "confirmation":
				h.ConfirmationNumber = p.value
			case "address":
				h.Address = p.value
			case "guestname", "guest":
				h.GuestName = p.value
			}
		}
		return domain.HotelBooking(h), nil
	}
}

type pair struct {
	key   string
	value string
}

func parseLines(text string) []pair {
	var out []pair
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		k, v, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, pair{key: canonicalKey(k), value: v})
	}
	return out
}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(k)
}

func flightFromPairs(pairs []pair) domain.Flight {
	f := domain.Flight{Segments: []domain.Segment{}}
	var cur *domain.Segment
	seen := map[string]bool{}
	next := func(key string) *domain.Segment {
		if cur == nil || seen[key] {
			f.Segments = append(f.Segments, domain.Segment{})
			cur = &f.Segments[len(f.Segments)-1]
			seen = map[string]bool{}
		}
		seen[key] = true
		return cur
	}
	for _, p := range pairs {
		switch p.key {
		case "departairport", "from", "origin":
			next("depart").DepartAirport = p.value
		case "arriveairport", "to", "destination":
			next("arrive").ArriveAirport = p.value
		case "departtime", "departure", "departuretime":
			next("departtime").DepartTime = p.value
		case "arrivetime", "arrival", "arrivaltime":
			next("arrivetime").ArriveTime = p.value
		case "flightnumber", "flight":
			next("number").FlightNumber = p.value
		case "airline":
			next("airline").Airline = p.value
		case "confirmationnumber", "confirmation":
			f.ConfirmationNumber = p.value
		case "passengername", "passenger":
			f.PassengerName = p.value
		}
	}
	return f
}
