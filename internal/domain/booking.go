package domain

import "fmt"

// Kind discriminates the three booking variants. It is carried explicitly on
// every Booking rather than inferred from which fields happen to be present.
type Kind string

const (
	KindFlight Kind = "flight"
	KindHotel  Kind = "hotel"
	KindCar    Kind = "car"
)

// Kinds lists every valid Kind in tie-break order (hotel first).
var Kinds = []Kind{KindHotel, KindFlight, KindCar}

// ParseKind converts s into a Kind. Returns ErrValidation for anything else.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFlight, KindHotel, KindCar:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown booking kind %q", ErrValidation, s)
}

// Segment is one leg of a flight. Empty strings mean the field is absent.
// Times hold an RFC 3339 timestamp once normalized.
type Segment struct {
	DepartAirport string `json:"departAirport,omitempty"`
	ArriveAirport string `json:"arriveAirport,omitempty"`
	DepartTime    string `json:"departTime,omitempty"`
	ArriveTime    string `json:"arriveTime,omitempty"`
	FlightNumber  string `json:"flightNumber,omitempty"`
	Airline       string `json:"airline,omitempty"`
}

// Flight is a possibly multi-leg flight booking.
type Flight struct {
	Segments           []Segment `json:"segments"`
	ConfirmationNumber string    `json:"confirmationNumber,omitempty"`
	PassengerName      string    `json:"passengerName,omitempty"`
}

// Hotel is a lodging booking. Dates are YYYY-MM-DD once normalized.
type Hotel struct {
	PropertyName       string `json:"propertyName,omitempty"`
	CheckInDate        string `json:"checkInDate,omitempty"`
	CheckOutDate       string `json:"checkOutDate,omitempty"`
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
	Address            string `json:"address,omitempty"`
	GuestName          string `json:"guestName,omitempty"`
}

// Car is a rental car booking.
type Car struct {
	PickupLocation     string `json:"pickupLocation,omitempty"`
	DropoffLocation    string `json:"dropoffLocation,omitempty"`
	PickupTime         string `json:"pickupTime,omitempty"`
	DropoffTime        string `json:"dropoffTime,omitempty"`
	ConfirmationNumber string `json:"confirmationNumber,omitempty"`
	VehicleType        string `json:"vehicleType,omitempty"`
	RentalCompany      string `json:"rentalCompany,omitempty"`
}

// Booking is a tagged union over Flight, Hotel and Car.
// Exactly the pointer matching Kind is non-nil.
type Booking struct {
	Kind   Kind    `json:"kind"`
	Flight *Flight `json:"flight,omitempty"`
	Hotel  *Hotel  `json:"hotel,omitempty"`
	Car    *Car    `json:"car,omitempty"`
}

// FlightBooking wraps f in a Booking.
func FlightBooking(f Flight) Booking { return Booking{Kind: KindFlight, Flight: &f} }

// HotelBooking wraps h in a Booking.
func HotelBooking(h Hotel) Booking { return Booking{Kind: KindHotel, Hotel: &h} }

// CarBooking wraps c in a Booking.
func CarBooking(c Car) Booking { return Booking{Kind: KindCar, Car: &c} }

// EmptyBooking returns a Booking of kind k with every field absent.
// Used as the fallback when extraction fails for a document.
func EmptyBooking(k Kind) Booking {
	switch k {
	case KindFlight:
		return FlightBooking(Flight{Segments: []Segment{}})
	case KindCar:
		return CarBooking(Car{})
	default:
		return HotelBooking(Hotel{})
	}
}
