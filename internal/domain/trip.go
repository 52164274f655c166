package domain

// Trip is the merged set of bookings for one run. Each slice keeps the order
// in which documents were submitted.
type Trip struct {
	Flights []Flight `json:"flights"`
	Hotels  []Hotel  `json:"hotels"`
	Cars    []Car    `json:"cars"`
}

// MergeTrip builds a Trip from bookings in the given order.
// Bookings whose variant pointer is nil are skipped.
func MergeTrip(bookings []Booking) Trip {
	t := Trip{Flights: []Flight{}, Hotels: []Hotel{}, Cars: []Car{}}
	for _, b := range bookings {
		switch {
		case b.Kind == KindFlight && b.Flight != nil:
			t.Flights = append(t.Flights, *b.Flight)
		case b.Kind == KindHotel && b.Hotel != nil:
			t.Hotels = append(t.Hotels, *b.Hotel)
		case b.Kind == KindCar && b.Car != nil:
			t.Cars = append(t.Cars, *b.Car)
		}
	}
	return t
}

// IsEmpty reports whether the trip holds no bookings at all.
func (t Trip) IsEmpty() bool {
	return len(t.Flights) == 0 && len(t.Hotels) == 0 && len(t.Cars) == 0
}

// DayRow is the aggregated schedule for one calendar day.
// Date is the unique key, formatted YYYY-MM-DD.
type DayRow struct {
	Date    string   `json:"date"`
	Hotels  []string `json:"hotels"`
	Flights []string `json:"flights"`
	Cars    []string `json:"cars"`
}

// NewDayRow returns a row for date with every list initialised empty.
func NewDayRow(date string) DayRow {
	return DayRow{Date: date, Hotels: []string{}, Flights: []string{}, Cars: []string{}}
}
