// Package itinerary turns a merged Trip into a dense, day-indexed schedule,
// checks it for coverage gaps and conflicts, and renders it for people.
package itinerary

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/dates"
	"github.com/pkordes/itinerary/internal/domain"
)

// UnnamedHotel labels a hotel stay with no property name.
const UnnamedHotel = "Hotel (unnamed)"

// Build returns one DayRow per calendar day between the earliest and latest
// resolvable booking dates, inclusive. Returns an empty slice when no
// booking carries a usable date.
func Build(trip domain.Trip) []domain.DayRow {
	first, last, ok := Range(trip)
	if !ok {
		return []domain.DayRow{}
	}

	days := dates.Between(first, last)
	rows := make([]domain.DayRow, len(days))
	index := make(map[string]*domain.DayRow, len(days))
	for i, d := range days {
		rows[i] = domain.NewDayRow(dates.Format(d))
		index[rows[i].Date] = &rows[i]
	}

	for _, h := range trip.Hotels {
		addHotel(h, index)
	}
	for _, f := range trip.Flights {
		addFlight(f, index)
	}
	for _, c := range trip.Cars {
		addCar(c, index)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows
}

// Range returns the earliest and latest civil days referenced by any
// booking in trip. ok is false when there are none.
func Range(trip domain.Trip) (first, last time.Time, ok bool) {
	var all []time.Time
	collect := func(s string) {
		if d, found := dates.Day(s); found {
			all = append(all, d)
		}
	}
	for _, h := range trip.Hotels {
		collect(h.CheckInDate)
		collect(h.CheckOutDate)
	}
	for _, f := range trip.Flights {
		for _, s := range f.Segments {
			collect(s.DepartTime)
			collect(s.ArriveTime)
		}
	}
	for _, c := range trip.Cars {
		collect(c.PickupTime)
		collect(c.DropoffTime)
	}
	if len(all) == 0 {
		return time.Time{}, time.Time{}, false
	}

	first, last = all[0], all[0]
	for _, d := range all[1:] {
		if d.Before(first) {
			first = d
		}
		if d.After(last) {
			last = d
		}
	}
	return first, last, true
}

// addHotel attaches the property label to every night from check-in up to
// but not including check-out.
func addHotel(h domain.Hotel, index map[string]*domain.DayRow) {
	checkIn, ok := dates.Day(h.CheckInDate)
	if !ok {
		return
	}
	checkOut, ok := dates.Day(h.CheckOutDate)
	if !ok {
		return
	}

	label := h.PropertyName
	if label == "" {
		label = UnnamedHotel
	}
	for night := checkIn; night.Before(checkOut); night = night.AddDate(0, 0, 1) {
		if row, found := index[dates.Format(night)]; found {
			row.Hotels = append(row.Hotels, label)
		}
	}
}

// addFlight attaches one label per segment to that segment's departure day.
// Segments without a usable departure time are skipped.
func addFlight(f domain.Flight, index map[string]*domain.DayRow) {
	for i, s := range f.Segments {
		depart, ok := dates.ParseLoose(s.DepartTime)
		if !ok {
			continue
		}

		parts := make([]string, 0, 3)
		if s.FlightNumber != "" {
			parts = append(parts, s.FlightNumber)
		} else {
			parts = append(parts, fmt.Sprintf("Flight %d", i+1))
		}
		if s.DepartAirport != "" && s.ArriveAirport != "" {
			parts = append(parts, s.DepartAirport+" → "+s.ArriveAirport)
		}
		parts = append(parts, depart.Format("15:04"))

		if row, found := index[dates.Format(depart)]; found {
			row.Flights = append(row.Flights, strings.Join(parts, " "))
		}
	}
}

// addCar attaches pickup and dropoff independently.
func addCar(c domain.Car, index map[string]*domain.DayRow) {
	attach := func(verb, location, when string) {
		t, ok := dates.ParseLoose(when)
		if !ok {
			return
		}
		if location == "" {
			location = "Location"
		}
		if row, found := index[dates.Format(t)]; found {
			row.Cars = append(row.Cars, fmt.Sprintf("%s %s %s", verb, location, t.Format("15:04")))
		}
	}
	attach("Pickup", c.PickupLocation, c.PickupTime)
	attach("Dropoff", c.DropoffLocation, c.DropoffTime)
}
