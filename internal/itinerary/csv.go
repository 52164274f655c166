package itinerary

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// csvHeaders is written as the first record of every CSV export.
var csvHeaders = []string{"date", "lodging", "flights", "car"}

// WriteCSV writes one record per day row. Multiple entries in a column are
// joined with "; " to keep each day on a single line.
func WriteCSV(w io.Writer, rows []domain.DayRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			strings.Join(r.Hotels, "; "),
			strings.Join(r.Flights, "; "),
			strings.Join(r.Cars, "; "),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
