package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkordes/itinerary/internal/domain"
)

var extractPrompts = map[domain.Kind]string{
	domain.KindFlight: `You are a flight data extractor. Extract flight information from the following text.

Rules:
- Extract ALL flight segments if this is a multi-leg journey
- Return {"segments": [...], "confirmationNumber": ..., "passengerName": ...}
- For each segment, extract: departAirport, arriveAirport, departTime, arriveTime, flightNumber, airline
- Use IATA airport codes when available (e.g., SFO, JFK)
- For times, use ISO format if possible, or keep as-is if format is unclear
- If a field is missing or unclear, OMIT it - do NOT invent values
- Return strictly valid JSON, no explanations

Document text:
`,
	domain.KindHotel: `You are a hotel data extractor. Extract hotel booking information from the following text.

Rules:
- Extract: propertyName, checkInDate, checkOutDate, confirmationNumber, address, guestName
- For dates, use ISO format YYYY-MM-DD if possible
- If a field is missing or unclear, OMIT it - do NOT invent values
- Return strictly valid JSON, no explanations

Document text:
`,
	domain.KindCar: `You are a car rental data extractor. Extract car rental information from the following text.

Rules:
- Extract: pickupLocation, dropoffLocation, pickupTime, dropoffTime, confirmationNumber, vehicleType, rentalCompany
- For times, use ISO format if possible
- Use IATA codes for airport locations when available
- If a field is missing or unclear, OMIT it - do NOT invent values
- Return strictly valid JSON, no explanations

Document text:
`,
}

// ModelExtractor asks a chat model for the fields of one booking kind and
// checks the answer against that kind's JSON schema.
type ModelExtractor struct {
	chat jsonCompleter
	log  *slog.Logger
}

// NewModelExtractor returns a ModelExtractor backed by chat.
func NewModelExtractor(chat jsonCompleter, log *slog.Logger) *ModelExtractor {
	return &ModelExtractor{chat: chat, log: log}
}

// Extract implements Extractor. Any model, transport or schema failure
// yields an empty record of kind instead of an error. Only an unknown kind
// is reported as an error.
func (e *ModelExtractor) Extract(ctx context.Context, text string, kind domain.Kind) (domain.Booking, error) {
	prompt, ok := extractPrompts[kind]
	if !ok {
		return domain.Booking{}, fmt.Errorf("extract.ModelExtractor.Extract: %w: unknown kind %q", domain.ErrValidation, kind)
	}

	b, err := e.ask(ctx, prompt+clip(text, ExtractTextLimit), kind)
	if err != nil {
		e.log.WarnContext(ctx, "extraction failed, using empty record", "kind", kind, "error", err)
		return domain.EmptyBooking(kind), nil
	}
	return b, nil
}

func (e *ModelExtractor) ask(ctx context.Context, prompt string, kind domain.Kind) (domain.Booking, error) {
	raw, err := e.chat.CompleteJSON(ctx, prompt)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := validate(recordValidators[kind], raw); err != nil {
		return domain.Booking{}, err
	}
	return decodeRecord(raw, kind)
}

// decodeRecord unmarshals raw into the variant matching kind.
func decodeRecord(raw []byte, kind domain.Kind) (domain.Booking, error) {
	switch kind {
	case domain.KindFlight:
		var f domain.Flight
		if err := json.Unmarshal(raw, &f); err != nil {
			return domain.Booking{}, err
		}
		if f.Segments == nil {
			f.Segments = []domain.Segment{}
		}
		return domain.FlightBooking(f), nil
	case domain.KindCar:
		var c domain.Car
		if err := json.Unmarshal(raw, &c); err != nil {
			return domain.Booking{}, err
		}
		return domain.CarBooking(c), nil
	default:
		var h domain.Hotel
		if err := json.Unmarshal(raw, &h); err != nil {
			return domain.Booking{}, err
		}
		return domain.HotelBooking(h), nil
	}
}
