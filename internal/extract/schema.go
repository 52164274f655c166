package extract

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pkordes/itinerary/internal/domain"
)

const classificationSchema = `{
  "type": "object",
  "required": ["doc_type", "confidence"],
  "properties": {
    "doc_type": {"enum": ["hotel", "flight", "car"]},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

const flightSchema = `{
  "type": "object",
  "required": ["segments"],
  "properties": {
    "segments": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "departAirport": {"type": "string"},
          "arriveAirport": {"type": "string"},
          "departTime": {"type": "string"},
          "arriveTime": {"type": "string"},
          "flightNumber": {"type": "string"},
          "airline": {"type": "string"}
        }
      }
    },
    "confirmationNumber": {"type": "string"},
    "passengerName": {"type": "string"}
  }
}`

const hotelSchema = `{
  "type": "object",
  "properties": {
    "propertyName": {"type": "string"},
    "checkInDate": {"type": "string"},
    "checkOutDate": {"type": "string"},
    "confirmationNumber": {"type": "string"},
    "address": {"type": "string"},
    "guestName": {"type": "string"}
  }
}`

const carSchema = `{
  "type": "object",
  "properties": {
    "pickupLocation": {"type": "string"},
    "dropoffLocation": {"type": "string"},
    "pickupTime": {"type": "string"},
    "dropoffTime": {"type": "string"},
    "confirmationNumber": {"type": "string"},
    "vehicleType": {"type": "string"},
    "rentalCompany": {"type": "string"}
  }
}`

var (
	classificationValidator = mustSchema(classificationSchema)
	recordValidators        = map[domain.Kind]*gojsonschema.Schema{
		domain.KindFlight: mustSchema(flightSchema),
		domain.KindHotel:  mustSchema(hotelSchema),
		domain.KindCar:    mustSchema(carSchema),
	}
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic("extract: invalid schema: " + err.Error())
	}
	return s
}

// validate checks doc against schema and joins every violation into one
// error.
func validate(schema *gojsonschema.Schema, doc []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}
