// Package extract provides the collaborators that turn uploaded files into
// booking records: OCR, document classification and field extraction.
//
// Live implementations call an OpenAI-compatible chat endpoint and a
// Mistral-compatible OCR endpoint. Offline implementations need no network
// and are selected with EXTRACT_MODE=mock.
package extract

import (
	"context"

	"github.com/pkordes/itinerary/internal/domain"
)

// Text length limits applied before sending a document to the model.
const (
	ClassifyTextLimit = 4000
	ExtractTextLimit  = 8000
)

// OCR turns an uploaded file into plain text.
type OCR interface {
	Text(ctx context.Context, doc domain.Document) (string, error)
}

// Classifier decides which booking kind a document describes.
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.Kind, error)
}

// Extractor reads the fields of a booking of the given kind from text.
type Extractor interface {
	Extract(ctx context.Context, text string, kind domain.Kind) (domain.Booking, error)
}

// Pipeline bundles the three collaborators the workflow depends on.
type Pipeline struct {
	OCR        OCR
	Classifier Classifier
	Extractor  Extractor
}

// clip returns at most limit runes of s.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
