package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkordes/itinerary/internal/domain"
)

// ConfidenceThreshold is the minimum model confidence accepted without
// consulting the keyword heuristic.
const ConfidenceThreshold = 0.6

var keywords = map[domain.Kind][]string{
	domain.KindHotel:  {"check-in", "check-out", "reservation", "room", "hotel", "accommodation", "guest", "property"},
	domain.KindFlight: {"flight", "airline", "boarding", "departure", "arrival", "gate", "seat", "passenger", "aircraft"},
	domain.KindCar:    {"rental", "vehicle", "pickup", "drop-off", "car", "suv", "sedan", "driver"},
}

// Heuristic scores text by how many distinct keywords of each kind it
// contains. ok is false when nothing matched. Ties go to hotel, then
// flight, then car.
func Heuristic(text string) (kind domain.Kind, ok bool) {
	lower := strings.ToLower(text)
	best := 0
	for _, k := range domain.Kinds {
		score := 0
		for _, kw := range keywords[k] {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > best {
			best, kind = score, k
		}
	}
	return kind, best > 0
}

// HeuristicClassifier classifies with keywords alone and defaults to hotel.
type HeuristicClassifier struct{}

// Classify implements Classifier. It never fails.
func (HeuristicClassifier) Classify(_ context.Context, text string) (domain.Kind, error) {
	if k, ok := Heuristic(text); ok {
		return k, nil
	}
	return domain.KindHotel, nil
}

// jsonCompleter is the part of ChatClient the model-backed collaborators use.
type jsonCompleter interface {
	CompleteJSON(ctx context.Context, prompt string) ([]byte, error)
}

// ModelClassifier asks a chat model for {doc_type, confidence} and falls
// back to the keyword heuristic when the answer is unusable.
type ModelClassifier struct {
	chat jsonCompleter
	log  *slog.Logger
}

// NewModelClassifier returns a ModelClassifier backed by chat.
func NewModelClassifier(chat jsonCompleter, log *slog.Logger) *ModelClassifier {
	return &ModelClassifier{chat: chat, log: log}
}

const classifyPrompt = `You are a document classifier for travel documents.

Analyze the following text and classify it as one of: hotel, flight, or car.

Rules:
- Return ONLY a JSON object {"doc_type": ..., "confidence": ...}
- "hotel" for hotel/accommodation bookings
- "flight" for airline tickets/boarding passes
- "car" for car rental/vehicle reservations
- confidence is a number between 0 and 1
- Do NOT add explanations

Document text:
`

// Classify implements Classifier. It never returns an error: a failed call
// uses the heuristic, defaulting to hotel. A low-confidence answer is
// replaced by the heuristic only when the heuristic matches something.
func (c *ModelClassifier) Classify(ctx context.Context, text string) (domain.Kind, error) {
	kind, confidence, err := c.ask(ctx, clip(text, ClassifyTextLimit))
	if err != nil {
		c.log.WarnContext(ctx, "classification failed, using heuristic", "error", err)
		return HeuristicClassifier{}.Classify(ctx, text)
	}
	if confidence < ConfidenceThreshold {
		if h, ok := Heuristic(text); ok {
			c.log.InfoContext(ctx, "low classification confidence, using heuristic",
				"confidence", confidence, "model_kind", kind, "heuristic_kind", h)
			return h, nil
		}
	}
	return kind, nil
}

func (c *ModelClassifier) ask(ctx context.Context, text string) (domain.Kind, float64, error) {
	raw, err := c.chat.CompleteJSON(ctx, classifyPrompt+text)
	if err != nil {
		return "", 0, err
	}
	if err := validate(classificationValidator, raw); err != nil {
		return "", 0, fmt.Errorf("classification response: %w", err)
	}
	var out struct {
		DocType    string  `json:"doc_type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", 0, fmt.Errorf("classification response: %w", err)
	}
	kind, err := domain.ParseKind(out.DocType)
	if err != nil {
		return "", 0, err
	}
	return kind, out.Confidence, nil
}
