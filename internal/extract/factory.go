package extract

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/pkordes/itinerary/internal/domain"
)

// Extraction modes.
const (
	ModeLive = "live"
	ModeMock = "mock"
)

// Settings selects and configures the collaborators built by New.
type Settings struct {
	Mode string

	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	OCRBaseURL string
	OCRAPIKey  string
	OCRModel   string

	Timeout time.Duration

	// Cache, when non-nil, memoizes OCR results.
	Cache    Cache
	CacheTTL time.Duration
}

// New builds the Pipeline for s.Mode. In mock mode no network calls are made.
func New(s Settings, log *slog.Logger) (Pipeline, error) {
	var p Pipeline
	switch s.Mode {
	case ModeMock:
		p = Pipeline{
			OCR:        PlainTextOCR{},
			Classifier: HeuristicClassifier{},
			Extractor:  LineExtractor{},
		}
	case ModeLive, "":
		chat := NewChatClient(s.AIBaseURL, s.AIAPIKey, s.AIModel, s.Timeout)
		p = Pipeline{
			OCR:        PlainTextOCR{Next: NewMistralOCR(s.OCRBaseURL, s.OCRAPIKey, s.OCRModel, s.Timeout)},
			Classifier: NewModelClassifier(chat, log),
			Extractor:  NewModelExtractor(chat, log),
		}
	default:
		return Pipeline{}, fmt.Errorf("extract.New: %w: unknown mode %q", domain.ErrValidation, s.Mode)
	}

	if s.Cache != nil {
		p.OCR = NewCachedOCR(p.OCR, s.Cache, s.CacheTTL, log)
	}
	return p, nil
}
