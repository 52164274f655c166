package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is one uploaded source file.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the document length in bytes.
func (d Document) Size() int64 { return int64(len(d.Data)) }

// DocumentSummary records what a processed document turned into.
// Position is the document's 0-based index in the upload batch.
type DocumentSummary struct {
	Position  int    `json:"position"`
	Filename  string `json:"filename"`
	Kind      Kind   `json:"kind"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Itinerary is an archived, completed run result.
// StartDate and EndDate are nil when the trip had no resolvable dates.
// DayCount is stored separately so listings can report it without loading
// the day rows.
type Itinerary struct {
	ID        uuid.UUID         `json:"id"`
	RunID     string            `json:"runId"`
	StartDate *time.Time        `json:"startDate,omitempty"`
	EndDate   *time.Time        `json:"endDate,omitempty"`
	DayCount  int               `json:"dayCount"`
	Warnings  []string          `json:"warnings"`
	Markdown  string            `json:"markdown"`
	Days      []DayRow          `json:"days"`
	Documents []DocumentSummary `json:"documents"`
	CreatedAt time.Time         `json:"createdAt"`
}
