package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state shared by runs and steps.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Pipeline stage names, in the order the workflow reports them.
const (
	StepInit             = "INIT"
	StepExtractFiles     = "EXTRACT_FILES"
	StepProcessDocuments = "PROCESS_DOCUMENTS"
	StepMerging          = "MERGING"
	StepBuild            = "BUILD"
	StepValidate         = "VALIDATE"
	StepBuildMarkdown    = "BUILD_MARKDOWN"
)

// SubStep names the per-document step i (0-based) inside stage.
// e.g. SubStep(StepExtractFiles, 2) == "EXTRACT_FILES#3"
func SubStep(stage string, i int) string {
	return fmt.Sprintf("%s#%d", stage, i+1)
}

// Step is one named stage within a run.
type Step struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Run is one execution of the document-to-itinerary pipeline.
type Run struct {
	ID          string     `json:"id"`
	Status      Status     `json:"status"`
	Steps       []Step     `json:"steps"`
	Warnings    []string   `json:"warnings,omitempty"`
	Error       string     `json:"error,omitempty"`
	Markdown    string     `json:"markdown,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone returns a deep copy of r so callers never share slices with the
// registry.
func (r Run) Clone() Run {
	out := r
	out.Steps = append([]Step{}, r.Steps...)
	if r.Warnings != nil {
		out.Warnings = append([]string{}, r.Warnings...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// UpdateType discriminates Update payloads on the wire.
type UpdateType string

const (
	UpdateProgress   UpdateType = "progress"
	UpdateCompletion UpdateType = "completion"
)

// Update is one event on a run's progress stream.
// Progress carries Step; Completion carries Warnings and Markdown.
type Update struct {
	Type     UpdateType
	Step     Step
	Warnings []string
	Markdown string
}

// ProgressUpdate wraps a step transition.
func ProgressUpdate(s Step) Update { return Update{Type: UpdateProgress, Step: s} }

// CompletionUpdate is the final event of a successful run.
func CompletionUpdate(warnings []string, markdown string) Update {
	return Update{Type: UpdateCompletion, Warnings: warnings, Markdown: markdown}
}

// MarshalJSON emits {"type":"progress","step":{...}} or
// {"type":"completion","warnings":[...],"markdown":"..."}.
func (u Update) MarshalJSON() ([]byte, error) {
	if u.Type == UpdateCompletion {
		warnings := u.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		return json.Marshal(struct {
			Type     UpdateType `json:"type"`
			Warnings []string   `json:"warnings"`
			Markdown string     `json:"markdown"`
		}{u.Type, warnings, u.Markdown})
	}
	return json.Marshal(struct {
		Type UpdateType `json:"type"`
		Step Step       `json:"step"`
	}{UpdateProgress, u.Step})
}

// UnmarshalJSON is the inverse of MarshalJSON. Used by stream clients.
func (u *Update) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type     UpdateType `json:"type"`
		Step     Step       `json:"step"`
		Warnings []string   `json:"warnings"`
		Markdown string     `json:"markdown"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case UpdateProgress:
		*u = ProgressUpdate(raw.Step)
	case UpdateCompletion:
		*u = CompletionUpdate(raw.Warnings, raw.Markdown)
	default:
		return fmt.Errorf("%w: unknown update type %q", ErrValidation, raw.Type)
	}
	return nil
}
