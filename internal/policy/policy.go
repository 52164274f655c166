// Package policy decides whether an upload batch may start a run. The rules
// are written in Rego and evaluated with OPA.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/open-policy-agent/opa/rego"

	"github.com/pkordes/itinerary/internal/domain"
)

//go:embed upload.rego
var uploadPolicy string

// AllowedTypes lists the accepted non-text media types. Any text/* type is
// accepted as well.
var AllowedTypes = []string{"application/pdf", "image/png", "image/jpeg"}

// Limits bounds an upload batch.
type Limits struct {
	MaxFiles     int
	MaxFileBytes int64
}

// File describes one uploaded file.
type File struct {
	Name        string
	Size        int64
	ContentType string
}

// Engine evaluates the upload policy.
type Engine struct {
	query  rego.PreparedEvalQuery
	limits Limits
}

// NewEngine compiles the embedded upload policy.
func NewEngine(ctx context.Context, limits Limits) (*Engine, error) {
	r := rego.New(
		rego.Query("data.itinerary.upload.deny"),
		rego.Module("upload.rego", uploadPolicy),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy.NewEngine: prepare rego: %w", err)
	}
	return &Engine{query: query, limits: limits}, nil
}

type fileInput struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	SizeText    string `json:"size_text"`
	ContentType string `json:"content_type"`
}

type limitsInput struct {
	MaxFiles     int      `json:"max_files"`
	MaxFileBytes int64    `json:"max_file_bytes"`
	MaxFileText  string   `json:"max_file_text"`
	AllowedTypes []string `json:"allowed_types"`
}

type input struct {
	Files  []fileInput `json:"files"`
	Limits limitsInput `json:"limits"`
}

// Check returns nil when files may be processed. Otherwise it returns an
// error wrapping domain.ErrRejected that lists every violation.
func (e *Engine) Check(ctx context.Context, files []File) error {
	violations, err := e.Violations(ctx, files)
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrRejected, strings.Join(violations, "; "))
	}
	return nil
}

// Violations returns the sorted deny messages for files.
func (e *Engine) Violations(ctx context.Context, files []File) ([]string, error) {
	in := input{
		Files: make([]fileInput, 0, len(files)),
		Limits: limitsInput{
			MaxFiles:     e.limits.MaxFiles,
			MaxFileBytes: e.limits.MaxFileBytes,
			MaxFileText:  humanize.IBytes(uint64(max(e.limits.MaxFileBytes, 0))),
			AllowedTypes: AllowedTypes,
		},
	}
	for _, f := range files {
		in.Files = append(in.Files, fileInput{
			Name:        f.Name,
			Size:        f.Size,
			SizeText:    humanize.IBytes(uint64(max(f.Size, 0))),
			ContentType: baseType(f.ContentType),
		})
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return nil, fmt.Errorf("policy.Engine.Violations: evaluate: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return nil, nil
	}

	raw, ok := results[0].Expressions[0].Value.([]any)
	if !ok {
		return nil, fmt.Errorf("policy.Engine.Violations: unexpected result %T", results[0].Expressions[0].Value)
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out, nil
}

// baseType drops media type parameters such as charset.
func baseType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
