// Package service contains the business logic of the itinerary service.
// WorkflowService drives one document batch through extraction, merging,
// building, validation and rendering while reporting every stage to the run
// registry. ItineraryService reads archived results.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pkordes/itinerary/internal/dates"
	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/extract"
	"github.com/pkordes/itinerary/internal/itinerary"
	"github.com/pkordes/itinerary/internal/normalize"
)

const tracerName = "github.com/pkordes/itinerary/internal/service"

// RunRecorder is the part of the run registry the workflow writes to.
// *progress.Registry satisfies it.
type RunRecorder interface {
	Create() string
	RecordStep(id string, step domain.Step) error
	Complete(id string, warnings []string, markdown string) error
	Fail(id string, message string) error
}

// Archiver stores finished itineraries. The repo layer satisfies it.
type Archiver interface {
	Save(ctx context.Context, it domain.Itinerary) (domain.Itinerary, error)
}

// Result is everything a successful run produced.
type Result struct {
	RunID     string
	Trip      domain.Trip
	Days      []domain.DayRow
	Warnings  []string
	Markdown  string
	Documents []domain.DocumentSummary
}

// WorkflowService runs the document-to-itinerary pipeline.
type WorkflowService struct {
	runs     RunRecorder
	pipeline extract.Pipeline
	archive  Archiver
	limit    int
	log      *slog.Logger
	tracer   trace.Tracer
}

// WorkflowOption configures a WorkflowService.
type WorkflowOption func(*WorkflowService)

// WithArchive saves every completed itinerary to a. Archive failures are
// logged and never fail the run.
func WithArchive(a Archiver) WorkflowOption {
	return func(s *WorkflowService) { s.archive = a }
}

// WithConcurrency caps the number of documents processed at once.
// Zero or negative means no cap.
func WithConcurrency(n int) WorkflowOption {
	return func(s *WorkflowService) { s.limit = n }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) WorkflowOption {
	return func(s *WorkflowService) { s.log = l }
}

// NewWorkflowService constructs a WorkflowService.
func NewWorkflowService(runs RunRecorder, pipeline extract.Pipeline, opts ...WorkflowOption) *WorkflowService {
	s := &WorkflowService{
		runs:     runs,
		pipeline: pipeline,
		log:      slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start creates a run and processes docs in the background. It returns the
// run id without waiting for processing.
//
// The background work is detached from ctx cancellation so it outlives the
// HTTP request that started it, but keeps ctx's values for tracing.
func (s *WorkflowService) Start(ctx context.Context, docs []domain.Document) (string, error) {
	if len(docs) == 0 {
		return "", fmt.Errorf("service.WorkflowService.Start: %w: at least one document is required", domain.ErrValidation)
	}
	id := s.runs.Create()
	go func() {
		_, _ = s.Execute(context.WithoutCancel(ctx), id, docs)
	}()
	return id, nil
}

// Execute runs the whole pipeline for an existing run and blocks until the
// run has completed or failed. Any error, or a panic, fails the run with the
// error's message; the same error is returned.
func (s *WorkflowService) Execute(ctx context.Context, runID string, docs []domain.Document) (res Result, err error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Execute", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.documents", len(docs)),
	))
	defer span.End()
	log := s.log.With("run_id", runID)

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "run panicked", "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error: %v", p)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.ErrorContext(ctx, "run failed", "error", err)
			s.warnIf(ctx, log, s.runs.Fail(runID, err.Error()))
			res = Result{}
		}
	}()

	log.InfoContext(ctx, "run started", "documents", len(docs))
	res, err = s.execute(ctx, runID, docs, log)
	if err != nil {
		return Result{}, err
	}

	s.save(ctx, log, res)
	s.warnIf(ctx, log, s.runs.Complete(runID, res.Warnings, res.Markdown))
	log.InfoContext(ctx, "run completed", "days", len(res.Days), "warnings", len(res.Warnings))
	return res, nil
}

func (s *WorkflowService) execute(ctx context.Context, runID string, docs []domain.Document, log *slog.Logger) (Result, error) {
	res := Result{RunID: runID}

	s.record(ctx, log, runID, domain.StepInit, domain.StatusRunning, "")
	s.record(ctx, log, runID, domain.StepInit, domain.StatusCompleted, fmt.Sprintf("Received %d documents", len(docs)))

	var texts []string
	err := s.stage(ctx, log, runID, domain.StepExtractFiles, func(ctx context.Context) (string, error) {
		var err error
		texts, err = fanOut(ctx, len(docs), s.limit, func(ctx context.Context, i int) (string, error) {
			return s.extractFile(ctx, log, runID, i, docs[i])
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Extracted %d files", len(docs)), nil
	})
	if err != nil {
		return Result{}, err
	}

	var bookings []domain.Booking
	err = s.stage(ctx, log, runID, domain.StepProcessDocuments, func(ctx context.Context) (string, error) {
		var err error
		bookings, err = fanOut(ctx, len(docs), s.limit, func(ctx context.Context, i int) (domain.Booking, error) {
			return s.processDocument(ctx, log, runID, i, docs[i].Name, texts[i])
		})
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Processed %d documents", len(docs)), nil
	})
	if err != nil {
		return Result{}, err
	}

	for i, b := range bookings {
		res.Documents = append(res.Documents, domain.DocumentSummary{
			Position:  i,
			Filename:  docs[i].Name,
			Kind:      b.Kind,
			SizeBytes: docs[i].Size(),
		})
	}

	err = s.stage(ctx, log, runID, domain.StepMerging, func(context.Context) (string, error) {
		res.Trip = domain.MergeTrip(bookings)
		return fmt.Sprintf("Merged %d flights, %d hotels, %d cars",
			len(res.Trip.Flights), len(res.Trip.Hotels), len(res.Trip.Cars)), nil
	})
	if err != nil {
		return Result{}, err
	}

	err = s.stage(ctx, log, runID, domain.StepBuild, func(context.Context) (string, error) {
		res.Days = itinerary.Build(res.Trip)
		return fmt.Sprintf("Built %d day-by-day itinerary", len(res.Days)), nil
	})
	if err != nil {
		return Result{}, err
	}

	err = s.stage(ctx, log, runID, domain.StepValidate, func(context.Context) (string, error) {
		res.Warnings = itinerary.Validate(res.Trip, res.Days)
		return fmt.Sprintf("Validated %d warnings", len(res.Warnings)), nil
	})
	if err != nil {
		return Result{}, err
	}

	err = s.stage(ctx, log, runID, domain.StepBuildMarkdown, func(context.Context) (string, error) {
		res.Markdown = itinerary.Markdown(res.Days, res.Warnings)
		return "Built markdown content", nil
	})
	if err != nil {
		return Result{}, err
	}

	return res, nil
}

// extractFile runs OCR for document i under its own sub-step.
func (s *WorkflowService) extractFile(ctx context.Context, log *slog.Logger, runID string, i int, doc domain.Document) (string, error) {
	name := domain.SubStep(domain.StepExtractFiles, i)
	s.record(ctx, log, runID, name, domain.StatusRunning, doc.Name)

	text, err := s.pipeline.OCR.Text(ctx, doc)
	if err != nil {
		s.record(ctx, log, runID, name, domain.StatusFailed, err.Error())
		return "", fmt.Errorf("%s: %w", doc.Name, err)
	}
	s.record(ctx, log, runID, name, domain.StatusCompleted, doc.Name)
	return text, nil
}

// processDocument classifies, extracts and normalizes one document under
// its own sub-step.
func (s *WorkflowService) processDocument(ctx context.Context, log *slog.Logger, runID string, i int, filename, text string) (domain.Booking, error) {
	name := domain.SubStep(domain.StepProcessDocuments, i)
	s.record(ctx, log, runID, name, domain.StatusRunning, filename)

	fail := func(err error) (domain.Booking, error) {
		s.record(ctx, log, runID, name, domain.StatusFailed, err.Error())
		return domain.Booking{}, fmt.Errorf("%s: %w", filename, err)
	}

	kind, err := s.pipeline.Classifier.Classify(ctx, text)
	if err != nil {
		return fail(err)
	}
	raw, err := s.pipeline.Extractor.Extract(ctx, text, kind)
	if err != nil {
		return fail(err)
	}
	b := normalize.Record(raw)

	s.record(ctx, log, runID, name, domain.StatusCompleted, fmt.Sprintf("%s: %s", filename, b.Kind))
	return b, nil
}

// stage records name as running, runs fn inside a span, then records the
// outcome. A failure is recorded on the step and returned wrapped with the
// stage name.
func (s *WorkflowService) stage(ctx context.Context, log *slog.Logger, runID, name string, fn func(context.Context) (string, error)) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	s.record(ctx, log, runID, name, domain.StatusRunning, "")
	msg, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.record(ctx, log, runID, name, domain.StatusFailed, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	s.record(ctx, log, runID, name, domain.StatusCompleted, msg)
	return nil
}

func (s *WorkflowService) record(ctx context.Context, log *slog.Logger, runID, name string, status domain.Status, msg string) {
	err := s.runs.RecordStep(runID, domain.Step{Name: name, Status: status, Message: msg})
	s.warnIf(ctx, log, err)
}

func (s *WorkflowService) warnIf(ctx context.Context, log *slog.Logger, err error) {
	if err != nil {
		log.WarnContext(ctx, "run registry update dropped", "error", err)
	}
}

// save archives res when an archive is configured.
func (s *WorkflowService) save(ctx context.Context, log *slog.Logger, res Result) {
	if s.archive == nil {
		return
	}
	it := domain.Itinerary{
		RunID:     res.RunID,
		Warnings:  res.Warnings,
		Markdown:  res.Markdown,
		Days:      res.Days,
		Documents: res.Documents,
	}
	if first, last, ok := itinerary.Range(res.Trip); ok {
		first, last = dates.Civil(first), dates.Civil(last)
		it.StartDate, it.EndDate = &first, &last
	}
	if _, err := s.archive.Save(ctx, it); err != nil {
		log.WarnContext(ctx, "archive itinerary failed", "error", err)
	}
}

// fanOut runs fn for indexes 0..n-1 concurrently, at most limit at a time
// when limit > 0, and returns results in index order.
//
// The join is all-or-nothing and returns on the first error without waiting
// for the rest. Tasks already running are not cancelled; they finish in
// the background and their results are discarded. Tasks still queued behind
// the limit are never started.
func fanOut[T any](ctx context.Context, n, limit int, fn func(context.Context, int) (T, error)) ([]T, error) {
	results := make([]T, n)
	firstErr := make(chan error, 1)
	done := make(chan struct{})

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	var failed atomic.Bool

	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			if failed.Load() {
				break
			}
			g.Go(func() (err error) {
				// g.Go may have waited on the limit while a sibling failed.
				if failed.Load() {
					return nil
				}
				defer func() {
					if p := recover(); p != nil {
						err = fmt.Errorf("panic: %v", p)
					}
					if err != nil {
						failed.Store(true)
						select {
						case firstErr <- err:
						default:
						}
					}
				}()
				v, err := fn(ctx, i)
				if err != nil {
					return err
				}
				results[i] = v
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case err := <-firstErr:
		return nil, err
	case <-done:
		select {
		case err := <-firstErr:
			return nil, err
		default:
			return results, nil
		}
	}
}
