package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/extract"
	"github.com/pkordes/itinerary/internal/progress"
	"github.com/pkordes/itinerary/internal/service"
)

// ---- test doubles ----------------------------------------------------------

type mockOCR struct {
	text func(ctx context.Context, doc domain.Document) (string, error)
}

func (m *mockOCR) Text(ctx context.Context, doc domain.Document) (string, error) {
	return m.text(ctx, doc)
}

type mockClassifier struct {
	classify func(ctx context.Context, text string) (domain.Kind, error)
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (domain.Kind, error) {
	return m.classify(ctx, text)
}

type mockArchiver struct {
	mu    sync.Mutex
	saved []domain.Itinerary
	err   error
}

func (m *mockArchiver) Save(_ context.Context, it domain.Itinerary) (domain.Itinerary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, it)
	return it, m.err
}

// compile-time checks.
var (
	_ extract.OCR         = (*mockOCR)(nil)
	_ extract.Classifier  = (*mockClassifier)(nil)
	_ service.Archiver    = (*mockArchiver)(nil)
	_ service.RunRecorder = (*progress.Registry)(nil)
)

// ---- helpers ---------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// offlinePipeline is the real no-network pipeline used in mock mode.
func offlinePipeline() extract.Pipeline {
	return extract.Pipeline{
		OCR:        extract.PlainTextOCR{},
		Classifier: extract.HeuristicClassifier{},
		Extractor:  extract.LineExtractor{},
	}
}

func textDoc(name, body string) domain.Document {
	return domain.Document{Name: name, ContentType: "text/plain", Data: []byte(body)}
}

const hotelText = `Hotel reservation
Property Name: Grand Hotel
Check-in Date: 01/15/2025
Check-out Date: 01/17/2025`

const flightText = `Boarding pass - flight details
Flight Number: UA100
Depart Airport: sfo
Arrive Airport: ord
Depart Time: 2025-01-15T08:00:00
Arrive Time: 2025-01-15T14:00:00`

// stageNames returns the step names without per-document sub-steps.
func stageNames(run domain.Run) []string {
	var out []string
	for _, s := range run.Steps {
		if !strings.Contains(s.Name, "#") {
			out = append(out, s.Name)
		}
	}
	return out
}

func stepByName(t *testing.T, run domain.Run, name string) domain.Step {
	t.Helper()
	for _, s := range run.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %s not recorded", name)
	return domain.Step{}
}

// ---- tests -----------------------------------------------------------------

func TestWorkflow_Execute_HappyPath(t *testing.T) {
	reg := progress.NewRegistry()
	archive := &mockArchiver{}
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithArchive(archive), service.WithLogger(quietLogger()))
	id := reg.Create()

	res, err := svc.Execute(context.Background(), id, []domain.Document{
		textDoc("hotel.txt", hotelText),
		textDoc("flight.txt", flightText),
	})

	require.NoError(t, err)
	assert.Len(t, res.Trip.Hotels, 1)
	assert.Len(t, res.Trip.Flights, 1)
	assert.Equal(t, "SFO", res.Trip.Flights[0].Segments[0].DepartAirport, "records are normalized")
	require.Len(t, res.Days, 3)
	assert.Equal(t, []string{"UA100 SFO → ORD 08:00"}, res.Days[0].Flights)
	assert.Equal(t, []string{"No hotel booked for 2025-01-17"}, res.Warnings)
	assert.Contains(t, res.Markdown, "# Your Trip Itinerary")

	run, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, run.Status)
	assert.Equal(t, res.Markdown, run.Markdown)
	assert.Equal(t, []string{
		domain.StepInit,
		domain.StepExtractFiles,
		domain.StepProcessDocuments,
		domain.StepMerging,
		domain.StepBuild,
		domain.StepValidate,
		domain.StepBuildMarkdown,
	}, stageNames(run))
	for _, s := range run.Steps {
		assert.Equal(t, domain.StatusCompleted, s.Status, "step %s", s.Name)
	}
	assert.Equal(t, "Merged 1 flights, 1 hotels, 0 cars", stepByName(t, run, domain.StepMerging).Message)
	assert.Equal(t, "hotel.txt: hotel", stepByName(t, run, "PROCESS_DOCUMENTS#1").Message)
	assert.Equal(t, "flight.txt: flight", stepByName(t, run, "PROCESS_DOCUMENTS#2").Message)

	require.Len(t, archive.saved, 1)
	saved := archive.saved[0]
	assert.Equal(t, id, saved.RunID)
	require.NotNil(t, saved.StartDate)
	assert.Equal(t, "2025-01-15", saved.StartDate.Format("2006-01-02"))
	assert.Equal(t, "2025-01-17", saved.EndDate.Format("2006-01-02"))
	require.Len(t, saved.Documents, 2)
	assert.Equal(t, domain.KindFlight, saved.Documents[1].Kind)
}

func TestWorkflow_Execute_StreamsEveryTransition(t *testing.T) {
	reg := progress.NewRegistry()
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithLogger(quietLogger()))
	id := reg.Create()
	sub, err := reg.Subscribe(id)
	require.NoError(t, err)

	go func() { _, _ = svc.Execute(context.Background(), id, []domain.Document{textDoc("h.txt", hotelText)}) }()

	var updates []domain.Update
	for u := range sub.Events() {
		updates = append(updates, u)
	}
	require.NoError(t, sub.Err())
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, domain.UpdateCompletion, last.Type)
	assert.Equal(t, domain.StepInit, updates[0].Step.Name)
	assert.Equal(t, domain.StatusRunning, updates[0].Step.Status)

	run, _ := reg.Get(id)
	assert.Equal(t, domain.StatusCompleted, run.Status)
}

func TestWorkflow_Execute_OCRFailureFailsRun(t *testing.T) {
	reg := progress.NewRegistry()
	p := offlinePipeline()
	p.OCR = &mockOCR{text: func(context.Context, domain.Document) (string, error) {
		return "", errors.New("ocr outage")
	}}
	archive := &mockArchiver{}
	svc := service.NewWorkflowService(reg, p, service.WithArchive(archive), service.WithLogger(quietLogger()))
	id := reg.Create()

	_, err := svc.Execute(context.Background(), id, []domain.Document{textDoc("a.pdf", "x")})

	require.Error(t, err)
	run, _ := reg.Get(id)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "ocr outage")
	assert.Empty(t, run.Markdown, "no partial itinerary on failure")
	assert.Equal(t, domain.StatusFailed, stepByName(t, run, domain.StepExtractFiles).Status)
	assert.Equal(t, domain.StatusFailed, stepByName(t, run, "EXTRACT_FILES#1").Status)
	assert.NotContains(t, stageNames(run), domain.StepMerging)
	assert.Empty(t, archive.saved)
}

func TestWorkflow_Execute_JoinFailsWithoutWaitingForSiblings(t *testing.T) {
	reg := progress.NewRegistry()
	release := make(chan struct{})
	var slowFinished atomic.Bool
	p := offlinePipeline()
	p.OCR = &mockOCR{text: func(_ context.Context, doc domain.Document) (string, error) {
		if doc.Name == "slow.pdf" {
			<-release
			slowFinished.Store(true)
			return "hotel", nil
		}
		return "", errors.New("bad scan")
	}}
	svc := service.NewWorkflowService(reg, p, service.WithLogger(quietLogger()))
	id := reg.Create()

	_, err := svc.Execute(context.Background(), id, []domain.Document{
		textDoc("slow.pdf", ""),
		textDoc("broken.pdf", ""),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
	assert.False(t, slowFinished.Load(), "the join returns before the slow sibling finishes")

	close(release)
	require.Eventually(t, slowFinished.Load, time.Second, 10*time.Millisecond, "siblings are not cancelled")
	run, _ := reg.Get(id)
	assert.Equal(t, domain.StatusFailed, run.Status, "late sibling results do not revive the run")
}

func TestWorkflow_Execute_PanicFailsRun(t *testing.T) {
	reg := progress.NewRegistry()
	p := offlinePipeline()
	p.Classifier = &mockClassifier{classify: func(context.Context, string) (domain.Kind, error) {
		panic("classifier exploded")
	}}
	svc := service.NewWorkflowService(reg, p, service.WithLogger(quietLogger()))
	id := reg.Create()

	_, err := svc.Execute(context.Background(), id, []domain.Document{textDoc("a.txt", "x")})

	require.Error(t, err)
	run, _ := reg.Get(id)
	assert.Equal(t, domain.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "classifier exploded")
}

func TestWorkflow_Execute_ArchiveFailureIsNotFatal(t *testing.T) {
	reg := progress.NewRegistry()
	archive := &mockArchiver{err: errors.New("db down")}
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithArchive(archive), service.WithLogger(quietLogger()))
	id := reg.Create()

	_, err := svc.Execute(context.Background(), id, []domain.Document{textDoc("h.txt", hotelText)})

	require.NoError(t, err)
	run, _ := reg.Get(id)
	assert.Equal(t, domain.StatusCompleted, run.Status)
}

func TestWorkflow_Execute_EmptyTripCompletesWithoutWarnings(t *testing.T) {
	reg := progress.NewRegistry()
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithLogger(quietLogger()))
	id := reg.Create()

	res, err := svc.Execute(context.Background(), id, []domain.Document{textDoc("blank.txt", "nothing useful")})

	require.NoError(t, err)
	assert.Empty(t, res.Days)
	assert.Equal(t, []string{"Hotel #1 missing: property name, check-in date, check-out date"}, res.Warnings,
		"an unresolvable record surfaces only as a warning")
	assert.Contains(t, res.Markdown, "*No itinerary data available.*")
}

func TestWorkflow_Execute_RespectsConcurrencyLimit(t *testing.T) {
	reg := progress.NewRegistry()
	var inFlight, peak atomic.Int32
	p := offlinePipeline()
	p.OCR = &mockOCR{text: func(_ context.Context, doc domain.Document) (string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return string(doc.Data), nil
	}}
	svc := service.NewWorkflowService(reg, p, service.WithConcurrency(2), service.WithLogger(quietLogger()))
	id := reg.Create()

	docs := make([]domain.Document, 8)
	for i := range docs {
		docs[i] = textDoc("h.txt", hotelText)
	}
	_, err := svc.Execute(context.Background(), id, docs)

	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestWorkflow_Execute_FailureStopsQueuedDocuments(t *testing.T) {
	reg := progress.NewRegistry()
	var calls atomic.Int32
	p := offlinePipeline()
	p.OCR = &mockOCR{text: func(_ context.Context, doc domain.Document) (string, error) {
		calls.Add(1)
		if doc.Name == "0.pdf" {
			return "", errors.New("ocr outage")
		}
		return string(doc.Data), nil
	}}
	svc := service.NewWorkflowService(reg, p, service.WithConcurrency(1), service.WithLogger(quietLogger()))
	id := reg.Create()

	docs := make([]domain.Document, 10)
	for i := range docs {
		docs[i] = domain.Document{Name: string(rune('0'+i)) + ".pdf", ContentType: "application/pdf", Data: []byte(hotelText)}
	}
	_, err := svc.Execute(context.Background(), id, docs)

	require.Error(t, err)
	run, err := reg.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, run.Status)

	// Give any queued document time to start if it were going to.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "documents queued behind the limit must not start after the run failed")
}

func TestWorkflow_Start(t *testing.T) {
	reg := progress.NewRegistry()
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	id, err := svc.Start(ctx, []domain.Document{textDoc("h.txt", hotelText)})
	cancel() // the request that started the run may end immediately

	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.Eventually(t, func() bool {
		run, err := reg.Get(id)
		return err == nil && run.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorkflow_Start_NoDocuments(t *testing.T) {
	reg := progress.NewRegistry()
	svc := service.NewWorkflowService(reg, offlinePipeline(), service.WithLogger(quietLogger()))

	_, err := svc.Start(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, reg.List())
}
