// Package progress owns the state of in-flight and finished workflow runs
// and streams every state change to at most one observer per run.
//
// Every registry mutation publishes its Update while still holding that
// run's lock, so the stream order always matches the stored order and the
// stored state can never drift from what the observer was shown.
package progress

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/itinerary/internal/domain"
)

// Registry is a concurrency-safe table of runs. The map lock is held only
// to find an entry; each run has its own lock, so work on different runs
// never contends.
type Registry struct {
	mu    sync.RWMutex
	runs  map[string]*entry
	now   func() time.Time
	newID func() string
}

type entry struct {
	mu  sync.Mutex
	run domain.Run
	sub *Subscription
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now. Used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator replaces the default UUID run id generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		runs:  make(map[string]*entry),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Create inserts a new pending run and returns its id.
func (r *Registry) Create() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.newID()
	for _, taken := r.runs[id]; taken; _, taken = r.runs[id] {
		id = r.newID()
	}
	r.runs[id] = &entry{run: domain.Run{
		ID:        id,
		Status:    domain.StatusPending,
		Steps:     []domain.Step{},
		CreatedAt: r.now(),
	}}
	return id
}

// RecordStep upserts step by name, keeping the original position when the
// name already exists. A zero Timestamp is stamped with the current time.
// The first running step moves a pending run to running. Steps recorded
// after the run has finished are ignored.
func (r *Registry) RecordStep(id string, step domain.Step) error {
	e, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("progress.Registry.RecordStep: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.Terminal() {
		return nil
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = r.now()
	}

	replaced := false
	for i := range e.run.Steps {
		if e.run.Steps[i].Name == step.Name {
			e.run.Steps[i] = step
			replaced = true
			break
		}
	}
	if !replaced {
		e.run.Steps = append(e.run.Steps, step)
	}
	if e.run.Status == domain.StatusPending && step.Status == domain.StatusRunning {
		e.run.Status = domain.StatusRunning
	}

	if e.sub != nil {
		e.sub.push(domain.ProgressUpdate(step))
	}
	return nil
}

// Complete marks the run completed with its warnings and rendered markdown,
// then ends the observer's stream with a Completion update.
// No-op if the run has already finished.
func (r *Registry) Complete(id string, warnings []string, markdown string) error {
	e, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("progress.Registry.Complete: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.Terminal() {
		return nil
	}
	if warnings == nil {
		warnings = []string{}
	}
	now := r.now()
	e.run.Status = domain.StatusCompleted
	e.run.Warnings = append([]string{}, warnings...)
	e.run.Markdown = markdown
	e.run.CompletedAt = &now

	if e.sub != nil {
		e.sub.push(domain.CompletionUpdate(e.run.Warnings, markdown))
		e.sub.finish(nil)
		e.sub = nil
	}
	return nil
}

// Fail marks the run failed with message and ends the observer's stream.
// No-op if the run has already finished.
func (r *Registry) Fail(id string, message string) error {
	e, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("progress.Registry.Fail: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.Terminal() {
		return nil
	}
	now := r.now()
	e.run.Status = domain.StatusFailed
	e.run.Error = message
	e.run.CompletedAt = &now

	if e.sub != nil {
		e.sub.finish(failure(message))
		e.sub = nil
	}
	return nil
}

// Get returns a deep copy of the run.
func (r *Registry) Get(id string) (domain.Run, error) {
	e, err := r.lookup(id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("progress.Registry.Get: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Clone(), nil
}

// List returns copies of every run, oldest first.
func (r *Registry) List() []domain.Run {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.runs))
	for _, e := range r.runs {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]domain.Run, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.run.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Clear drops every run. Attached observers are ended with ErrNotFound.
// Orchestrations still in flight keep running, but their later updates
// fail with ErrNotFound and are discarded.
func (r *Registry) Clear() {
	r.mu.Lock()
	old := r.runs
	r.runs = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range old {
		e.mu.Lock()
		if e.sub != nil {
			e.sub.finish(fmt.Errorf("%w: run cleared", domain.ErrNotFound))
			e.sub = nil
		}
		e.mu.Unlock()
	}
}

// Subscribe attaches the single observer for run id. Only updates produced
// after this call are delivered. If the run has already finished the
// subscription yields its terminal outcome immediately.
//
// Callers must Close the subscription when done, even after Events has
// closed. An undrained subscription that is never closed pins its pump
// goroutine until the run finishes and keeps other observers out.
//
// Returns domain.ErrNotFound for an unknown run and
// domain.ErrObserverAttached when another observer is still attached.
func (r *Registry) Subscribe(id string) (*Subscription, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("progress.Registry.Subscribe: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.run.Status {
	case domain.StatusCompleted:
		s := newSubscription(nil)
		s.push(domain.CompletionUpdate(e.run.Warnings, e.run.Markdown))
		s.finish(nil)
		return s, nil
	case domain.StatusFailed:
		s := newSubscription(nil)
		s.finish(failure(e.run.Error))
		return s, nil
	}

	if e.sub != nil {
		return nil, fmt.Errorf("progress.Registry.Subscribe: %w", domain.ErrObserverAttached)
	}

	var s *Subscription
	s = newSubscription(func() {
		e.mu.Lock()
		if e.sub == s {
			e.sub = nil
		}
		e.mu.Unlock()
	})
	e.sub = s
	return s, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e, nil
}

func failure(message string) error {
	return fmt.Errorf("%w: %s", domain.ErrRunFailed, message)
}
