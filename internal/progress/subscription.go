package progress

import (
	"sync"

	"github.com/pkordes/itinerary/internal/domain"
)

// Subscription is one observer's view of a run's update stream.
//
// The producer side never blocks: updates are queued without bound and a
// pump goroutine hands them to Events in order. Once the observer calls
// Close, queued and future updates are dropped.
type Subscription struct {
	events chan domain.Update
	wake   chan struct{}
	stop   chan struct{}
	detach func()

	mu       sync.Mutex
	queue    []domain.Update
	finished bool
	err      error

	closeOnce sync.Once
}

func newSubscription(detach func()) *Subscription {
	s := &Subscription{
		events: make(chan domain.Update),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		detach: detach,
	}
	go s.pump()
	return s
}

// Events delivers updates in the order they occurred. The channel is closed
// after the terminal update, after a failure, or after Close.
func (s *Subscription) Events() <-chan domain.Update { return s.events }

// Err reports why the stream ended once Events is closed: nil after a
// Completion, an error wrapping domain.ErrRunFailed after a failed run.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the observer and stops the pump without waiting for Events
// to be drained. Safe to call more than once.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.detach != nil {
			s.detach()
		}
	})
}

func (s *Subscription) push(u domain.Update) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, u)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.events)
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			u := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			select {
			case s.events <- u:
			case <-s.stop:
				return
			}
			continue
		}
		done := s.finished
		s.mu.Unlock()
		if done {
			return
		}
		select {
		case <-s.wake:
		case <-s.stop:
			return
		}
	}
}
