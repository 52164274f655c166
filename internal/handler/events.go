package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/progress"
)

// keepAliveInterval spaces SSE comment lines that keep idle proxies from
// closing the stream.
const keepAliveInterval = 15 * time.Second

// StreamRunEvents handles GET /runs/{id}/events.
//
// Each Update is sent as one "data:" frame. The stream ends after the
// Completion frame, or after an "event: error" frame when the run failed.
// Unknown runs get 404 and a second concurrent observer gets 409, both
// before any streaming starts.
func (s *Server) StreamRunEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := s.runID(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming not supported")
		return
	}

	sub, err := s.store.Subscribe(id)
	if err != nil {
		s.respondError(w, r, err, "run not found")
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case u, open := <-sub.Events():
			if !open {
				if msg, failed := s.streamFailure(id, sub); failed {
					data, _ := json.Marshal(map[string]string{"error": msg})
					fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
					flusher.Flush()
				}
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				s.log.ErrorContext(r.Context(), "encode update", "run_id", id, "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// streamFailure reports whether a finished subscription ended in error,
// and the message to show. A failed run reports its recorded error.
func (s *Server) streamFailure(id string, sub *progress.Subscription) (string, bool) {
	err := sub.Err()
	if err == nil {
		return "", false
	}
	if errors.Is(err, domain.ErrRunFailed) {
		if run, gerr := s.store.Get(id); gerr == nil && run.Error != "" {
			return run.Error, true
		}
	}
	return err.Error(), true
}
