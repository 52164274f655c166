package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/middleware"
)

// logRequest serves req through a chi router carrying the logger and
// returns the decoded log line.
func logRequest(t *testing.T, pattern string, status int, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(middleware.NewSlogLogger(logger))
	r.Get(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("body"))
	})

	req = req.WithContext(context.WithValue(req.Context(), chimiddleware.RequestIDKey, "req-7"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSlogLogger_RunRoute(t *testing.T) {
	entry := logRequest(t, "/runs/{id}", http.StatusOK, httptest.NewRequest(http.MethodGet, "/runs/run-42", nil))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/runs/run-42", entry["path"])
	assert.Equal(t, "/runs/{id}", entry["route"])
	assert.Equal(t, "run-42", entry["run_id"])
	assert.Equal(t, "req-7", entry["request_id"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
	assert.EqualValues(t, 4, entry["bytes"])
	assert.Contains(t, entry, "duration_ms")
}

func TestSlogLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusAccepted, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusConflict, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			entry := logRequest(t, "/itineraries/{id}", tt.status, httptest.NewRequest(http.MethodGet, "/itineraries/x", nil))

			assert.Equal(t, tt.level, entry["level"])
			assert.NotContains(t, entry, "run_id", "only run routes carry run_id")
		})
	}
}
