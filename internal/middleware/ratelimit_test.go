package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func get(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newRateLimiter(1, 2, func() time.Time { return now })(okHandler)

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1235").Code)
	rec := get(h, "10.0.0.1:1236")

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "too_many_requests", body.Error.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1237").Code, "tokens refill over time")
}

func TestRateLimiter_PerClient(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := newRateLimiter(1, 1, func() time.Time { return now })(okHandler)

	assert.Equal(t, http.StatusOK, get(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "10.0.0.1:2").Code)
	assert.Equal(t, http.StatusOK, get(h, "10.0.0.2:1").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	h := NewRateLimiter(0, 0)(okHandler)

	for range 50 {
		require.Equal(t, http.StatusOK, get(h, "10.0.0.1:1").Code)
	}
}
