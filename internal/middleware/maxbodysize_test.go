package middleware_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/middleware"
)

// parseUpload stands in for the upload handler: it parses the multipart form
// and reports a 413 when the body limit trips mid-read.
var parseUpload = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
})

func uploadRequest(t *testing.T, size int) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("files", "scan.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), size))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/runs", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestMaxBodySizeHandler_UploadWithinLimit(t *testing.T) {
	h := middleware.NewMaxBodySizeHandler(4096)(parseUpload)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, 100))

	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMaxBodySizeHandler_DeclaredLengthRejectedUpFront(t *testing.T) {
	called := false
	h := middleware.NewMaxBodySizeHandler(2048)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, uploadRequest(t, 4096))

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "payload_too_large", body.Error.Code)
	assert.Equal(t, "request body exceeds 2.0 KiB", body.Error.Message)
}

func TestMaxBodySizeHandler_ChunkedBodyTripsDuringParse(t *testing.T) {
	h := middleware.NewMaxBodySizeHandler(2048)(parseUpload)

	req := uploadRequest(t, 4096)
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
