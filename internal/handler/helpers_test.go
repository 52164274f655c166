package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/policy"
	"github.com/pkordes/itinerary/internal/progress"
)

// mockRunStarter is a test double for handler.RunStarter.
type mockRunStarter struct {
	start func(ctx context.Context, docs []domain.Document) (string, error)
}

func (m *mockRunStarter) Start(ctx context.Context, docs []domain.Document) (string, error) {
	return m.start(ctx, docs)
}

// mockPolicy is a test double for handler.UploadPolicy.
type mockPolicy struct {
	check func(ctx context.Context, files []policy.File) error
}

func (m *mockPolicy) Check(ctx context.Context, files []policy.File) error {
	return m.check(ctx, files)
}

// compile-time checks.
var (
	_ handler.RunStarter   = (*mockRunStarter)(nil)
	_ handler.UploadPolicy = (*mockPolicy)(nil)
	_ handler.UploadPolicy = (*policy.Engine)(nil)
	_ handler.RunStore     = (*progress.Registry)(nil)
)

// newHTTPHandler wires a Server into its chi router the way main.go does.
func newHTTPHandler(d handler.Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return handler.NewServer(d).Routes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}
