package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/domain"
	"github.com/pkordes/itinerary/internal/handler"
	"github.com/pkordes/itinerary/internal/progress"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestStreamRunWebSocket_LiveRun(t *testing.T) {
	reg := progress.NewRegistry()
	id := reg.Create()
	srv := httptest.NewServer(newHTTPHandler(handler.Deps{Store: reg}))
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/runs/"+id+"/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, reg.RecordStep(id, domain.Step{Name: domain.StepInit, Status: domain.StatusRunning}))
	require.NoError(t, reg.Complete(id, nil, "md"))

	var first, second domain.Update
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, domain.UpdateProgress, first.Type)
	assert.Equal(t, domain.StepInit, first.Step.Name)
	assert.Equal(t, domain.UpdateCompletion, second.Type)
	assert.Equal(t, "md", second.Markdown)

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestStreamRunWebSocket_FailedRunClosesWithReason(t *testing.T) {
	reg := progress.NewRegistry()
	id := reg.Create()
	require.NoError(t, reg.Fail(id, "classifier exploded"))
	srv := httptest.NewServer(newHTTPHandler(handler.Deps{Store: reg}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/runs/"+id+"/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
	assert.Equal(t, "classifier exploded", closeErr.Text)
}

func TestStreamRunWebSocket_UnknownRunIsPlainHTTP404(t *testing.T) {
	srv := httptest.NewServer(newHTTPHandler(handler.Deps{Store: progress.NewRegistry()}))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/runs/nope/ws"), nil)

	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStreamRunWebSocket_RejectsForeignOrigin(t *testing.T) {
	reg := progress.NewRegistry()
	id := reg.Create()
	srv := httptest.NewServer(newHTTPHandler(handler.Deps{Store: reg, AllowedOrigins: []string{"https://trips.example.com"}}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/runs/"+id+"/ws"), header)

	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
