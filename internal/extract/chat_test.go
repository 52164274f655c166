package extract_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/itinerary/internal/extract"
)

func TestChatClient_CompleteJSON(t *testing.T) {
	var req map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"doc_type\":\"hotel\",\"confidence\":0.9}"}}]}`))
	}))
	defer srv.Close()

	c := extract.NewChatClient(srv.URL+"/", "key", "gpt-4o-mini", time.Second)
	out, err := c.CompleteJSON(context.Background(), "classify this")

	require.NoError(t, err)
	assert.JSONEq(t, `{"doc_type":"hotel","confidence":0.9}`, string(out))
	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
}

func TestChatClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer srv.Close()

	c := extract.NewChatClient(srv.URL, "bad", "m", time.Second)
	_, err := c.CompleteJSON(context.Background(), "x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestChatClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := extract.NewChatClient(srv.URL, "", "m", time.Second).CompleteJSON(context.Background(), "x")

	assert.Error(t, err)
}
