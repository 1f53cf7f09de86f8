package avatar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateTalk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/talks", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req createTalkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://img/avatar.png", req.SourceURL)
		assert.Equal(t, "hello there", req.Script.Input)
		assert.Equal(t, "text", req.Script.Type)
		assert.Equal(t, "en-US-JennyNeural", req.Script.Provider.VoiceID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createTalkResponse{ID: "talk-42", Status: "created"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)

	id, err := c.CreateTalk(context.Background(), "https://img/avatar.png", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "talk-42", id)
}

func TestClientCreateTalkUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid image"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)

	_, err = c.CreateTalk(context.Background(), "https://img/a.png", "hi")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnprocessableEntity, statusErr.HTTPStatusCode())
}

func TestClientCreateTalkMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "created"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)

	_, err = c.CreateTalk(context.Background(), "https://img/a.png", "hi")
	assert.Error(t, err)
}

func TestClientGetTalkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/talks/talk-42", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(TalkStatus{Status: "done", ResultURL: "https://x/y.mp4"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "test-key")
	require.NoError(t, err)

	status, err := c.GetTalkStatus(context.Background(), "talk-42")
	require.NoError(t, err)
	assert.Equal(t, "done", status.Status)
	assert.Equal(t, "https://x/y.mp4", status.ResultURL)
}

func TestClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("", "key")
	assert.Error(t, err)
}
