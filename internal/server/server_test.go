package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renterchat/internal/agent"
	"renterchat/internal/catalog"
	"renterchat/internal/config"
	"renterchat/internal/llm"
	"renterchat/internal/memory"
)

// cannedClient always answers with the same completion.
type cannedClient struct {
	text string
	err  error
}

func (c *cannedClient) Complete(context.Context, string) (string, error) {
	return c.text, c.err
}

func (c *cannedClient) CompleteWithSystem(context.Context, string, string) (string, error) {
	return c.text, c.err
}

func (c *cannedClient) CompleteWithTools(context.Context, llm.ToolRequest) (*llm.ToolResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.ToolResponse{Text: c.text}, nil
}

func newTestServer(t *testing.T, client llm.Client) *Server {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"communities.json":  `{"sunset-ridge": {"name": "Sunset Ridge", "location": "Downtown", "amenities": []}}`,
		"units.json":        `{"sunset-ridge": []}`,
		"pet_policies.json": `{"sunset-ridge": {}}`,
		"specials.json":     `[]`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}

	store, err := catalog.NewStore(context.Background(), catalog.NewJSONProvider(dir))
	require.NoError(t, err)

	mem := memory.NewStore()
	coord := agent.NewCoordinator(client, store, mem)

	cfg := config.DefaultConfig()
	return New(cfg, coord, mem)
}

func postReply(t *testing.T, s *Server, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/reply", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func chatBody(message string) map[string]interface{} {
	return map[string]interface{}{
		"lead":         map[string]string{"name": "John Doe", "email": "john@example.com"},
		"message":      message,
		"community_id": "sunset-ridge",
		"client_id":    "c1",
	}
}

func TestReplyEndpoint(t *testing.T) {
	s := newTestServer(t, &cannedClient{text: "Could you tell me what you're looking for?"})

	w := postReply(t, s, chatBody("hi"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp agent.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, agent.ActionAskClarification, resp.Action)
	assert.Contains(t, resp.Reply, "looking for")
}

func TestReplyEndpointFallsBackOnModelFailure(t *testing.T) {
	s := newTestServer(t, &cannedClient{err: fmt.Errorf("model down")})

	w := postReply(t, s, chatBody("hi"))
	// Orchestration failure is still a successful HTTP response.
	require.Equal(t, http.StatusOK, w.Code)

	var resp agent.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, agent.ActionHandoffHuman, resp.Action)
	assert.Contains(t, resp.Reply, "Hi John!")
}

func TestReplyEndpointValidation(t *testing.T) {
	s := newTestServer(t, &cannedClient{text: "ok"})

	w := postReply(t, s, map[string]interface{}{"message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/reply", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMemoryEndpoints(t *testing.T) {
	s := newTestServer(t, &cannedClient{text: "Happy to help!"})

	postReply(t, s, chatBody("I need a 2-bedroom"))
	postReply(t, s, chatBody("Do you allow cats?"))

	// Stats reflect both turns (user + assistant each).
	req := httptest.NewRequest(http.MethodGet, "/api/memory/stats", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats memory.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.ClientCount)
	assert.Equal(t, 4, stats.TotalMessages)

	// Transcript in chronological order.
	req = httptest.NewRequest(http.MethodGet, "/api/memory/c1", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var tr struct {
		ClientID   string `json:"client_id"`
		Transcript []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
	require.Len(t, tr.Transcript, 4)
	assert.Equal(t, "user", tr.Transcript[0].Role)
	assert.Equal(t, "I need a 2-bedroom", tr.Transcript[0].Text)

	// Clear, then clear again.
	req = httptest.NewRequest(http.MethodDelete, "/api/memory/c1", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var cleared map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Equal(t, true, cleared["cleared"])

	req = httptest.NewRequest(http.MethodDelete, "/api/memory/c1", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Equal(t, false, cleared["cleared"])
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, &cannedClient{text: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "is running")
}
