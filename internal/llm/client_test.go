package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnthropicTestClient(t *testing.T, handler http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAnthropicClientWithConfig(AnthropicConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "claude-test",
		Timeout: 5 * time.Second,
	})
}

func TestAnthropic_CompleteWithTools_ParsesToolUse(t *testing.T) {
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))

		body, _ := io.ReadAll(r.Body)
		var req AnthropicRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "check_availability", req.Tools[0].Name)

		resp := map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "Let me check that."},
				{
					"type":  "tool_use",
					"id":    "toolu_01",
					"name":  "check_availability",
					"input": map[string]interface{}{"community_id": "sunset-ridge", "bedrooms": 2},
				},
			},
			"stop_reason": "tool_use",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 20},
		}
		json.NewEncoder(w).Encode(resp)
	})

	resp, err := client.CompleteWithTools(context.Background(), ToolRequest{
		System:   "you are a leasing assistant",
		Messages: []Message{{Role: RoleUser, Content: "any 2 bedrooms?"}},
		Tools: []ToolDefinition{{
			Name:        "check_availability",
			Description: "Check unit availability",
			InputSchema: map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Let me check that.", resp.Text)
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_01", resp.ToolCalls[0].ID)
	assert.Equal(t, "check_availability", resp.ToolCalls[0].Name)
	assert.Equal(t, "sunset-ridge", resp.ToolCalls[0].Input["community_id"])
	assert.Equal(t, 30, resp.Usage.TotalTokens)
}

func TestAnthropic_CompleteWithSystem(t *testing.T) {
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": "  hello there  "}},
			"stop_reason": "end_turn",
		}
		json.NewEncoder(w).Encode(resp)
	})

	text, err := client.CompleteWithSystem(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestAnthropic_RetriesOn429(t *testing.T) {
	attempts := 0
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": "ok"}},
			"stop_reason": "end_turn",
		}
		json.NewEncoder(w).Encode(resp)
	})

	text, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, attempts)
}

func TestAnthropic_RetriesOn5xx(t *testing.T) {
	attempts := 0
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		resp := map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": "ok"}},
			"stop_reason": "end_turn",
		}
		json.NewEncoder(w).Encode(resp)
	})

	text, err := client.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, attempts)
}

func TestAnthropic_DoesNotRetryOn400(t *testing.T) {
	attempts := 0
	client := newAnthropicTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestAnthropic_MissingAPIKey(t *testing.T) {
	client := NewAnthropicClientWithConfig(AnthropicConfig{Model: "m"})
	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestMapMessagesToAnthropic_ToolRoundTrip(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "do you allow cats?"},
		{
			Role:    RoleAssistant,
			Content: "checking",
			ToolCalls: []ToolCall{{
				ID:    "toolu_42",
				Name:  "check_pet_policy",
				Input: map[string]interface{}{"pet_type": "cat"},
			}},
		},
		{
			Role: RoleUser,
			ToolResults: []ToolResult{{
				ToolUseID: "toolu_42",
				Content:   `{"allowed":true}`,
			}},
		},
	}

	mapped := mapMessagesToAnthropic(messages)
	require.Len(t, mapped, 3)

	assert.Equal(t, "do you allow cats?", mapped[0].Content)

	blocks, ok := mapped[1].Content.([]AnthropicContentBlock)
	require.True(t, ok)
	require.Len(t, blocks, 2)
	assert.Equal(t, "text", blocks[0].Type)
	assert.Equal(t, "tool_use", blocks[1].Type)
	assert.Equal(t, "toolu_42", blocks[1].ID)

	results, ok := mapped[2].Content.([]AnthropicContentBlock)
	require.True(t, ok)
	require.Len(t, results, 1)
	assert.Equal(t, "tool_result", results[0].Type)
	assert.Equal(t, "toolu_42", results[0].ToolUseID)
}

func TestOpenAI_CompleteWithTools_ParsesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{{
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]interface{}{{
						"id":   "call_9",
						"type": "function",
						"function": map[string]interface{}{
							"name":      "get_pricing",
							"arguments": `{"community_id":"oak-valley","unit_id":"A101","move_in_date":"2026-07-01"}`,
						},
					}},
				},
				"finish_reason": "tool_calls",
			}},
			"usage": map[string]int{"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	client := NewOpenAIClientWithConfig(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "gpt-test",
		Timeout: 5 * time.Second,
	})

	resp, err := client.CompleteWithTools(context.Background(), ToolRequest{
		Messages: []Message{{Role: RoleUser, Content: "price A101"}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_9", resp.ToolCalls[0].ID)
	assert.Equal(t, "get_pricing", resp.ToolCalls[0].Name)
	assert.Equal(t, "oak-valley", resp.ToolCalls[0].Input["community_id"])
}

func TestMapMessagesToOpenAI_ToolResultsBecomeToolRole(t *testing.T) {
	msgs, err := mapMessagesToOpenAI("sys", []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "t", Input: map[string]interface{}{}}}},
		{Role: RoleUser, ToolResults: []ToolResult{{ToolUseID: "c1", Content: "out"}}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
	assert.Equal(t, "tool", msgs[3].Role)
	assert.Equal(t, "c1", msgs[3].ToolCallID)
}
