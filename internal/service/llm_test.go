package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"hotelchat/internal/config"
)

func TestNewLanguageModel(t *testing.T) {
	ctx := context.Background()
	keys := config.LLMConfig{OpenAIAPIKey: "sk-test", GoogleAPIKey: "g-test", Timeout: 5}

	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o-mini", "openai/gpt-4o-mini"},
		{"o3-mini", "openai/o3-mini"},
		{"gemini-2.0-flash", "gemini/gemini-2.0-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			cfg := keys
			cfg.Model = tt.model
			llm, err := NewLanguageModel(ctx, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, llm.Name())
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		cfg := keys
		cfg.Model = "claude-3-haiku"
		_, err := NewLanguageModel(ctx, cfg)
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := NewLanguageModel(ctx, config.LLMConfig{Model: "gpt-4o"})
		assert.ErrorContains(t, err, "OPENAI_API_KEY")
		_, err = NewLanguageModel(ctx, config.LLMConfig{Model: "gemini-2.0-flash"})
		assert.ErrorContains(t, err, "GOOGLE_API_KEY")
	})
}

func TestOpenAIBackend_Complete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "search_rooms", "arguments": "{\"query\":\"sea view\"}"}
					}]
				}
			}],
			"usage": {"total_tokens": 42}
		}`))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(config.LLMConfig{Model: "gpt-4o-mini", OpenAIAPIKey: "sk-test", OpenAIAPIBase: srv.URL + "/v1/", Timeout: 5})
	require.NoError(t, err)

	out, err := b.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: SystemPrompt},
			{Role: RoleUser, Content: "sea view please"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Name: SearchToolName, Arguments: "{}"}}},
			{Role: RoleTool, Content: NoRoomsSentinel, ToolCallID: "call_0", Name: SearchToolName},
		},
		Tools: []ToolDefinition{{Name: SearchToolName, Description: "search", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, ToolCall{ID: "call_abc", Name: "search_rooms", Arguments: `{"query":"sea view"}`}, out.ToolCalls[0])

	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)
	require.Len(t, got.Tools, 1)
	assert.Equal(t, "function", got.Tools[0].Type)
	assert.Equal(t, SearchToolName, got.Tools[0].Function.Name)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "call_0", got.Messages[2].ToolCalls[0].ID)
	assert.Equal(t, "call_0", got.Messages[3].ToolCallID)
}

func TestOpenAIBackend_ReasoningModelOmitsTemperature(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "hi"}}]}`))
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(config.LLMConfig{Model: "o3-mini", OpenAIAPIKey: "sk-test", OpenAIAPIBase: srv.URL + "/v1/", Timeout: 5})
	require.NoError(t, err)

	out, err := b.Complete(context.Background(), CompletionRequest{
		Messages:  []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Content)

	assert.NotContains(t, raw, "temperature")
	assert.NotContains(t, raw, "max_tokens")
	assert.Equal(t, 256.0, raw["max_completion_tokens"])
}

func TestOpenAIBackend_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewOpenAIBackend(config.LLMConfig{Model: "gpt-4o", OpenAIAPIKey: "k", OpenAIAPIBase: srv.URL, Timeout: 5})
	require.NoError(t, err)

	_, err = b.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "status 500")
}

// fakeGenerator captures the last call and returns a canned response
type fakeGenerator struct {
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.contents, f.config = contents, cfg
	return f.resp, nil
}

func modelReply(parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
	}}}
}

func TestGeminiBackend_FunctionCalls(t *testing.T) {
	gen := &fakeGenerator{resp: modelReply(
		&genai.Part{Text: "thinking...", Thought: true},
		&genai.Part{FunctionCall: &genai.FunctionCall{Name: SearchToolName, Args: map[string]any{"query": "loft", "max_price": 90.0}}},
	)}
	b := NewGeminiBackend(gen, "gemini-2.0-flash")

	out, err := b.Complete(context.Background(), CompletionRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: SystemPrompt},
			{Role: RoleUser, Content: "a loft under 90"},
		},
		Tools: []ToolDefinition{{Name: SearchToolName, Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Empty(t, out.Content)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "call_1", out.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query": "loft", "max_price": 90}`, out.ToolCalls[0].Arguments)

	require.NotNil(t, gen.config.SystemInstruction)
	assert.Equal(t, SystemPrompt, gen.config.SystemInstruction.Parts[0].Text)
	require.Len(t, gen.config.Tools, 1)
	assert.Equal(t, SearchToolName, gen.config.Tools[0].FunctionDeclarations[0].Name)
	require.NotNil(t, gen.config.Temperature)
	assert.Equal(t, float32(0), *gen.config.Temperature)
	require.Len(t, gen.contents, 1)
	assert.Equal(t, genai.RoleUser, gen.contents[0].Role)
}

func TestGeminiBackend_ToolResponsesShareATurn(t *testing.T) {
	gen := &fakeGenerator{resp: modelReply(&genai.Part{Text: "Two options."})}
	b := NewGeminiBackend(gen, "gemini-2.0-flash")

	out, err := b.Complete(context.Background(), CompletionRequest{Messages: []Message{
		{Role: RoleUser, Content: "rooms in Kyiv or Lviv"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: SearchToolName, Arguments: `{"query":"room","location":"Kyiv"}`},
			{ID: "b", Name: SearchToolName, Arguments: `{"query":"room","location":"Lviv"}`},
		}},
		{Role: RoleTool, ToolCallID: "a", Name: SearchToolName, Content: "[Kyiv] suite - $280.0"},
		{Role: RoleTool, ToolCallID: "b", Name: SearchToolName, Content: lvivHostel},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Two options.", out.Content)
	assert.Nil(t, gen.config.SystemInstruction)
	assert.Nil(t, gen.config.Tools)

	require.Len(t, gen.contents, 3)
	call := gen.contents[1]
	assert.Equal(t, genai.RoleModel, call.Role)
	require.Len(t, call.Parts, 2)
	assert.Equal(t, "Kyiv", call.Parts[0].FunctionCall.Args["location"])

	responses := gen.contents[2]
	assert.Equal(t, genai.RoleUser, responses.Role)
	require.Len(t, responses.Parts, 2)
	assert.Equal(t, "b", responses.Parts[1].FunctionResponse.ID)
	assert.Equal(t, lvivHostel, responses.Parts[1].FunctionResponse.Response["output"])
}

func TestGeminiBackend_ReplaysUntidyArguments(t *testing.T) {
	gen := &fakeGenerator{resp: modelReply(&genai.Part{Text: "ok"})}
	b := NewGeminiBackend(gen, "gemini-2.0-flash")

	_, err := b.Complete(context.Background(), CompletionRequest{Messages: []Message{
		{Role: RoleUser, Content: "rooms"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{
			{ID: "a", Name: SearchToolName, Arguments: "```json\n{\"query\": \"room\", \"location\": \"Kyiv\",}\n```"},
			{ID: "b", Name: SearchToolName, Arguments: "not json at all"},
		}},
		{Role: RoleTool, ToolCallID: "a", Name: SearchToolName, Content: "x"},
		{Role: RoleTool, ToolCallID: "b", Name: SearchToolName, Content: "y"},
	}})
	require.NoError(t, err)

	require.Len(t, gen.contents, 3)
	parts := gen.contents[1].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"query": "room", "location": "Kyiv"}, parts[0].FunctionCall.Args)
	assert.Equal(t, map[string]any{"raw": "not json at all"}, parts[1].FunctionCall.Args)
}

func TestGeminiBackend_NoCandidates(t *testing.T) {
	b := NewGeminiBackend(&fakeGenerator{resp: &genai.GenerateContentResponse{}}, "gemini-2.0-flash")
	_, err := b.Complete(context.Background(), CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	assert.ErrorContains(t, err, "no candidates")
}
