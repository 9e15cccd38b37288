package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotelchat/internal/config"
	"hotelchat/internal/observability"
)

// OpenAIBackend talks to an OpenAI-compatible /chat/completions endpoint
type OpenAIBackend struct {
	config     config.LLMConfig
	httpClient *http.Client
	log        zerolog.Logger
}

var _ LanguageModel = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates a chat backend for cfg.Model
func NewOpenAIBackend(cfg config.LLMConfig) (*OpenAIBackend, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OpenAI API is not enabled (missing OPENAI_API_KEY)")
	}
	if cfg.OpenAIAPIBase == "" {
		cfg.OpenAIAPIBase = "https://api.openai.com/v1"
	}
	return &OpenAIBackend{
		config:     cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
		log:        log.Logger.With().Str("component", "llm").Str("provider", "openai").Logger(),
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai/" + b.config.Model }

// chatCompletionRequest represents a chat completion request
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`

	MaxCompletionTokens int `json:"max_completion_tokens,omitempty"`
}

// chatMessage represents a single message in the conversation
type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

// chatCompletionResponse represents the API response
type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete performs one chat completion request
func (b *OpenAIBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	body := chatCompletionRequest{
		Model:    b.config.Model,
		Messages: make([]chatMessage, 0, len(req.Messages)),
	}
	// reasoning models reject temperature and max_tokens
	if isOSeries(strings.ToLower(b.config.Model)) {
		body.MaxCompletionTokens = req.MaxTokens
	} else {
		temperature := req.Temperature
		body.Temperature = &temperature
		body.MaxTokens = req.MaxTokens
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toChatMessage(m))
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, chatTool{Type: "function", Function: t})
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(b.config.OpenAIAPIBase, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.config.OpenAIAPIKey)

	start := time.Now()
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		observability.ObserveExternal("openai", "chat", 0, time.Since(start))
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	observability.ObserveExternal("openai", "chat", resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result chatCompletionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("API returned no choices")
	}

	msg := result.Choices[0].Message
	out := &Completion{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	b.log.Debug().
		Str("model", result.Model).
		Str("finish_reason", result.Choices[0].FinishReason).
		Int("tool_calls", len(out.ToolCalls)).
		Int("tokens", result.Usage.TotalTokens).
		Msg("chat completion")

	return out, nil
}

func toChatMessage(m Message) chatMessage {
	cm := chatMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		call := chatToolCall{ID: tc.ID, Type: "function"}
		call.Function.Name = tc.Name
		call.Function.Arguments = tc.Arguments
		cm.ToolCalls = append(cm.ToolCalls, call)
	}
	return cm
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
