package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"hotelchat/internal/config"
)

// ErrUnsupportedModel is returned by NewLanguageModel for a model name no
// backend serves
var ErrUnsupportedModel = errors.New("unsupported language model")

// Role of a conversation message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation. Assistant messages may carry tool
// calls; tool messages answer one call by ID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model's request to run a tool. Arguments is the raw JSON
// object the model produced.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool to the model. Parameters is a JSON schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// CompletionRequest is one model turn
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// Completion is the model's answer: either text, tool calls, or both
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// LanguageModel is a chat model that can call tools
type LanguageModel interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Name() string
}

// NewLanguageModel picks the backend from the model name: "gpt-*" and the
// "o"-series go to OpenAI, "gemini-*" to Gemini.
func NewLanguageModel(ctx context.Context, cfg config.LLMConfig) (LanguageModel, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Model))
	switch {
	case strings.HasPrefix(name, "gpt"), isOSeries(name):
		return NewOpenAIBackend(cfg)
	case strings.HasPrefix(name, "gemini"):
		return NewGeminiBackendFromKey(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, cfg.Model)
	}
}

// isOSeries matches OpenAI reasoning models such as o1, o3-mini and o4-mini
func isOSeries(name string) bool {
	return len(name) >= 2 && name[0] == 'o' && name[1] >= '0' && name[1] <= '9'
}
