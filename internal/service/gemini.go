package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"hotelchat/internal/config"
	"hotelchat/internal/observability"
	"hotelchat/internal/utils"
)

// ContentGenerator is the subset of genai.Models used for chat
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Ensure genai.Models satisfies ContentGenerator at compile time.
var _ ContentGenerator = (*genai.Models)(nil)

// GeminiBackend runs chat turns through Gemini function calling
type GeminiBackend struct {
	models ContentGenerator
	model  string
	log    zerolog.Logger
}

var _ LanguageModel = (*GeminiBackend)(nil)

func NewGeminiBackend(models ContentGenerator, model string) *GeminiBackend {
	return &GeminiBackend{
		models: models,
		model:  model,
		log:    log.Logger.With().Str("component", "llm").Str("provider", "gemini").Logger(),
	}
}

// NewGeminiBackendFromKey connects to the Gemini API with cfg.GoogleAPIKey
func NewGeminiBackendFromKey(ctx context.Context, cfg config.LLMConfig) (*GeminiBackend, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, fmt.Errorf("Gemini API is not enabled (missing GOOGLE_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GoogleAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return NewGeminiBackend(client.Models, cfg.Model), nil
}

func (b *GeminiBackend) Name() string { return "gemini/" + b.model }

func (b *GeminiBackend) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	temp := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(req.MaxTokens),
	}

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleUser:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		case RoleAssistant:
			contents = append(contents, b.assistantContent(m))
		case RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       m.ToolCallID,
				Name:     m.Name,
				Response: map[string]any{"output": m.Content},
			}}
			// all responses to one model turn travel in a single user turn
			if n := len(contents); n > 0 && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
			} else {
				contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{part}})
			}
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, len(req.Tools))
		for i, t := range req.Tools {
			decls[i] = &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: t.Parameters,
			}
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	start := time.Now()
	resp, err := b.models.GenerateContent(ctx, b.model, contents, cfg)
	status := 200
	if err != nil {
		status = 0
	}
	observability.ObserveExternal("gemini", "generate_content", status, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	out := &Completion{}
	var text strings.Builder
	for i, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode function call arguments: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: part.FunctionCall.Name, Arguments: string(args)})
		case part.Text != "" && !part.Thought:
			text.WriteString(part.Text)
		}
	}
	out.Content = text.String()

	b.log.Debug().
		Str("model", b.model).
		Int("tool_calls", len(out.ToolCalls)).
		Msg("generate content")

	return out, nil
}

func (b *GeminiBackend) assistantContent(m Message) *genai.Content {
	c := &genai.Content{Role: genai.RoleModel}
	if m.Content != "" {
		c.Parts = append(c.Parts, &genai.Part{Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		args := map[string]any{}
		if tc.Arguments != "" {
			if err := utils.DecodeModelJSON(tc.Arguments, &args); err != nil {
				// keep the text so the model still sees what it sent
				b.log.Debug().Err(err).Str("tool", tc.Name).Msg("undecodable function call arguments")
				args = map[string]any{"raw": tc.Arguments}
			}
		}
		c.Parts = append(c.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
	}
	return c
}

func isFunctionResponses(c *genai.Content) bool {
	if c.Role != genai.RoleUser || len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.FunctionResponse == nil {
			return false
		}
	}
	return true
}
