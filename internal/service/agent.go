package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SystemPrompt opens every conversation
const SystemPrompt = "You are a helpful hotel assistant."

// Tool is something the agent can offer to the model. Calls always answer
// with text the model can read.
type Tool interface {
	Name() string
	Definition(ctx context.Context) ToolDefinition
	Call(ctx context.Context, rawArgs string) string
}

// AgentOptions tunes the tool loop
type AgentOptions struct {
	Temperature   float64
	MaxTokens     int
	MaxToolRounds int
}

// Agent answers user messages, letting the model call tools between turns
type Agent struct {
	llm   LanguageModel
	tools map[string]Tool
	order []string
	opts  AgentOptions
	log   zerolog.Logger
}

func NewAgent(llm LanguageModel, opts AgentOptions, logger zerolog.Logger, tools ...Tool) *Agent {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 4
	}
	a := &Agent{
		llm:   llm,
		tools: make(map[string]Tool, len(tools)),
		opts:  opts,
		log:   logger.With().Str("component", "agent").Str("model", llm.Name()).Logger(),
	}
	for _, t := range tools {
		a.tools[t.Name()] = t
		a.order = append(a.order, t.Name())
	}
	return a
}

// Reply runs one user turn on conv and returns the assistant's answer. The
// conversation history only changes when the turn succeeds.
func (a *Agent) Reply(ctx context.Context, conv *Conversation, message string) (string, error) {
	conv.mu.Lock()
	defer conv.mu.Unlock()

	start := time.Now()
	defs := make([]ToolDefinition, 0, len(a.order))
	for _, name := range a.order {
		defs = append(defs, a.tools[name].Definition(ctx))
	}

	turn := []Message{{Role: RoleUser, Content: message}}
	rounds := 0
	for {
		req := CompletionRequest{
			Messages:    a.transcript(conv.history, turn),
			Temperature: a.opts.Temperature,
			MaxTokens:   a.opts.MaxTokens,
		}
		// past the round limit the model has to answer with what it has
		if rounds < a.opts.MaxToolRounds {
			req.Tools = defs
		}

		completion, err := a.llm.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("language model %s: %w", a.llm.Name(), err)
		}

		if len(completion.ToolCalls) == 0 || rounds >= a.opts.MaxToolRounds {
			turn = append(turn, Message{Role: RoleAssistant, Content: completion.Content})
			conv.commit(turn)
			a.log.Info().
				Str("session_id", conv.ID).
				Int("tool_rounds", rounds).
				Dur("took", time.Since(start)).
				Msg("chat turn")
			return completion.Content, nil
		}

		rounds++
		turn = append(turn, Message{Role: RoleAssistant, Content: completion.Content, ToolCalls: completion.ToolCalls})
		for _, call := range completion.ToolCalls {
			turn = append(turn, Message{
				Role:       RoleTool,
				Content:    a.runTool(ctx, call),
				ToolCallID: call.ID,
				Name:       call.Name,
			})
		}
	}
}

func (a *Agent) runTool(ctx context.Context, call ToolCall) string {
	tool, ok := a.tools[call.Name]
	if !ok {
		a.log.Warn().Str("tool", call.Name).Msg("model called an unknown tool")
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
	a.log.Debug().Str("tool", call.Name).Str("arguments", call.Arguments).Msg("tool call")
	return tool.Call(ctx, call.Arguments)
}

func (a *Agent) transcript(history, turn []Message) []Message {
	msgs := make([]Message, 0, 1+len(history)+len(turn))
	msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt})
	msgs = append(msgs, history...)
	return append(msgs, turn...)
}

// Conversation is one chat thread. Turns on the same thread run one at a time.
type Conversation struct {
	ID string

	mu      sync.Mutex
	history []Message
	touched time.Time
	now     func() time.Time
}

func NewConversation(id string) *Conversation {
	return newConversation(id, time.Now)
}

func newConversation(id string, now func() time.Time) *Conversation {
	return &Conversation{ID: id, touched: now(), now: now}
}

// History returns a copy of the messages exchanged so far
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Reset forgets the thread's history
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
	c.touched = c.now()
}

// commit must be called with mu held
func (c *Conversation) commit(turn []Message) {
	c.history = append(c.history, turn...)
	c.touched = c.now()
}

// SessionStore keeps conversations by session id, forgetting ones idle for
// longer than the TTL
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Conversation
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{sessions: make(map[string]*Conversation), ttl: ttl, now: time.Now}
}

// Open returns the conversation for id, starting a new one under a fresh id
// when id is empty or unknown
func (s *SessionStore) Open(id string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expire()

	if conv, ok := s.sessions[id]; ok && id != "" {
		return conv
	}
	conv := newConversation(uuid.NewString(), s.now)
	s.sessions[conv.ID] = conv
	return conv
}

// Delete drops a conversation. It reports whether one existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live conversations
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expire() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, conv := range s.sessions {
		if conv.mu.TryLock() {
			idle := conv.touched.Before(cutoff)
			conv.mu.Unlock()
			if idle {
				delete(s.sessions, id)
			}
		}
	}
}
