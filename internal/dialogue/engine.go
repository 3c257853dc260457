// Package dialogue produces assistant replies from the conversation so far.
package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/wolfman30/dental-ai-assistant/pkg/logging"
)

// ConfirmMarker is embedded by the engine in a reply when the patient has just
// confirmed their appointment. Callers strip it before showing the reply.
const ConfirmMarker = "[CONFIRM_APPOINTMENT]"

// Turn is one earlier message of the conversation.
type Turn struct {
	Role    string
	Content string
}

// Engine turns a history plus the new user message into a reply.
type Engine interface {
	Reply(ctx context.Context, history []Turn, message string) (string, error)
}

// HasConfirmMarker reports whether reply carries ConfirmMarker.
func HasConfirmMarker(reply string) bool {
	return strings.Contains(reply, ConfirmMarker)
}

// StripConfirmMarker removes every ConfirmMarker occurrence and tidies whitespace.
func StripConfirmMarker(reply string) string {
	return strings.TrimSpace(strings.ReplaceAll(reply, ConfirmMarker, ""))
}

// LLMEngine prompts an LLMClient with the clinic system prompt.
type LLMEngine struct {
	client      LLMClient
	model       string
	system      string
	maxTokens   int32
	temperature float32
	maxHistory  int
	logger      *logging.Logger
}

// EngineOption customises an LLMEngine.
type EngineOption func(*LLMEngine)

// WithModel sets the model id passed on every request.
func WithModel(model string) EngineOption {
	return func(e *LLMEngine) {
		e.model = strings.TrimSpace(model)
	}
}

// WithMaxHistory bounds how many earlier turns are sent to the model.
func WithMaxHistory(turns int) EngineOption {
	return func(e *LLMEngine) {
		if turns > 0 {
			e.maxHistory = turns
		}
	}
}

// WithSystemPrompt replaces the default clinic prompt.
func WithSystemPrompt(prompt string) EngineOption {
	return func(e *LLMEngine) {
		if strings.TrimSpace(prompt) != "" {
			e.system = prompt
		}
	}
}

func NewLLMEngine(client LLMClient, clinicName string, logger *logging.Logger, opts ...EngineOption) *LLMEngine {
	if client == nil {
		panic("dialogue: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &LLMEngine{
		client:      client,
		system:      SystemPrompt(clinicName),
		maxTokens:   400,
		temperature: 0.3,
		maxHistory:  20,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *LLMEngine) Reply(ctx context.Context, history []Turn, message string) (string, error) {
	if len(history) > e.maxHistory {
		history = history[len(history)-e.maxHistory:]
	}
	messages := make([]ChatMessage, 0, len(history)+1)
	for _, turn := range history {
		role := ChatRoleUser
		if turn.Role == ChatRoleAssistant {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: message})

	resp, err := e.client.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      e.system,
		Messages:    messages,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("dialogue: empty reply")
	}
	e.logger.Debug("dialogue reply generated",
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"stop_reason", resp.StopReason,
	)
	return resp.Text, nil
}

// ScriptedEngine replays canned replies in order and then repeats Default.
// Used for local runs without an LLM key and in tests.
type ScriptedEngine struct {
	mu      sync.Mutex
	replies []string
	Default string
	calls   []string
}

func NewScriptedEngine(replies ...string) *ScriptedEngine {
	return &ScriptedEngine{
		replies: replies,
		Default: "Pouvez-vous me donner votre nom, votre e-mail, votre téléphone ainsi que la date et l'heure souhaitées ?",
	}
}

func (s *ScriptedEngine) Reply(_ context.Context, _ []Turn, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, message)
	if len(s.replies) == 0 {
		return s.Default, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Calls returns the messages the engine was asked to answer.
func (s *ScriptedEngine) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
