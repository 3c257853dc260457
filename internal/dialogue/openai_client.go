package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1/"

type chatCompletionsAPI interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAILLMClient talks to any OpenAI-compatible chat completions endpoint (Groq by default).
type OpenAILLMClient struct {
	api   chatCompletionsAPI
	model string
}

// NewOpenAILLMClient builds a client for baseURL. Extra request options are appended
// after the key and base URL.
func NewOpenAILLMClient(apiKey, baseURL, model string, opts ...option.RequestOption) (*OpenAILLMClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("dialogue: openai-compatible api key is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultGroqBaseURL
	}
	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
	}, opts...)
	client := openai.NewClient(reqOpts...)
	return newOpenAILLMClient(&client.Chat.Completions, model), nil
}

func newOpenAILLMClient(api chatCompletionsAPI, model string) *OpenAILLMClient {
	if api == nil {
		panic("dialogue: chat completions client cannot be nil")
	}
	return &OpenAILLMClient{api: api, model: model}
}

func (c *OpenAILLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return LLMResponse{}, errors.New("dialogue: model is required")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch msg.Role {
		case ChatRoleSystem:
			messages = append(messages, openai.SystemMessage(content))
		case ChatRoleUser:
			messages = append(messages, openai.UserMessage(content))
		case ChatRoleAssistant:
			messages = append(messages, openai.AssistantMessage(content))
		default:
			return LLMResponse{}, fmt.Errorf("dialogue: unsupported role %q", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	// Negative temperature leaves the provider default.
	if req.Temperature >= 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	completion, err := c.api.New(ctx, params)
	if err != nil {
		return LLMResponse{}, fmt.Errorf("dialogue: chat completion failed: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return LLMResponse{}, errors.New("dialogue: chat completion returned no choices")
	}

	choice := completion.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return LLMResponse{}, errors.New("dialogue: chat completion returned empty content")
	}
	return LLMResponse{
		Text:         text,
		StopReason:   choice.FinishReason,
		InputTokens:  int32(completion.Usage.PromptTokens),
		OutputTokens: int32(completion.Usage.CompletionTokens),
	}, nil
}
