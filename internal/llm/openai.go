package llm

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"estudo-ai/internal/config"
)

// OpenAIProvider calls an OpenAI compatible chat completions endpoint.
type OpenAIProvider struct {
	endpoint string

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewOpenAIProvider(endpoint string) *OpenAIProvider {
	return &OpenAIProvider{endpoint: endpoint, clients: make(map[string]*openai.Client)}
}

func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

func (p *OpenAIProvider) client(apiKey string) *openai.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if p.endpoint != "" {
		cfg.BaseURL = p.endpoint
	}
	c := openai.NewClientWithConfig(cfg)
	p.clients[apiKey] = c
	return c
}

func (p *OpenAIProvider) Generate(ctx context.Context, model, apiKey string, req Request) (string, error) {
	chat := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if req.MaxTokens > 0 {
		chat.MaxTokens = req.MaxTokens
	}

	resp, err := p.client(apiKey).CreateChatCompletion(ctx, chat)
	if err != nil {
		return "", openAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if code, ok := apiErr.Code.(string); ok && code != "" {
			msg = code + ": " + msg
		}
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: msg}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return err
}

// retryAfterHeader parses a Retry-After value given in whole seconds.
func retryAfterHeader(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
