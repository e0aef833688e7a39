package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"estudo-ai/internal/config"
	"estudo-ai/internal/logger"
)

// GeminiProvider calls the Gemini API. One client is kept per API key.
type GeminiProvider struct {
	log *logger.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiProvider(log *logger.Logger) *GeminiProvider {
	if log == nil {
		log = logger.NewNop()
	}
	return &GeminiProvider{
		log:     log.With("service", "GeminiProvider"),
		clients: make(map[string]*genai.Client),
	}
}

func (p *GeminiProvider) Name() string { return config.ProviderGemini }

func (p *GeminiProvider) client(ctx context.Context, apiKey string) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[apiKey]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.clients[apiKey] = c
	return c, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, model, apiKey string, req Request) (string, error) {
	client, err := p.client(ctx, apiKey)
	if err != nil {
		return "", err
	}

	m := client.GenerativeModel(model)
	m.ResponseMIMEType = "application/json"
	if req.System != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature > 0 {
		m.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.User))
	if err != nil {
		return "", geminiError(err)
	}
	return geminiText(resp), nil
}

// Close releases every cached client.
func (p *GeminiProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for key, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.clients, key)
	}
	return errors.Join(errs...)
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}

// geminiError converts SDK errors that carry an HTTP status into *APIError.
func geminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		apiErr := &APIError{StatusCode: gerr.Code, Message: gerr.Message}
		if apiErr.Message == "" {
			apiErr.Message = err.Error()
		}
		if gerr.Header != nil {
			apiErr.RetryAfter = retryAfterHeader(gerr.Header.Get("Retry-After"))
		}
		return apiErr
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return &APIError{StatusCode: coded.HTTPCode(), Message: err.Error()}
	}
	return err
}
