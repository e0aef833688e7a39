// Package llm runs prompts against Gemini or OpenAI, falling back across keys and models.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estudo-ai/internal/jsonfix"
	"estudo-ai/internal/logger"
)

const (
	maxAttempts = 3
	baseBackoff = time.Second
	maxBackoff  = 5 * time.Second
)

// Request is a single prompt pair sent to a provider.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Provider performs one model call with one key. Implementations translate SDK errors
// into *APIError so the executor can classify them.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model, apiKey string, req Request) (string, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Executor tries every key (in order) against every model (in priority order), retrying
// throttled calls with backoff and skipping models that cannot succeed.
type Executor struct {
	Provider Provider
	Models   []string
	Keys     []string
	Cooldown Cooldown
	Log      *logger.Logger
	Sleep    SleepFunc
}

// Generate returns the JSON candidate extracted from the first successful response.
// A failure that cannot be classified is returned as is when it happens on the last
// combination; otherwise exhaustion yields an *AllModelsError.
func (e *Executor) Generate(ctx context.Context, req Request) (string, error) {
	if len(e.Keys) == 0 {
		return "", ErrNoKeys
	}
	if len(e.Models) == 0 {
		return "", fmt.Errorf("no models configured for %s", e.Provider.Name())
	}
	log := e.Log
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("provider", e.Provider.Name())
	sleep := e.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	total := len(e.Keys) * len(e.Models)
	combo := 0
	var last error
	for ki, key := range e.Keys {
		for _, model := range e.Models {
			combo++
			lastCombo := combo == total

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				if err := ctx.Err(); err != nil {
					return "", err
				}
				text, err := e.Provider.Generate(ctx, model, key, req)
				if err == nil && strings.TrimSpace(text) == "" {
					err = ErrEmptyResponse
				}
				if err == nil {
					log.Info("model call succeeded", "model", model, "key_slot", ki+1, "attempt", attempt)
					return jsonfix.Extract(text), nil
				}
				if ctxErr := ctx.Err(); ctxErr != nil {
					return "", ctxErr
				}

				last = err
				kind, wait := classify(err)
				log.Warn("model call failed",
					"model", model,
					"key_slot", ki+1,
					"attempt", attempt,
					"kind", kind.String(),
					"error", err,
				)

				if kind == failQuota || kind == failThrottle {
					e.markCooldown(ctx)
				}
				if kind == failThrottle && attempt < maxAttempts {
					if err := sleep(ctx, backoff(attempt, wait)); err != nil {
						return "", err
					}
					continue
				}
				if kind == failOther && lastCombo {
					return "", err
				}
				break
			}
		}
	}

	log.Error("all models unavailable", "error", last)
	return "", &AllModelsError{Provider: e.Provider.Name(), Last: last}
}

func (e *Executor) markCooldown(ctx context.Context) {
	if e.Cooldown != nil {
		e.Cooldown.Mark(ctx)
	}
}

// backoff is min(1s * 2^(attempt-1), 5s), or the server suggestion capped at 5s.
func backoff(attempt int, suggested time.Duration) time.Duration {
	if suggested > 0 {
		return min(suggested, maxBackoff)
	}
	return min(baseBackoff<<(attempt-1), maxBackoff)
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
