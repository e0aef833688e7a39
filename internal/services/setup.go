package services

import (
	"errors"

	"estudo-ai/internal/config"
	"estudo-ai/internal/llm"
	"estudo-ai/internal/logger"
)

// NewGeneratorFromConfig wires the Gemini and OpenAI providers and the quota cooldown.
// The cooldown is shared through Redis when REDIS_URL is set, in process otherwise.
// The returned close function releases provider clients and the Redis connection.
func NewGeneratorFromConfig(cfg config.Config, log *logger.Logger, opts ...GeneratorOption) (*Generator, func() error) {
	if log == nil {
		log = logger.NewNop()
	}
	gemini := llm.NewGeminiProvider(log)
	openai := llm.NewOpenAIProvider(cfg.OpenAIEndpoint)
	closers := []func() error{gemini.Close}

	var cooldown llm.Cooldown = llm.NewMemoryCooldown(cfg.QuotaCooldown)
	if cfg.RedisURL != "" {
		rc, err := llm.NewRedisCooldown(cfg.RedisURL, cfg.QuotaCooldown, log)
		if err != nil {
			log.Warn("redis cooldown unavailable, using in-process cooldown", "error", err)
		} else {
			cooldown = rc
			closers = append(closers, rc.Close)
		}
	}

	g := NewGenerator(cfg, []llm.Provider{gemini, openai}, cooldown, log, opts...)
	return g, func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
}
