package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"estudo-ai/internal/config"
	"estudo-ai/internal/content"
	"estudo-ai/internal/jsonfix"
	"estudo-ai/internal/llm"
	"estudo-ai/internal/logger"
)

var (
	// ErrAIUnavailable is returned when no provider key is configured for the request.
	ErrAIUnavailable = errors.New("integracao de IA nao configurada")
	// ErrAllModelsUnavailable mirrors llm.ErrAllModelsUnavailable for callers of this package.
	ErrAllModelsUnavailable = llm.ErrAllModelsUnavailable
	// ErrEmptyResponse mirrors llm.ErrEmptyResponse.
	ErrEmptyResponse = llm.ErrEmptyResponse
)

const (
	defaultExerciseCount   = 5
	maxExerciseCount       = 20
	defaultReflectionCount = 3
	maxReflectionCount     = 10
)

// GenerateOptions selects the provider and API key slot for a single call.
type GenerateOptions struct {
	Provider string
	KeyIndex string
}

// Generator exposes the content generation operations. It is safe for concurrent use;
// every call gets its own executor and normalizer.
type Generator struct {
	cfg       config.Config
	providers map[string]llm.Provider
	cooldown  llm.Cooldown
	log       *logger.Logger
	repairer  jsonfix.Repairer
	sleep     llm.SleepFunc
	seed      *int64
}

type GeneratorOption func(*Generator)

// WithSleep replaces the backoff sleeper, mainly for tests.
func WithSleep(sleep llm.SleepFunc) GeneratorOption {
	return func(g *Generator) { g.sleep = sleep }
}

// WithSeed makes option shuffling reproducible.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) { g.seed = &seed }
}

func WithRepairer(r jsonfix.Repairer) GeneratorOption {
	return func(g *Generator) { g.repairer = r }
}

func NewGenerator(cfg config.Config, providers []llm.Provider, cooldown llm.Cooldown, log *logger.Logger, opts ...GeneratorOption) *Generator {
	if log == nil {
		log = logger.NewNop()
	}
	if cooldown == nil {
		cooldown = llm.NewMemoryCooldown(cfg.QuotaCooldown)
	}
	g := &Generator{
		cfg:       cfg,
		providers: make(map[string]llm.Provider, len(providers)),
		cooldown:  cooldown,
		log:       log.With("service", "Generator"),
		repairer:  jsonfix.HeuristicRepairer{},
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsAIConfigured reports whether any provider key is present.
func (g *Generator) IsAIConfigured() bool {
	return g.cfg.HasAnyKey()
}

// Cooldown exposes the quota cooldown shared with low-priority features.
func (g *Generator) Cooldown() llm.Cooldown {
	return g.cooldown
}

// ProviderFor returns the provider name a call with opts will use.
func (g *Generator) ProviderFor(opts GenerateOptions) string {
	if name := strings.ToLower(strings.TrimSpace(opts.Provider)); name != "" {
		return name
	}
	return g.cfg.Provider
}

func (g *Generator) executor(opts GenerateOptions) (*llm.Executor, error) {
	name := g.ProviderFor(opts)
	provider, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: provedor %q", ErrAIUnavailable, name)
	}
	keys := g.cfg.KeyOrder(name, opts.KeyIndex)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: nenhuma chave para %s", ErrAIUnavailable, name)
	}
	models := g.cfg.Models.Gemini
	if name == config.ProviderOpenAI {
		models = g.cfg.Models.OpenAI
	}
	return &llm.Executor{
		Provider: provider,
		Models:   models,
		Keys:     keys,
		Cooldown: g.cooldown,
		Log:      g.log,
		Sleep:    g.sleep,
	}, nil
}

// generateJSON runs the prompt pair and parses the extracted JSON into v.
func (g *Generator) generateJSON(ctx context.Context, req llm.Request, opts GenerateOptions, v any) error {
	exec, err := g.executor(opts)
	if err != nil {
		return err
	}
	raw, err := exec.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := jsonfix.SafeParseWith(g.repairer, raw, v); err != nil {
		return fmt.Errorf("resposta da IA nao e um JSON valido: %w", err)
	}
	return nil
}

func (g *Generator) normalizer() *content.Normalizer {
	if g.seed != nil {
		return content.NewSeededNormalizer(*g.seed, g.log)
	}
	return content.NewNormalizer(g.log)
}

// fail logs err and returns the user-facing error for what ("conteudo", "exercicios",
// "perguntas"), keeping err in the chain.
func (g *Generator) fail(what string, err error) error {
	g.log.Error("generation failed", "what", what, "error", err)
	return fmt.Errorf("Falha ao gerar %s: %w", what, err)
}

// GenerateStudyContentFromText turns source text into a normalized and validated week.
func (g *Generator) GenerateStudyContentFromText(ctx context.Context, text string, weekNumber, year int, opts GenerateOptions) (*content.WeekContent, error) {
	if strings.TrimSpace(text) == "" {
		return nil, g.fail("conteudo", errors.New("texto de origem vazio"))
	}

	req := llm.Request{
		System:      studySystemPrompt,
		User:        buildStudyUserPrompt(text, weekNumber, year),
		Temperature: 0.7,
	}
	var parsed map[string]any
	if err := g.generateJSON(ctx, req, opts, &parsed); err != nil {
		return nil, g.fail("conteudo", err)
	}
	if inner, ok := parsed["week"].(map[string]any); ok {
		parsed = inner
	}

	n := g.normalizer()
	week := n.ValidateAndCleanContent(n.NormalizeWeek(parsed, weekNumber))
	if len(week.Lessons) == 0 {
		return nil, g.fail("conteudo", errors.New("a IA nao retornou nenhuma licao"))
	}
	g.log.Info("study content generated", "week", weekNumber, "year", year, "lessons", len(week.Lessons))
	return &week, nil
}

var whitespaceRun = regexp.MustCompile(`[ \t\f\v]+`)
var blankLines = regexp.MustCompile(`\n\s*\n+`)

// GenerateStudyContentFromPDF normalizes whitespace of extracted PDF text and delegates to
// GenerateStudyContentFromText.
func (g *Generator) GenerateStudyContentFromPDF(ctx context.Context, pdfText string, weekNumber, year int, opts GenerateOptions) (*content.WeekContent, error) {
	return g.GenerateStudyContentFromText(ctx, normalizePDFText(pdfText), weekNumber, year, opts)
}

func normalizePDFText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// GenerateExercisesFromTopic returns up to count validated question units about topic.
func (g *Generator) GenerateExercisesFromTopic(ctx context.Context, topic string, count int, opts GenerateOptions) ([]content.Unit, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, g.fail("exercicios", errors.New("tema vazio"))
	}
	count = boundedCount(count, defaultExerciseCount, maxExerciseCount)

	var parsed any
	req := llm.Request{System: exerciseSystemPrompt, User: buildExerciseUserPrompt(topic, count), Temperature: 0.7}
	if err := g.generateJSON(ctx, req, opts, &parsed); err != nil {
		return nil, g.fail("exercicios", err)
	}

	n := g.normalizer()
	var questions []content.Unit
	for _, u := range n.NormalizeUnits(itemsOf(parsed, "exercises", "units", "questions")) {
		if u.Type.IsQuestion() {
			u.Stage = content.StageResponda
			questions = append(questions, u)
		}
	}
	questions = n.CleanUnits(questions)
	if len(questions) == 0 {
		return nil, g.fail("exercicios", errors.New("nenhum exercicio valido retornado"))
	}
	if len(questions) > count {
		questions = questions[:count]
	}
	return questions, nil
}

// GenerateUniquePracticeQuestions returns practice questions for a week that do not repeat
// any of existing.
func (g *Generator) GenerateUniquePracticeQuestions(ctx context.Context, weekTitle, weekDescription string, existing []string, opts GenerateOptions) ([]content.PracticeQuestion, error) {
	var parsed any
	req := llm.Request{
		System:      practiceSystemPrompt,
		User:        buildPracticeUserPrompt(weekTitle, weekDescription, existing),
		Temperature: 0.8,
	}
	if err := g.generateJSON(ctx, req, opts, &parsed); err != nil {
		return nil, g.fail("perguntas", err)
	}

	questions := g.normalizer().NormalizePracticeQuestions(itemsOf(parsed, "questions"), existing)
	if len(questions) == 0 {
		return nil, g.fail("perguntas", errors.New("nenhuma pergunta nova retornada"))
	}
	return questions, nil
}

// GenerateReflectionQuestions returns up to count open questions about text.
func (g *Generator) GenerateReflectionQuestions(ctx context.Context, text string, count int, opts GenerateOptions) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, g.fail("perguntas", errors.New("texto de origem vazio"))
	}
	count = boundedCount(count, defaultReflectionCount, maxReflectionCount)

	var parsed any
	req := llm.Request{System: reflectionSystemPrompt, User: buildReflectionUserPrompt(text, count), Temperature: 0.8}
	if err := g.generateJSON(ctx, req, opts, &parsed); err != nil {
		return nil, g.fail("perguntas", err)
	}

	seen := make(map[string]bool)
	var out []string
	for _, item := range itemsOf(parsed, "questions", "reflections") {
		var q string
		switch v := item.(type) {
		case string:
			q = v
		case map[string]any:
			q, _ = v["question"].(string)
		}
		q = strings.TrimSpace(q)
		if q == "" || seen[strings.ToLower(q)] {
			continue
		}
		seen[strings.ToLower(q)] = true
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	if len(out) == 0 {
		return nil, g.fail("perguntas", errors.New("nenhuma pergunta retornada"))
	}
	return out, nil
}

func boundedCount(count, def, limit int) int {
	if count <= 0 {
		return def
	}
	return min(count, limit)
}

// itemsOf returns v itself when it is a list, or the first list found under keys.
func itemsOf(v any, keys ...string) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range keys {
			if items, ok := t[k].([]any); ok {
				return items
			}
		}
	}
	return nil
}
