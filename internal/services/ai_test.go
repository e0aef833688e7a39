package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"estudo-ai/internal/config"
	"estudo-ai/internal/content"
	"estudo-ai/internal/llm"
)

// scriptedProvider returns its responses in order, repeating the last one.
type scriptedProvider struct {
	name      string
	responses []string
	err       error
	keys      []string
	prompts   []llm.Request
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(_ context.Context, _ string, key string, req llm.Request) (string, error) {
	p.keys = append(p.keys, key)
	p.prompts = append(p.prompts, req)
	if p.err != nil {
		return "", p.err
	}
	i := min(len(p.prompts), len(p.responses)) - 1
	return p.responses[i], nil
}

func testConfig() config.Config {
	return config.Config{
		GeminiDefaultKey: "default-key",
		Provider:         config.ProviderGemini,
		Models:           config.DefaultModels,
		QuotaCooldown:    5 * time.Minute,
	}
}

func noSleep(context.Context, time.Duration) error { return nil }

func newTestGenerator(cfg config.Config, p llm.Provider, cd llm.Cooldown) *Generator {
	return NewGenerator(cfg, []llm.Provider{p}, cd, nil, WithSleep(noSleep), WithSeed(1))
}

const weekResponse = "Aqui esta:\n```json\n" + `{
  "weekTitle": "A fe que persevera",
  "weekDescription": "Hebreus 11",
  "lessons": [{
    "title": "Pela fe",
    "type": "study",
    "units": [
      {"type": "text", "content": {"title": "Introducao", "body": "Hebreus 11 lista herois da fe."}},
      {"type": "verse", "content": {"verseText": "Ora, a fe e o firme fundamento das coisas que se esperam", "reference": "Hebreus 11:1"}},
      {"type": "reflection", "content": {"title": "Sua fe", "body": "Onde voce precisa confiar mais?"}},
      {"type": "multiple_choice", "content": {"question": "Quem construiu a arca?", "options": ["Noe", "Abraao", "Moises", "Davi"], "correctAnswer": "A"}},
      {"type": "fill_blank", "content": {"question": "Complete: Pela fe, Abraao obedeceu e saiu sem saber para ____ ia.", "correctAnswer": "onde", "options": ["onde", "quando", "como", "porque"]}},
    ]
  }]
}` + "\n```"

func TestGenerateStudyContentFromText(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{weekResponse}}
	g := newTestGenerator(testConfig(), p, nil)

	week, err := g.GenerateStudyContentFromText(context.Background(), "Hebreus 11", 7, 2025, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if week.WeekTitle != "A fe que persevera" || len(week.Lessons) != 1 {
		t.Fatalf("unexpected week %+v", week)
	}

	var medite, responda int
	for _, u := range week.Lessons[0].Units {
		switch u.Stage {
		case content.StageMedite:
			medite++
		case content.StageResponda:
			responda++
		}
		if mc, ok := u.Content.(*content.MultipleChoiceContent); ok && mc.Question == "Quem construiu a arca?" {
			if mc.Options[mc.CorrectIndex] != "Noe" {
				t.Errorf("correct option lost in shuffle: %+v", mc)
			}
		}
	}
	if medite < content.MinMediteUnits || responda < content.MinRespondaUnits {
		t.Errorf("minimums not enforced: medite=%d responda=%d", medite, responda)
	}

	if len(p.prompts) != 1 {
		t.Fatalf("expected one provider call, got %d", len(p.prompts))
	}
	if !strings.Contains(p.prompts[0].User, "semana 7 de 2025") {
		t.Errorf("user prompt misses week and year: %q", p.prompts[0].User)
	}
	if p.prompts[0].System != studySystemPrompt {
		t.Error("expected study system prompt")
	}
}

func TestGenerateStudyContentRepairsTruncatedResponse(t *testing.T) {
	truncated := `{"weekTitle":"Semana curta","lessons":[{"title":"Unica","units":[{"type":"text","content":{"body":"Deus e amor"}}`
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{truncated}}
	g := newTestGenerator(testConfig(), p, nil)

	week, err := g.GenerateStudyContentFromText(context.Background(), "1 Joao 4", 1, 2025, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if week.WeekTitle != "Semana curta" || len(week.Lessons) != 1 {
		t.Fatalf("unexpected week %+v", week)
	}
}

func TestGenerateStudyContentWrapsExecutorFailure(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, err: &llm.APIError{StatusCode: 404, Message: "model not found"}}
	g := newTestGenerator(testConfig(), p, nil)

	_, err := g.GenerateStudyContentFromText(context.Background(), "texto", 1, 2025, GenerateOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasPrefix(err.Error(), "Falha ao gerar conteudo: ") {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, ErrAllModelsUnavailable) {
		t.Errorf("expected all models unavailable in chain, got %v", err)
	}
	if len(p.prompts) != len(config.DefaultModels.Gemini) {
		t.Errorf("expected one call per model, got %d", len(p.prompts))
	}
}

func TestGenerateStudyContentUnparseableResponse(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{"desculpe, nao consigo ajudar"}}
	g := newTestGenerator(testConfig(), p, nil)

	_, err := g.GenerateStudyContentFromText(context.Background(), "texto", 1, 2025, GenerateOptions{})
	if err == nil || !strings.HasPrefix(err.Error(), "Falha ao gerar conteudo: ") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}

func TestGenerateWithoutKeys(t *testing.T) {
	cfg := testConfig()
	cfg.GeminiDefaultKey = ""
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{weekResponse}}
	g := newTestGenerator(cfg, p, nil)

	if g.IsAIConfigured() {
		t.Fatal("expected AI to be unconfigured")
	}
	_, err := g.GenerateStudyContentFromText(context.Background(), "texto", 1, 2025, GenerateOptions{})
	if !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("expected ErrAIUnavailable, got %v", err)
	}
	if len(p.prompts) != 0 {
		t.Error("provider should not be called without keys")
	}
}

func TestGenerateUsesSelectedProviderAndKeySlot(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIKeys[1] = "openai-slot-2"
	cfg.OpenAIDefaultKey = "openai-default"
	gemini := &scriptedProvider{name: config.ProviderGemini, responses: []string{weekResponse}}
	openai := &scriptedProvider{name: config.ProviderOpenAI, responses: []string{weekResponse}}
	g := NewGenerator(cfg, []llm.Provider{gemini, openai}, nil, nil, WithSleep(noSleep))

	_, err := g.GenerateStudyContentFromText(context.Background(), "texto", 1, 2025, GenerateOptions{Provider: "OpenAI", KeyIndex: "2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gemini.keys) != 0 {
		t.Error("gemini should not be called")
	}
	if len(openai.keys) != 1 || openai.keys[0] != "openai-slot-2" {
		t.Errorf("expected slot 2 key first, got %v", openai.keys)
	}
}

func TestGenerateStudyContentFromPDFNormalizesWhitespace(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{weekResponse}}
	g := newTestGenerator(testConfig(), p, nil)

	if _, err := g.GenerateStudyContentFromPDF(context.Background(), "Salmo\t\t23   O Senhor\r\n\r\n\r\ne meu pastor", 3, 2025, GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(p.prompts[0].User, "Salmo 23 O Senhor\n\ne meu pastor") {
		t.Errorf("whitespace not normalized: %q", p.prompts[0].User)
	}
}

func TestGenerateExercisesFromTopic(t *testing.T) {
	resp := `{"exercises": [
		{"type": "true_false", "content": {"statement": "Jonas foi a Ninive.", "isTrue": true}},
		{"type": "multiple_choice", "stage": "estude", "content": {"question": "Quem engoliu Jonas?", "options": ["Um grande peixe", "Um leao"], "correctIndex": 0}},
		{"type": "multiple_choice", "content": {"question": "Para onde Jonas fugiu?", "options": ["Tarsis", "Ninive", "Jerusalem", "Egito"], "correctIndex": 0}},
		{"type": "text", "content": {"body": "nao e exercicio"}},
		{"type": "true_false", "content": {"statement": "Jonas ficou tres dias no peixe.", "isTrue": true}}
	]}`
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{resp}}
	g := newTestGenerator(testConfig(), p, nil)

	units, err := g.GenerateExercisesFromTopic(context.Background(), "Jonas", 2, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 exercises, got %d", len(units))
	}
	for _, u := range units {
		if !u.Type.IsQuestion() || u.Stage != content.StageResponda {
			t.Errorf("unexpected unit %+v", u)
		}
	}
	if _, ok := units[1].Content.(*content.MultipleChoiceContent); !ok {
		t.Errorf("expected the malformed question to be skipped, got %T", units[1].Content)
	}

	if !strings.Contains(p.prompts[0].User, "Crie 2 exercicios") {
		t.Errorf("count not passed to prompt: %q", p.prompts[0].User)
	}
}

func TestGenerateExercisesFailsWhenNothingValid(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{`[]`}}
	g := newTestGenerator(testConfig(), p, nil)

	_, err := g.GenerateExercisesFromTopic(context.Background(), "Jonas", 0, GenerateOptions{})
	if err == nil || !strings.HasPrefix(err.Error(), "Falha ao gerar exercicios: ") {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestGenerateUniquePracticeQuestions(t *testing.T) {
	resp := `{"questions": [
		{"question": "Quem foi lancado na cova dos leoes?", "options": ["Daniel", "Jose", "Elias", "Samuel"], "correctIndex": 0, "explanation": "Daniel 6"},
		{"question": "Quem interpretou os sonhos do farao?", "options": ["Jose", "Daniel", "Moises", "Arao"], "correctAnswer": "Jose"}
	]}`
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{resp}}
	g := newTestGenerator(testConfig(), p, nil)

	existing := []string{"Quem foi lancado na cova dos leoes?"}
	qs, err := g.GenerateUniquePracticeQuestions(context.Background(), "Daniel", "Fidelidade", existing, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].Options[qs[0].CorrectIndex] != "Jose" {
		t.Fatalf("unexpected questions %+v", qs)
	}
	if !strings.Contains(p.prompts[0].User, existing[0]) {
		t.Error("existing questions should be listed in the prompt")
	}
}

func TestGenerateReflectionQuestions(t *testing.T) {
	resp := `{"questions": ["Como voce perdoa?", {"question": "Quem precisa do seu perdao?"}, "como voce perdoa?", "", "Qual passo dar hoje?"]}`
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{resp}}
	g := newTestGenerator(testConfig(), p, nil)

	qs, err := g.GenerateReflectionQuestions(context.Background(), "Mateus 18", 0, GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Como voce perdoa?", "Quem precisa do seu perdao?", "Qual passo dar hoje?"}
	if strings.Join(qs, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, qs)
	}
}

func TestRecoveryVerseSkipsAIDuringCooldown(t *testing.T) {
	cd := llm.NewMemoryCooldown(time.Minute)
	cd.Mark(context.Background())
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{`{"reference":"Joao 1:1","text":"No principio era o Verbo"}`}}
	g := newTestGenerator(testConfig(), p, cd)

	verse, fromAI := g.GenerateRecoveryVerse(context.Background())
	if fromAI {
		t.Error("expected fallback verse while cooling down")
	}
	if verse.Reference == "" || verse.Text == "" {
		t.Errorf("fallback verse is empty: %+v", verse)
	}
	if len(p.prompts) != 0 {
		t.Error("provider must not be called during cooldown")
	}
}

func TestRecoveryVerseFromModel(t *testing.T) {
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{`{"reference":"Joao 1:1","text":"No principio era o Verbo","reflection":"Recomece"}`}}
	g := newTestGenerator(testConfig(), p, llm.NewMemoryCooldown(time.Minute))

	verse, fromAI := g.GenerateRecoveryVerse(context.Background())
	if !fromAI || verse.Reference != "Joao 1:1" || verse.Reflection != "Recomece" {
		t.Errorf("unexpected verse %+v (fromAI=%v)", verse, fromAI)
	}
}

func TestRecoveryVerseQuotaErrorStartsCooldown(t *testing.T) {
	cd := llm.NewMemoryCooldown(time.Minute)
	p := &scriptedProvider{name: config.ProviderGemini, err: &llm.APIError{StatusCode: 429, Message: "insufficient_quota"}}
	g := newTestGenerator(testConfig(), p, cd)

	if _, fromAI := g.GenerateRecoveryVerse(context.Background()); fromAI {
		t.Fatal("expected fallback after quota error")
	}
	calls := len(p.prompts)
	if !cd.Active(context.Background()) {
		t.Fatal("quota error should start the cooldown")
	}
	g.GenerateRecoveryVerse(context.Background())
	if len(p.prompts) != calls {
		t.Error("second call should be served from the fallback list")
	}
}
