package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"estudo-ai/internal/config"
	"estudo-ai/internal/models"
)

func TestIngestionRequiresAI(t *testing.T) {
	cfg := testConfig()
	cfg.GeminiDefaultKey = ""
	conn := openTestDB(t)
	gen := newTestGenerator(cfg, &scriptedProvider{name: config.ProviderGemini}, nil)
	svc := NewIngestionService(NewDocumentService(conn, t.TempDir()), NewPDFService(), gen, NewStudyService(conn), nil)

	_, err := svc.ProcessStudyDocument(context.Background(), &models.Document{StoredPath: "missing.pdf"}, StudyRequest{WeekNumber: 1, Year: 2025})
	if !errors.Is(err, ErrAIUnavailable) {
		t.Fatalf("expected ErrAIUnavailable, got %v", err)
	}
}

func TestIngestionReportsUnreadablePDF(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	docs := NewDocumentService(conn, t.TempDir())
	p := &scriptedProvider{name: config.ProviderGemini, responses: []string{weekResponse}}
	svc := NewIngestionService(docs, NewPDFService(), newTestGenerator(testConfig(), p, nil), NewStudyService(conn), nil)

	doc, err := docs.Create(ctx, "corrompido.pdf", strings.NewReader("isto nao e um pdf"))
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	var steps []string
	_, err = svc.ProcessStudyDocumentWithProgress(ctx, doc, StudyRequest{WeekNumber: 1, Year: 2025}, func(step, _ string, _, _ int) {
		steps = append(steps, step)
	})
	if err == nil || !strings.Contains(err.Error(), "corrompido.pdf") {
		t.Fatalf("expected extraction error naming the file, got %v", err)
	}
	if len(steps) != 1 || steps[0] != "extract" {
		t.Errorf("unexpected progress steps %v", steps)
	}
	if len(p.prompts) != 0 {
		t.Error("generation should not start when extraction fails")
	}
}
