package services

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"estudo-ai/internal/content"
	"estudo-ai/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "estudos.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sampleWeek(title string) content.WeekContent {
	return content.WeekContent{
		WeekTitle:       title,
		WeekDescription: "descricao",
		Lessons: []content.Lesson{{
			Title: "Licao 1",
			Type:  content.LessonStudy,
			Units: []content.Unit{{
				Type:    content.UnitText,
				Stage:   content.StageEstude,
				Content: &content.TextContent{Title: "Intro", Body: "Corpo"},
				XPValue: 5,
			}},
			XPReward:         50,
			EstimatedMinutes: 10,
		}},
	}
}

func TestStudyServiceSaveReplacesWeek(t *testing.T) {
	ctx := context.Background()
	studies := NewStudyService(openTestDB(t))

	first, err := studies.Save(ctx, 12, 2025, "gemini", sampleWeek("Primeira"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := studies.Save(ctx, 12, 2025, "openai", sampleWeek("Segunda"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected upsert to keep id %d, got %d", first.ID, second.ID)
	}

	got, err := studies.GetByWeek(ctx, 2025, 12)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Segunda" || got.Provider != "openai" {
		t.Errorf("unexpected study %+v", got)
	}
	text, ok := got.Content.Lessons[0].Units[0].Content.(*content.TextContent)
	if !ok || text.Body != "Corpo" {
		t.Errorf("content did not round trip: %#v", got.Content.Lessons[0].Units[0].Content)
	}
}

func TestStudyServiceNotFound(t *testing.T) {
	studies := NewStudyService(openTestDB(t))
	if _, err := studies.GetByWeek(context.Background(), 2025, 1); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("expected ErrStudyNotFound, got %v", err)
	}
	if _, err := studies.GetByID(context.Background(), 99); !errors.Is(err, ErrStudyNotFound) {
		t.Fatalf("expected ErrStudyNotFound, got %v", err)
	}
}

func TestStudyServiceListNewestFirst(t *testing.T) {
	ctx := context.Background()
	studies := NewStudyService(openTestDB(t))
	for _, w := range []struct{ week, year int }{{50, 2024}, {2, 2025}, {1, 2025}} {
		if _, err := studies.Save(ctx, w.week, w.year, "gemini", sampleWeek("x"), sql.NullInt64{}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	list, err := studies.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 studies, got %d", len(list))
	}
	if list[0].Year != 2025 || list[0].WeekNumber != 2 || list[2].Year != 2024 {
		t.Errorf("unexpected order %+v", list)
	}
	if list[0].Lessons != 1 {
		t.Errorf("expected lesson count 1, got %d", list[0].Lessons)
	}
}

func TestPracticeServiceSchedulesReviews(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	study, err := NewStudyService(conn).Save(ctx, 3, 2025, "gemini", sampleWeek("Daniel"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("save study: %v", err)
	}

	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	practice := NewPracticeService(conn)
	practice.now = func() time.Time { return clock }

	if _, err := practice.NextQuestion(ctx); !errors.Is(err, ErrNoDueQuestions) {
		t.Fatalf("expected ErrNoDueQuestions on empty db, got %v", err)
	}

	stored, err := practice.AddQuestions(ctx, study.ID, []content.PracticeQuestion{
		{Question: "Quem foi para a cova?", Options: []string{"Daniel", "Jose", "Elias", "Samuel"}, CorrectIndex: 0},
		{Question: "Qual rei sonhou com a estatua?", Options: []string{"Ciro", "Nabucodonosor", "Dario", "Belsazar"}, CorrectIndex: 1},
	})
	if err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored questions, got %d", len(stored))
	}

	texts, err := practice.QuestionTexts(ctx, study.ID)
	if err != nil || len(texts) != 2 || texts[0] != "Quem foi para a cova?" {
		t.Fatalf("unexpected texts %v (%v)", texts, err)
	}

	next, err := practice.NextQuestion(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next.ID != stored[0].ID || next.StudyTitle.String != "Daniel" {
		t.Errorf("expected the oldest unscheduled question, got %+v", next)
	}
	if next.Options[1] != "Jose" {
		t.Errorf("options did not round trip: %v", next.Options)
	}

	reviewed, log, err := practice.ReviewQuestion(ctx, next.ID, fsrs.Easy)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if !reviewed.Due.Valid || !reviewed.Due.Time.After(clock) {
		t.Errorf("expected a due date after the review, got %+v", reviewed.Due)
	}
	if reviewed.Reps != 1 || log.QuestionID != next.ID || log.Rating != int(fsrs.Easy) {
		t.Errorf("unexpected review result %+v %+v", reviewed, log)
	}

	next, err = practice.NextQuestion(ctx)
	if err != nil {
		t.Fatalf("next after review: %v", err)
	}
	if next.ID != stored[1].ID {
		t.Errorf("expected the second question next, got %d", next.ID)
	}

	if _, _, err := practice.ReviewQuestion(ctx, 999, fsrs.Good); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestRegeneratingWeekClearsPracticeQuestions(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	studies := NewStudyService(conn)
	practice := NewPracticeService(conn)

	study, err := studies.Save(ctx, 8, 2025, "gemini", sampleWeek("Rute"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("save study: %v", err)
	}
	other, err := studies.Save(ctx, 9, 2025, "gemini", sampleWeek("Ester"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("save other study: %v", err)
	}
	q := []content.PracticeQuestion{{Question: "Quem era a sogra de Rute?", Options: []string{"Noemi", "Orfa", "Ana", "Sara"}, CorrectIndex: 0}}
	if _, err := practice.AddQuestions(ctx, study.ID, q); err != nil {
		t.Fatalf("add questions: %v", err)
	}
	if _, err := practice.AddQuestions(ctx, other.ID, q); err != nil {
		t.Fatalf("add questions to other study: %v", err)
	}

	again, err := studies.Save(ctx, 8, 2025, "openai", sampleWeek("Rute revisada"), sql.NullInt64{})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if again.ID != study.ID {
		t.Fatalf("expected the same study id, got %d and %d", study.ID, again.ID)
	}
	if texts, err := practice.QuestionTexts(ctx, study.ID); err != nil || len(texts) != 0 {
		t.Errorf("expected stale questions to be removed, got %v (%v)", texts, err)
	}
	if texts, err := practice.QuestionTexts(ctx, other.ID); err != nil || len(texts) != 1 {
		t.Errorf("other week's questions changed: %v (%v)", texts, err)
	}
}

func TestDocumentServiceCreate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	docs := NewDocumentService(openTestDB(t), dir)

	if _, err := docs.Create(ctx, "notas.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected non-PDF upload to be rejected")
	}

	doc, err := docs.Create(ctx, "Licao 3.PDF", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Dir(doc.StoredPath) != dir {
		t.Errorf("stored outside upload dir: %s", doc.StoredPath)
	}
	data, err := os.ReadFile(doc.StoredPath)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("stored file mismatch: %q (%v)", data, err)
	}

	if err := docs.UpdatePageCount(ctx, doc.ID, 4); err != nil {
		t.Fatalf("update pages: %v", err)
	}
	got, err := docs.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PageCount != 4 || got.OriginalName != "Licao 3.PDF" {
		t.Errorf("unexpected document %+v", got)
	}
	if _, err := docs.GetByID(ctx, doc.ID+1); !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}
