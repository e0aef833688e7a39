package services

import (
	"context"
	"database/sql"
	"fmt"

	"estudo-ai/internal/logger"
	"estudo-ai/internal/models"
)

// ProgressCallback is called during document processing to report progress
type ProgressCallback func(step, message string, current, total int)

// StudyRequest identifies the week a document should become.
type StudyRequest struct {
	WeekNumber int
	Year       int
	Options    GenerateOptions
}

// IngestionService coordinates PDF parsing, AI generation, and persistence.
type IngestionService struct {
	documents *DocumentService
	pdf       *PDFService
	generator *Generator
	studies   *StudyService
	log       *logger.Logger
}

func NewIngestionService(
	documents *DocumentService,
	pdf *PDFService,
	generator *Generator,
	studies *StudyService,
	log *logger.Logger,
) *IngestionService {
	if log == nil {
		log = logger.NewNop()
	}
	return &IngestionService{
		documents: documents,
		pdf:       pdf,
		generator: generator,
		studies:   studies,
		log:       log.With("service", "IngestionService"),
	}
}

func (s *IngestionService) ProcessStudyDocument(ctx context.Context, doc *models.Document, req StudyRequest) (*models.Study, error) {
	return s.ProcessStudyDocumentWithProgress(ctx, doc, req, nil)
}

// ProcessStudyDocumentWithProgress extracts the document text, generates the week and
// stores it, reporting progress as it goes.
func (s *IngestionService) ProcessStudyDocumentWithProgress(ctx context.Context, doc *models.Document, req StudyRequest, progress ProgressCallback) (*models.Study, error) {
	if progress == nil {
		progress = func(string, string, int, int) {}
	}
	if !s.generator.IsAIConfigured() {
		return nil, ErrAIUnavailable
	}

	progress("extract", "Extraindo texto do PDF", 5, 100)
	text, pages, err := s.pdf.ExtractText(doc.StoredPath)
	if err != nil {
		return nil, fmt.Errorf("extract text from %s: %w", doc.OriginalName, err)
	}
	if err := s.documents.UpdatePageCount(ctx, doc.ID, pages); err != nil {
		return nil, err
	}
	doc.PageCount = pages
	s.log.Info("pdf text extracted", "document_id", doc.ID, "pages", pages, "chars", len(text))

	progress("generate", fmt.Sprintf("Gerando licoes a partir de %d paginas", pages), 20, 100)
	week, err := s.generator.GenerateStudyContentFromPDF(ctx, text, req.WeekNumber, req.Year, req.Options)
	if err != nil {
		return nil, err
	}

	progress("save", "Salvando estudo", 90, 100)
	study, err := s.studies.Save(ctx, req.WeekNumber, req.Year, s.generator.ProviderFor(req.Options), *week,
		sql.NullInt64{Valid: true, Int64: doc.ID})
	if err != nil {
		return nil, fmt.Errorf("save study: %w", err)
	}

	progress("complete", "Processamento concluido", 100, 100)
	return study, nil
}
