package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"estudo-ai/internal/models"
)

// ErrDocumentNotFound is returned when a document id does not exist.
var ErrDocumentNotFound = errors.New("documento nao encontrado")

type DocumentService struct {
	db        *sql.DB
	uploadDir string
}

func NewDocumentService(db *sql.DB, uploadDir string) *DocumentService {
	return &DocumentService{db: db, uploadDir: uploadDir}
}

// Create stores src under the upload directory with a random name and records it.
// Only PDF uploads are accepted.
func (s *DocumentService) Create(ctx context.Context, original string, src io.Reader) (*models.Document, error) {
	if !strings.EqualFold(filepath.Ext(original), ".pdf") {
		return nil, fmt.Errorf("unsupported file type %q, expected a PDF", filepath.Ext(original))
	}

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure upload dir: %w", err)
	}

	storedPath := filepath.Join(s.uploadDir, uuid.NewString()+".pdf")
	out, err := os.Create(storedPath)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("write file: %w", err)
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (original_name, stored_path, page_count, uploaded_at)
		VALUES (?, ?, 0, ?);
	`, original, storedPath, now)
	if err != nil {
		_ = os.Remove(storedPath)
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("document id: %w", err)
	}

	return &models.Document{
		ID:           id,
		OriginalName: original,
		StoredPath:   storedPath,
		UploadedAt:   now,
	}, nil
}

func (s *DocumentService) UpdatePageCount(ctx context.Context, id int64, pages int) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE documents SET page_count = ? WHERE id = ?;
	`, pages, id); err != nil {
		return fmt.Errorf("update page count: %w", err)
	}
	return nil
}

func (s *DocumentService) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, original_name, stored_path, page_count, uploaded_at
		FROM documents WHERE id = ?;
	`, id)
	var doc models.Document
	if err := row.Scan(
		&doc.ID,
		&doc.OriginalName,
		&doc.StoredPath,
		&doc.PageCount,
		&doc.UploadedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}
