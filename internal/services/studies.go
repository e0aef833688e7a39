package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"estudo-ai/internal/content"
	"estudo-ai/internal/models"
)

// ErrStudyNotFound is returned when no study exists for the requested week.
var ErrStudyNotFound = errors.New("estudo nao encontrado")

// StudyService persists generated weeks. Content is stored as JSON.
type StudyService struct {
	db *sql.DB
}

func NewStudyService(db *sql.DB) *StudyService {
	return &StudyService{db: db}
}

// Save stores week for (year, weekNumber), replacing any earlier generation together with
// the practice questions generated from it.
func (s *StudyService) Save(ctx context.Context, weekNumber, year int, provider string, week content.WeekContent, sourceDocumentID sql.NullInt64) (*models.Study, error) {
	raw, err := json.Marshal(week)
	if err != nil {
		return nil, fmt.Errorf("encode study content: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin study tx: %w", err)
	}
	defer tx.Rollback()

	// Practice questions belong to the content they were generated from.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM practice_questions
		WHERE study_id = (SELECT id FROM studies WHERE year = ? AND week_number = ?);
	`, year, weekNumber); err != nil {
		return nil, fmt.Errorf("clear practice questions: %w", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO studies (week_number, year, title, description, provider, content, source_document_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, week_number) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			provider = excluded.provider,
			content = excluded.content,
			source_document_id = excluded.source_document_id,
			updated_at = excluded.updated_at;
	`, weekNumber, year, week.WeekTitle, week.WeekDescription, provider, string(raw), sourceDocumentID, now, now); err != nil {
		return nil, fmt.Errorf("upsert study: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit study: %w", err)
	}
	return s.GetByWeek(ctx, year, weekNumber)
}

func (s *StudyService) GetByWeek(ctx context.Context, year, weekNumber int) (*models.Study, error) {
	return s.fetch(ctx, `
		SELECT id, week_number, year, title, description, provider, content, source_document_id, created_at, updated_at
		FROM studies WHERE year = ? AND week_number = ?;
	`, year, weekNumber)
}

func (s *StudyService) GetByID(ctx context.Context, id int64) (*models.Study, error) {
	return s.fetch(ctx, `
		SELECT id, week_number, year, title, description, provider, content, source_document_id, created_at, updated_at
		FROM studies WHERE id = ?;
	`, id)
}

func (s *StudyService) fetch(ctx context.Context, query string, args ...any) (*models.Study, error) {
	var study models.Study
	var raw string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&study.ID,
		&study.WeekNumber,
		&study.Year,
		&study.Title,
		&study.Description,
		&study.Provider,
		&raw,
		&study.SourceDocumentID,
		&study.CreatedAt,
		&study.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudyNotFound
		}
		return nil, fmt.Errorf("scan study: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &study.Content); err != nil {
		return nil, fmt.Errorf("decode study %d content: %w", study.ID, err)
	}
	return &study, nil
}

// List returns the most recent weeks first.
func (s *StudyService) List(ctx context.Context, limit int) ([]models.StudySummary, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, week_number, year, title, COALESCE(json_array_length(content, '$.lessons'), 0), created_at
		FROM studies
		ORDER BY year DESC, week_number DESC
		LIMIT ?;
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list studies: %w", err)
	}
	defer rows.Close()

	var out []models.StudySummary
	for rows.Next() {
		var sum models.StudySummary
		if err := rows.Scan(&sum.ID, &sum.WeekNumber, &sum.Year, &sum.Title, &sum.Lessons, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan study summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
