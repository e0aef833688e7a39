package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"estudo-ai/internal/content"
	"estudo-ai/internal/models"
)

var (
	// ErrNoDueQuestions indicates that there is nothing to practice right now.
	ErrNoDueQuestions = errors.New("nenhuma pergunta para revisar agora")
	// ErrQuestionNotFound is returned when reviewing an unknown question id.
	ErrQuestionNotFound = errors.New("pergunta nao encontrada")
)

// PracticeService stores practice questions and schedules their review with FSRS.
type PracticeService struct {
	db     *sql.DB
	params fsrs.Parameters
	now    func() time.Time
}

func NewPracticeService(db *sql.DB) *PracticeService {
	return &PracticeService{db: db, params: fsrs.DefaultParam(), now: func() time.Time { return time.Now().UTC() }}
}

const practiceColumns = `
	p.id, p.study_id, p.question, p.options, p.correct_index, p.explanation,
	p.due, p.stability, p.difficulty, p.elapsed_days, p.scheduled_days,
	p.reps, p.lapses, p.state, p.last_review, p.created_at, p.updated_at, s.title`

// AddQuestions stores questions for a study as new, unscheduled items.
func (s *PracticeService) AddQuestions(ctx context.Context, studyID int64, questions []content.PracticeQuestion) ([]models.PracticeQuestion, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO practice_questions (study_id, question, options, correct_index, explanation, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	stored := make([]models.PracticeQuestion, 0, len(questions))
	for _, q := range questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("encode options: %w", err)
		}
		res, err := stmt.ExecContext(ctx, studyID, q.Question, string(opts), q.CorrectIndex, q.Explanation, int(fsrs.New), now, now)
		if err != nil {
			return nil, fmt.Errorf("insert practice question: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("practice question id: %w", err)
		}
		stored = append(stored, models.PracticeQuestion{
			ID:           id,
			StudyID:      studyID,
			Question:     q.Question,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
			Explanation:  q.Explanation,
			State:        int(fsrs.New),
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit practice questions: %w", err)
	}
	return stored, nil
}

// QuestionTexts returns the text of every stored question of a study.
func (s *PracticeService) QuestionTexts(ctx context.Context, studyID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question FROM practice_questions WHERE study_id = ? ORDER BY id;`, studyID)
	if err != nil {
		return nil, fmt.Errorf("list practice questions: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan practice question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// NextQuestion returns the most overdue question, or the oldest one never reviewed.
func (s *PracticeService) NextQuestion(ctx context.Context) (*models.PracticeQuestion, error) {
	q, err := s.fetch(ctx, `
		SELECT `+practiceColumns+`
		FROM practice_questions p
		JOIN studies s ON s.id = p.study_id
		WHERE p.due IS NOT NULL AND p.due <= ?
		ORDER BY p.due ASC
		LIMIT 1;
	`, s.now())
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	q, err = s.fetch(ctx, `
		SELECT `+practiceColumns+`
		FROM practice_questions p
		JOIN studies s ON s.id = p.study_id
		WHERE p.due IS NULL
		ORDER BY p.created_at ASC, p.id ASC
		LIMIT 1;
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDueQuestions
		}
		return nil, err
	}
	return q, nil
}

func (s *PracticeService) fetch(ctx context.Context, query string, args ...any) (*models.PracticeQuestion, error) {
	return scanPractice(s.db.QueryRowContext(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPractice(row rowScanner) (*models.PracticeQuestion, error) {
	q := &models.PracticeQuestion{}
	var opts string
	if err := row.Scan(
		&q.ID,
		&q.StudyID,
		&q.Question,
		&opts,
		&q.CorrectIndex,
		&q.Explanation,
		&q.Due,
		&q.Stability,
		&q.Difficulty,
		&q.ElapsedDays,
		&q.ScheduledDays,
		&q.Reps,
		&q.Lapses,
		&q.State,
		&q.LastReview,
		&q.CreatedAt,
		&q.UpdatedAt,
		&q.StudyTitle,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
		return nil, fmt.Errorf("decode options of question %d: %w", q.ID, err)
	}
	return q, nil
}

// ReviewQuestion applies an FSRS rating to the question and logs the review.
func (s *PracticeService) ReviewQuestion(ctx context.Context, id int64, rating fsrs.Rating) (*models.PracticeQuestion, *models.ReviewLog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	q, err := scanPractice(tx.QueryRowContext(ctx, `
		SELECT `+practiceColumns+`
		FROM practice_questions p
		JOIN studies s ON s.id = p.study_id
		WHERE p.id = ?;
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrQuestionNotFound
		}
		return nil, nil, fmt.Errorf("load question %d: %w", id, err)
	}

	now := s.now()
	scheduling := s.params.Repeat(q.ToFSRSCard(), now)
	info, ok := scheduling[rating]
	if !ok {
		return nil, nil, fmt.Errorf("rating %d not supported", rating)
	}
	q.ApplyFSRSCard(info.Card)
	q.UpdatedAt = now

	if _, err := tx.ExecContext(ctx, `
		UPDATE practice_questions
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`,
		nullTime(q.Due),
		q.Stability,
		q.Difficulty,
		q.ElapsedDays,
		q.ScheduledDays,
		q.Reps,
		q.Lapses,
		q.State,
		nullTime(q.LastReview),
		q.UpdatedAt,
		q.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("update question %d: %w", q.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO review_logs (question_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, q.ID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		return nil, nil, fmt.Errorf("insert review log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit review: %w", err)
	}

	return q, &models.ReviewLog{
		QuestionID:    q.ID,
		Rating:        int(info.ReviewLog.Rating),
		ScheduledDays: int(info.ReviewLog.ScheduledDays),
		ElapsedDays:   int(info.ReviewLog.ElapsedDays),
		State:         int(info.ReviewLog.State),
		ReviewedAt:    now,
	}, nil
}

func nullTime(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
