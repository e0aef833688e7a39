package models

import (
	"database/sql"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"estudo-ai/internal/content"
)

type Document struct {
	ID           int64
	OriginalName string
	StoredPath   string
	PageCount    int
	UploadedAt   time.Time
}

// Study is a persisted week of generated content.
type Study struct {
	ID               int64
	WeekNumber       int
	Year             int
	Title            string
	Description      string
	Provider         string
	Content          content.WeekContent
	SourceDocumentID sql.NullInt64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StudySummary is a Study without its content tree.
type StudySummary struct {
	ID         int64
	WeekNumber int
	Year       int
	Title      string
	Lessons    int
	CreatedAt  time.Time
}

// PracticeQuestion is a stored practice question with its FSRS scheduling state.
type PracticeQuestion struct {
	ID            int64
	StudyID       int64
	Question      string
	Options       []string
	CorrectIndex  int
	Explanation   string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StudyTitle    sql.NullString
}

type ReviewLog struct {
	ID            int64
	QuestionID    int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

func (q *PracticeQuestion) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     q.Stability,
		Difficulty:    q.Difficulty,
		ElapsedDays:   uint64(max(q.ElapsedDays, 0)),
		ScheduledDays: uint64(max(q.ScheduledDays, 0)),
		Reps:          uint64(max(q.Reps, 0)),
		Lapses:        uint64(max(q.Lapses, 0)),
		State:         fsrs.State(max(q.State, 0)),
	}
	if q.Due.Valid {
		card.Due = q.Due.Time
	}
	if q.LastReview.Valid {
		card.LastReview = q.LastReview.Time
	}
	return card
}

func (q *PracticeQuestion) ApplyFSRSCard(f fsrs.Card) {
	q.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	q.Stability = f.Stability
	q.Difficulty = f.Difficulty
	q.ElapsedDays = int(f.ElapsedDays)
	q.ScheduledDays = int(f.ScheduledDays)
	q.Reps = int(f.Reps)
	q.Lapses = int(f.Lapses)
	q.State = int(f.State)
	q.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
