package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"

	FileStatusPending    = "pending"
	FileStatusProcessing = "processing"
	FileStatusComplete   = "complete"
	FileStatusError      = "error"
)

// StudyJob tracks PDF uploads being turned into weekly studies.
type StudyJob struct {
	ID        string           `json:"jobId"`
	Status    string           `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Files     []FileProgress   `json:"files"`
	Results   []DocumentResult `json:"results,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// FileProgress is the polled state of one uploaded PDF.
type FileProgress struct {
	Index      int             `json:"index"`
	Name       string          `json:"name"`
	WeekNumber int             `json:"weekNumber"`
	Year       int             `json:"year"`
	Status     string          `json:"status"`
	Step       string          `json:"step,omitempty"`
	Message    string          `json:"message,omitempty"`
	Percent    int             `json:"percent"`
	Result     *DocumentResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// DocumentResult is the outcome for one uploaded PDF.
type DocumentResult struct {
	DocumentID int64  `json:"documentId,omitempty"`
	StudyID    int64  `json:"studyId,omitempty"`
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	WeekNumber int    `json:"weekNumber"`
	Year       int    `json:"year"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
}

// JobTarget names a file of a job and the week it should become.
type JobTarget struct {
	Name       string
	WeekNumber int
	Year       int
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*StudyJob
	now  func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*StudyJob),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *JobManager) CreateJob(targets []JobTarget) *StudyJob {
	files := make([]FileProgress, len(targets))
	for i, t := range targets {
		files[i] = FileProgress{
			Index:      i,
			Name:       t.Name,
			WeekNumber: t.WeekNumber,
			Year:       t.Year,
			Status:     FileStatusPending,
		}
	}
	now := m.now()
	job := &StudyJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		Files:     files,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.clone()
}

func (m *JobManager) GetJob(id string) (*StudyJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *StudyJob) {
		job.Status = JobStatusProcessing
	})
}

// MarkFinished completes the job, or fails it when no file succeeded.
func (m *JobManager) MarkFinished(id string) {
	m.withJob(id, func(job *StudyJob) {
		for _, f := range job.Files {
			if f.Status == FileStatusComplete {
				job.Status = JobStatusComplete
				return
			}
		}
		job.Status = JobStatusFailed
		job.Error = "nenhum arquivo foi processado"
	})
}

func (m *JobManager) UpdateFileProgress(id string, index int, step, message string, current, total int) {
	m.withJob(id, func(job *StudyJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusProcessing
			file.Step = step
			file.Message = message
			file.Percent = percent(current, total)
		}
	})
}

func (m *JobManager) MarkFileComplete(id string, index int, result DocumentResult) {
	result.Status = FileStatusComplete
	m.withJob(id, func(job *StudyJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusComplete
			file.Step = "complete"
			file.Message = "Estudo gerado"
			file.Percent = 100
			file.Result = &result
			file.Error = ""
		}
		job.Results = append(job.Results, result)
	})
}

func (m *JobManager) MarkFileError(id string, index int, message string, result DocumentResult) {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "erro ao processar arquivo"
	}
	result.Status = FileStatusError
	if result.Message == "" {
		result.Message = msg
	}
	m.withJob(id, func(job *StudyJob) {
		if file := job.file(index); file != nil {
			file.Status = FileStatusError
			file.Step = "error"
			file.Message = msg
			file.Error = msg
			file.Percent = 100
			file.Result = &result
		}
		job.Results = append(job.Results, result)
	})
}

func (m *JobManager) withJob(id string, fn func(job *StudyJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = m.now()
}

func (job *StudyJob) file(index int) *FileProgress {
	if index < 0 || index >= len(job.Files) {
		return nil
	}
	return &job.Files[index]
}

func (job *StudyJob) clone() *StudyJob {
	out := *job
	out.Files = make([]FileProgress, len(job.Files))
	for i, f := range job.Files {
		out.Files[i] = f
		if f.Result != nil {
			res := *f.Result
			out.Files[i].Result = &res
		}
	}
	out.Results = append([]DocumentResult(nil), job.Results...)
	return &out
}

func percent(current, total int) int {
	switch {
	case current <= 0:
		return 0
	case total <= 0:
		return min(current, 100)
	case current >= total:
		return 100
	}
	return current * 100 / total
}
