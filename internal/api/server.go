package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"estudo-ai/internal/logger"
	"estudo-ai/internal/models"
	"estudo-ai/internal/services"
)

const maxMultipartMemory = 32 << 20 // 32 MB

// jobTimeout bounds the background processing of one upload job.
const jobTimeout = 15 * time.Minute

type Server struct {
	router    *gin.Engine
	generator *services.Generator
	studies   *services.StudyService
	practice  *services.PracticeService
	documents *services.DocumentService
	ingestion *services.IngestionService
	jobs      *JobManager
	log       *logger.Logger
}

func NewServer(
	generator *services.Generator,
	studies *services.StudyService,
	practice *services.PracticeService,
	documents *services.DocumentService,
	ingestion *services.IngestionService,
	log *logger.Logger,
	allowedOrigins []string,
) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		router:    gin.New(),
		generator: generator,
		studies:   studies,
		practice:  practice,
		documents: documents,
		ingestion: ingestion,
		jobs:      NewJobManager(),
		log:       log.With("service", "api"),
	}
	s.router.MaxMultipartMemory = maxMultipartMemory
	s.router.Use(gin.Recovery(), s.requestLogger())
	if len(allowedOrigins) > 0 {
		s.router.Use(cors.New(cors.Config{
			AllowOrigins: allowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/ai/status", s.handleAIStatus)

		api.GET("/studies", s.handleListStudies)
		api.POST("/studies/generate", s.handleGenerateStudy)
		api.POST("/studies/jobs", s.handleCreateStudyJob)
		api.GET("/studies/jobs/:id", s.handleJobStatus)
		api.GET("/studies/:year/:week", s.handleGetStudy)
		api.POST("/studies/:id/practice", s.handleGeneratePractice)

		api.GET("/practice/next", s.handleNextPractice)
		api.POST("/practice/:id/review", s.handleReviewPractice)

		api.POST("/exercises", s.handleExercises)
		api.POST("/reflections", s.handleReflections)
		api.GET("/verses/recovery", s.handleRecoveryVerse)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleAIStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"configured":    s.generator.IsAIConfigured(),
		"provider":      s.generator.ProviderFor(services.GenerateOptions{}),
		"quotaCooldown": s.generator.Cooldown().Active(c.Request.Context()),
	})
}

type generationOptions struct {
	Provider string `json:"provider"`
	KeyIndex string `json:"keyIndex"`
}

func (o generationOptions) toService() services.GenerateOptions {
	return services.GenerateOptions{Provider: o.Provider, KeyIndex: o.KeyIndex}
}

type generateStudyRequest struct {
	generationOptions
	Text       string `json:"text"`
	WeekNumber int    `json:"weekNumber"`
	Year       int    `json:"year"`
}

func (s *Server) handleGenerateStudy(c *gin.Context) {
	var payload generateStudyRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "payload invalido")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		writeError(c, http.StatusBadRequest, "text e obrigatorio")
		return
	}
	year, err := resolveWeek(payload.WeekNumber, payload.Year)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	opts := payload.toService()
	week, err := s.generator.GenerateStudyContentFromText(c.Request.Context(), payload.Text, payload.WeekNumber, year, opts)
	if err != nil {
		writeError(c, generationStatus(err), err.Error())
		return
	}
	study, err := s.studies.Save(c.Request.Context(), payload.WeekNumber, year, s.generator.ProviderFor(opts), *week, sql.NullInt64{})
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"study": studyJSON(study)})
}

// handleCreateStudyJob accepts one or more PDFs. File i becomes week weekNumber+i.
func (s *Server) handleCreateStudyJob(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, http.StatusBadRequest, "formulario multipart invalido")
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		_ = form.RemoveAll()
		writeError(c, http.StatusBadRequest, "nenhum arquivo enviado")
		return
	}

	weekNumber, _ := strconv.Atoi(c.PostForm("weekNumber"))
	yearParam, _ := strconv.Atoi(c.PostForm("year"))
	year, err := resolveWeek(weekNumber, yearParam)
	if err == nil && weekNumber+len(files)-1 > 53 {
		err = fmt.Errorf("%d arquivos a partir da semana %d passam da semana 53", len(files), weekNumber)
	}
	if err != nil {
		_ = form.RemoveAll()
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	targets := make([]JobTarget, len(files))
	for i, f := range files {
		targets[i] = JobTarget{Name: f.Filename, WeekNumber: weekNumber + i, Year: year}
	}
	opts := services.GenerateOptions{Provider: c.PostForm("provider"), KeyIndex: c.PostForm("keyIndex")}
	job := s.jobs.CreateJob(targets)

	// Uploads are stored before responding; the multipart temp files do not outlive the request.
	docs := make([]*models.Document, len(files))
	for i, f := range files {
		doc, err := s.storeUpload(c.Request.Context(), f)
		if err != nil {
			s.jobs.MarkFileError(job.ID, i, err.Error(), DocumentResult{Name: f.Filename, WeekNumber: targets[i].WeekNumber, Year: year})
			continue
		}
		docs[i] = doc
	}
	_ = form.RemoveAll()

	go s.runStudyJob(job.ID, targets, docs, opts)

	snapshot, _ := s.jobs.GetJob(job.ID)
	c.JSON(http.StatusAccepted, snapshot)
}

func (s *Server) storeUpload(ctx context.Context, file *multipart.FileHeader) (*models.Document, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", file.Filename, err)
	}
	defer src.Close()

	doc, err := s.documents.Create(ctx, file.Filename, src)
	if err != nil {
		return nil, fmt.Errorf("create document %s: %w", file.Filename, err)
	}
	return doc, nil
}

func (s *Server) handleJobStatus(c *gin.Context) {
	job, ok := s.jobs.GetJob(c.Param("id"))
	if !ok {
		writeError(c, http.StatusNotFound, "job nao encontrado")
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) runStudyJob(jobID string, targets []JobTarget, docs []*models.Document, opts services.GenerateOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	s.jobs.MarkProcessing(jobID)
	for idx, doc := range docs {
		if doc == nil {
			continue
		}
		progress := func(step, message string, current, total int) {
			s.jobs.UpdateFileProgress(jobID, idx, step, message, current, total)
		}
		result, err := s.processStudyDocument(ctx, doc, targets[idx], opts, progress)
		if err != nil {
			s.log.Warn("study job file failed", "job_id", jobID, "file", doc.OriginalName, "error", err)
			s.jobs.MarkFileError(jobID, idx, err.Error(), result)
			continue
		}
		s.jobs.MarkFileComplete(jobID, idx, result)
	}
	s.jobs.MarkFinished(jobID)
}

func (s *Server) processStudyDocument(ctx context.Context, doc *models.Document, target JobTarget, opts services.GenerateOptions, progress services.ProgressCallback) (DocumentResult, error) {
	result := DocumentResult{
		DocumentID: doc.ID,
		Name:       doc.OriginalName,
		WeekNumber: target.WeekNumber,
		Year:       target.Year,
	}

	study, err := s.ingestion.ProcessStudyDocumentWithProgress(ctx, doc, services.StudyRequest{
		WeekNumber: target.WeekNumber,
		Year:       target.Year,
		Options:    opts,
	}, progress)
	result.Pages = doc.PageCount
	if err != nil {
		return result, err
	}
	result.StudyID = study.ID
	result.Message = study.Title
	return result, nil
}

func (s *Server) handleListStudies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := s.studies.List(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]gin.H, 0, len(list))
	for _, sum := range list {
		out = append(out, gin.H{
			"id":         sum.ID,
			"weekNumber": sum.WeekNumber,
			"year":       sum.Year,
			"title":      sum.Title,
			"lessons":    sum.Lessons,
			"createdAt":  sum.CreatedAt.Format(timeLayout),
		})
	}
	c.JSON(http.StatusOK, gin.H{"studies": out})
}

func (s *Server) handleGetStudy(c *gin.Context) {
	year, err1 := strconv.Atoi(c.Param("year"))
	week, err2 := strconv.Atoi(c.Param("week"))
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "ano ou semana invalidos")
		return
	}
	study, err := s.studies.GetByWeek(c.Request.Context(), year, week)
	if err != nil {
		if errors.Is(err, services.ErrStudyNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"study": studyJSON(study)})
}

func (s *Server) handleGeneratePractice(c *gin.Context) {
	studyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "id de estudo invalido")
		return
	}
	var payload generationOptions
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&payload); err != nil && !errors.Is(err, io.EOF) {
			writeError(c, http.StatusBadRequest, "payload invalido")
			return
		}
	}

	ctx := c.Request.Context()
	study, err := s.studies.GetByID(ctx, studyID)
	if err != nil {
		if errors.Is(err, services.ErrStudyNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	existing, err := s.practice.QuestionTexts(ctx, study.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	questions, err := s.generator.GenerateUniquePracticeQuestions(ctx, study.Title, study.Description, existing, payload.toService())
	if err != nil {
		writeError(c, generationStatus(err), err.Error())
		return
	}
	stored, err := s.practice.AddQuestions(ctx, study.ID, questions)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]gin.H, 0, len(stored))
	for i := range stored {
		out = append(out, practiceJSON(&stored[i]))
	}
	c.JSON(http.StatusCreated, gin.H{"questions": out})
}

func (s *Server) handleNextPractice(c *gin.Context) {
	q, err := s.practice.NextQuestion(c.Request.Context())
	if err != nil {
		if errors.Is(err, services.ErrNoDueQuestions) {
			c.JSON(http.StatusOK, gin.H{
				"question": nil,
				"message":  "Nenhuma pergunta para revisar agora. Volte mais tarde!",
			})
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": practiceJSON(q)})
}

type reviewRequest struct {
	Rating string `json:"rating"`
}

func (s *Server) handleReviewPractice(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "id de pergunta invalido")
		return
	}
	var payload reviewRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "payload invalido")
		return
	}
	rating, err := parseRating(payload.Rating)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	q, entry, err := s.practice.ReviewQuestion(c.Request.Context(), id, rating)
	if err != nil {
		if errors.Is(err, services.ErrQuestionNotFound) {
			writeError(c, http.StatusNotFound, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"question": gin.H{
			"id":    q.ID,
			"due":   nullTimeToString(q.Due),
			"state": q.State,
		},
		"log": gin.H{
			"rating":  entry.Rating,
			"dueIn":   entry.ScheduledDays,
			"updated": entry.ReviewedAt.Format(timeLayout),
		},
	})
}

type exercisesRequest struct {
	generationOptions
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

func (s *Server) handleExercises(c *gin.Context) {
	var payload exercisesRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "payload invalido")
		return
	}
	if strings.TrimSpace(payload.Topic) == "" {
		writeError(c, http.StatusBadRequest, "topic e obrigatorio")
		return
	}
	units, err := s.generator.GenerateExercisesFromTopic(c.Request.Context(), payload.Topic, payload.Count, payload.toService())
	if err != nil {
		writeError(c, generationStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"exercises": units})
}

type reflectionsRequest struct {
	generationOptions
	Text  string `json:"text"`
	Count int    `json:"count"`
}

func (s *Server) handleReflections(c *gin.Context) {
	var payload reflectionsRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, "payload invalido")
		return
	}
	if strings.TrimSpace(payload.Text) == "" {
		writeError(c, http.StatusBadRequest, "text e obrigatorio")
		return
	}
	questions, err := s.generator.GenerateReflectionQuestions(c.Request.Context(), payload.Text, payload.Count, payload.toService())
	if err != nil {
		writeError(c, generationStatus(err), err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (s *Server) handleRecoveryVerse(c *gin.Context) {
	verse, fromAI := s.generator.GenerateRecoveryVerse(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"verse": verse, "generated": fromAI})
}

const timeLayout = time.RFC3339

// resolveWeek validates weekNumber and returns year, defaulting to the current one.
func resolveWeek(weekNumber, year int) (int, error) {
	if weekNumber < 1 || weekNumber > 53 {
		return 0, fmt.Errorf("weekNumber deve estar entre 1 e 53")
	}
	if year == 0 {
		year = time.Now().Year()
	}
	if year < 2000 || year > 2100 {
		return 0, fmt.Errorf("year invalido: %d", year)
	}
	return year, nil
}

// generationStatus maps generation failures to an HTTP status.
func generationStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrAIUnavailable), errors.Is(err, services.ErrAllModelsUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func parseRating(raw string) (fsrs.Rating, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "again":
		return fsrs.Again, nil
	case "hard":
		return fsrs.Hard, nil
	case "good":
		return fsrs.Good, nil
	case "easy":
		return fsrs.Easy, nil
	default:
		return 0, fmt.Errorf("unknown rating %q", raw)
	}
}

func studyJSON(study *models.Study) gin.H {
	var sourceDocument *int64
	if study.SourceDocumentID.Valid {
		id := study.SourceDocumentID.Int64
		sourceDocument = &id
	}
	return gin.H{
		"id":               study.ID,
		"weekNumber":       study.WeekNumber,
		"year":             study.Year,
		"title":            study.Title,
		"description":      study.Description,
		"provider":         study.Provider,
		"content":          study.Content,
		"sourceDocumentId": sourceDocument,
		"createdAt":        study.CreatedAt.Format(timeLayout),
		"updatedAt":        study.UpdatedAt.Format(timeLayout),
	}
}

func practiceJSON(q *models.PracticeQuestion) gin.H {
	return gin.H{
		"id":           q.ID,
		"studyId":      q.StudyID,
		"study":        nullString(q.StudyTitle),
		"question":     q.Question,
		"options":      q.Options,
		"correctIndex": q.CorrectIndex,
		"explanation":  q.Explanation,
		"due":          nullTimeToString(q.Due),
		"state":        q.State,
	}
}

func nullTimeToString(t sql.NullTime) *string {
	if t.Valid {
		str := t.Time.Format(timeLayout)
		return &str
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if v.Valid {
		str := v.String
		return &str
	}
	return nil
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
