package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"estudo-ai/internal/api"
	"estudo-ai/internal/config"
	"estudo-ai/internal/db"
	"estudo-ai/internal/logger"
	"estudo-ai/internal/services"
)

func main() {
	cfg, cfgErr := config.Load()

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()
	if cfgErr != nil {
		logg.Warn("using default models", "error", cfgErr)
	}

	if cfg.LogMode == "production" || cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logg.Fatal("open database", "path", cfg.Database, "error", err)
	}
	defer conn.Close()

	generator, closeGenerator := services.NewGeneratorFromConfig(cfg, logg)
	defer func() {
		if err := closeGenerator(); err != nil {
			logg.Warn("close AI providers", "error", err)
		}
	}()
	if !generator.IsAIConfigured() {
		logg.Warn("no AI provider key configured, generation endpoints will return 503")
	}

	documentService := services.NewDocumentService(conn, cfg.UploadDir)
	studyService := services.NewStudyService(conn)
	practiceService := services.NewPracticeService(conn)
	ingestionService := services.NewIngestionService(documentService, services.NewPDFService(), generator, studyService, logg)

	server := api.NewServer(generator, studyService, practiceService, documentService, ingestionService, logg, cfg.CORSOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// Study generation walks several models and keys before answering.
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		logg.Info("listening", "addr", srv.Addr, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("graceful shutdown failed", "error", err)
	}
}
