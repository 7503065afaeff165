package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/camden-git/facegatebackend/config"
	"github.com/camden-git/facegatebackend/database"
	"github.com/camden-git/facegatebackend/dataset"
	"github.com/camden-git/facegatebackend/handlers"
	"github.com/camden-git/facegatebackend/repository"
	"github.com/camden-git/facegatebackend/services"
	"github.com/camden-git/facegatebackend/vision"
	"github.com/camden-git/facegatebackend/workers"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.DatasetPath, cfg.FailedAttemptsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		log.Fatalf("FATAL: Failed to migrate database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	logRepo := repository.NewAccessLogRepository(db)
	sessionRepo := repository.NewTrainingSessionRepository(db)

	log.Printf("Initializing audit writer (Queue Size: %d, Max Retries: %d)...", cfg.AuditQueueSize, cfg.AuditMaxRetries)
	auditWriter := workers.NewAuditWriter(logRepo, sessionRepo, cfg.AuditQueueSize, cfg.AuditMaxRetries, 250*time.Millisecond)
	defer auditWriter.Stop()

	identityDataset, err := dataset.New(cfg.DatasetPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize identity dataset: %v", err)
	}

	locator, err := vision.NewCascadeLocator(cfg.CascadePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load face cascade: %v", err)
	}
	defer locator.Close()

	recognizer, err := vision.NewOpenCVRecognizer(cfg.RecognizerKind)
	if err != nil {
		log.Fatalf("FATAL: Invalid recognizer configuration: %v", err)
	}

	// enrollment and training are mutually exclusive over the dataset
	var pipelineMu sync.Mutex
	modelHandle := services.NewModelHandle()

	enrollment := services.NewEnrollmentService(identityDataset, locator, cfg.SampleTarget, &pipelineMu)
	trainer := services.NewTrainerService(identityDataset, recognizer, modelHandle, sessionRepo, cfg.ModelPath, &pipelineMu)
	recognition := services.NewRecognitionService(locator, modelHandle, auditWriter, cfg.ConfidenceThreshold, cfg.FailedAttemptsPath, cfg.AuditFrameInterval)

	if trainer.LoadPersisted() {
		log.Printf("Loaded persisted %s model from %s", cfg.RecognizerKind, cfg.ModelPath)
	} else {
		log.Printf("No persisted model loaded; recognition requires a training run first")
	}

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Identity dataset: %s", cfg.DatasetPath)
	log.Printf("Recognizer: %s (confidence threshold %.1f)", cfg.RecognizerKind, cfg.ConfidenceThreshold)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute)) // enrollment runs can be long
	r.Use(corsHandler.Handler)

	auditHandler := &handlers.AuditHandler{Logs: logRepo, Sessions: sessionRepo, SQLDB: sqlDB, Cfg: cfg}
	pipelineHandler := &handlers.PipelineHandler{
		Enrollment:  enrollment,
		Trainer:     trainer,
		Recognition: recognition,
		Models:      modelHandle,
		Writer:      auditWriter,
		Cfg:         cfg,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", pipelineHandler.GetStatus)

		r.Route("/logs", func(r chi.Router) {
			r.Get("/recent", auditHandler.GetRecentAttempts)
			r.Get("/person/{person_name}", auditHandler.GetPersonHistory)
			r.With(func(next http.Handler) http.Handler {
				return handlers.RequireWriteKey(cfg.WriteKeyHash, next)
			}).Post("/cleanup", auditHandler.CleanupLogs)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/people", auditHandler.GetPersonStatistics)
			r.Get("/daily", auditHandler.GetDailyStatistics)
		})

		r.Get("/training_sessions", auditHandler.ListTrainingSessions)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return handlers.RequireWriteKey(cfg.WriteKeyHash, next)
			})
			r.Post("/enroll", pipelineHandler.PostEnroll)
			r.Post("/train", pipelineHandler.PostTrain)
			r.Post("/recognition/start", pipelineHandler.PostRecognitionStart)
			r.Post("/recognition/stop", pipelineHandler.PostRecognitionStop)
		})

		failedSubDir := filepath.Base(cfg.FailedAttemptsPath)
		r.Get("/"+failedSubDir+"/*", handlers.AssetServer(cfg.FailedAttemptsPath))
		log.Printf("Registered failed-attempt image server at /api/%s/*", failedSubDir)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute, // enrollment responses wait on capture
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
