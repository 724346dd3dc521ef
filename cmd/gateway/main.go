package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	api "github.com/study-gate/studygate/internal/api/http"
	auth "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/config"
	"github.com/study-gate/studygate/internal/db"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/llm"
	"github.com/study-gate/studygate/internal/pipeline"
	"github.com/study-gate/studygate/internal/progress"
	"github.com/study-gate/studygate/internal/render"
	"github.com/study-gate/studygate/internal/session"
	"github.com/study-gate/studygate/internal/storage"
	syncx "github.com/study-gate/studygate/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Blob store ---
	var blobs storage.BlobStore
	switch cfg.BlobDriver {
	case "gcs":
		blobs, err = storage.NewGCSStore(context.Background(), cfg.BlobBucket)
	default:
		blobs, err = storage.NewFSStore(cfg.BlobBasePath)
	}
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Vision completion service ---
	gemini, err := llm.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMRatePerSec, cfg.LLMBurst)
	if err != nil {
		log.Fatalf("gemini client: %v", err)
	}

	// --- Domain wiring ---
	store := lesson.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh)
	renderer := render.NewPDFRenderer()
	orch := pipeline.New(store, blobs, gemini, renderer, events, pipeline.Config{
		Workers:             cfg.PipelineWorkers,
		QuestionsPerSection: cfg.QuestionsPerSection,
		DefaultThreshold:    cfg.DefaultThreshold,
		MaxSynthesisInput:   cfg.MaxSynthesisInput,
	})
	progStore := progress.NewSQLStore(dbh)
	engine := progress.NewEngine(progStore, store)
	sessions := session.NewService(dbh, store)
	authSvc := auth.NewService(cfg.AuthSecret, dbh, cfg.AdminUser, cfg.AdminPassHash)

	limits := api.UploadLimits{
		MaxBytes:        cfg.MaxUploadBytes,
		MaxContentPages: cfg.MaxContentPages,
		MaxQuizPages:    cfg.MaxQuizPages,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute)) // pipeline runs are synchronous

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", api.LoginHandler(authSvc))
	r.Post("/auth/register", api.RegisterHandler(authSvc))

	// Protected API
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, blobs)
		})

		pr.Post("/lessons", api.CreateLessonHandler(store, blobs, renderer, limits, cfg.DefaultThreshold))
		pr.Get("/lessons", api.ListLessonsHandler(store))
		pr.Post("/lessons/{id}/documents", api.UploadDocumentHandler(store, blobs, renderer, limits))
		pr.Post("/lessons/{id}/process", api.ProcessLessonHandler(store, orch))
		pr.Get("/lessons/{id}/data", api.GetLessonDataHandler(store, progStore, blobs))
		pr.Post("/lessons/{id}/progress", api.InitProgressHandler(engine))
		pr.Post("/lessons/{id}/submit", api.SubmitQuizHandler(engine))

		pr.Post("/sets", api.CreateSetHandler(store, blobs, renderer, orch, limits))
		pr.Get("/sets/{id}", api.GetSetHandler(store))
		pr.Post("/sets/{id}/session", api.CreateSessionHandler(sessions))
		pr.Patch("/sets/{id}/session", api.UpdateSessionHandler(sessions))
		pr.Post("/sets/{id}/recorrect", api.RecorrectHandler(store, orch, limits))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})
	r.Handle("/metrics", promhttp.Handler())

	log.Printf("listening on %s (db=%s, blobs=%s, model=%s)", cfg.HTTPAddr, cfg.DBDriver, cfg.BlobDriver, cfg.GeminiModel)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
