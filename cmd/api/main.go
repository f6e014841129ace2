package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/semaphore"

	"github.com/complianceops/riskextract/internal/application"
	appanalysis "github.com/complianceops/riskextract/internal/application/analysis"
	"github.com/complianceops/riskextract/internal/application/extraction"
	"github.com/complianceops/riskextract/internal/config"
	domai "github.com/complianceops/riskextract/internal/domain/ai"
	domain "github.com/complianceops/riskextract/internal/domain/analysis"
	"github.com/complianceops/riskextract/internal/domain/documents"
	"github.com/complianceops/riskextract/internal/infra/ai/anthropic"
	openaip "github.com/complianceops/riskextract/internal/infra/ai/openai"
	mysqlp "github.com/complianceops/riskextract/internal/infra/db/mysql"
	postgresp "github.com/complianceops/riskextract/internal/infra/db/postgres"
	"github.com/complianceops/riskextract/internal/infra/extractor"
	"github.com/complianceops/riskextract/internal/infra/httpserver"
	minioStore "github.com/complianceops/riskextract/internal/infra/storage"
	"github.com/complianceops/riskextract/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect DB (driver dari config)
	var (
		db         *sql.DB
		docs       documents.Repository
		segments   documents.SegmentRepository
		jobs       domain.JobRepository
		candidates domain.CandidateRepository
	)
	switch cfg.Database.Driver {
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		docs = postgresp.NewDocumentRepository(db)
		segments = postgresp.NewSegmentRepository(db)
		jobs = postgresp.NewJobRepository(db)
		candidates = postgresp.NewCandidateRepository(db)
	default:
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		docs = mysqlp.NewDocumentRepository(db)
		segments = mysqlp.NewSegmentRepository(db)
		jobs = mysqlp.NewJobRepository(db)
		candidates = mysqlp.NewCandidateRepository(db)
	}
	defer db.Close()

	// init minio
	store, err := minioStore.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		log.Fatalf("minio init error: %v", err)
	}

	// init AI providers; config order is fallback order
	var providers []domai.Provider
	for _, pc := range cfg.AI.Providers {
		switch pc.Name {
		case "openai":
			providers = append(providers, openaip.NewClient(pc.APIKey, pc.Model))
		case "anthropic":
			cli := anthropic.NewClient(pc.APIKey, pc.Model)
			if pc.BaseURL != "" {
				cli.BaseURL = pc.BaseURL
			}
			providers = append(providers, cli)
		default:
			log.Fatalf("unknown ai provider: %q", pc.Name)
		}
	}
	if len(providers) == 0 {
		log.Fatalf("no ai providers configured")
	}

	policy := extraction.Policy{
		MaxRetries:     cfg.AI.MaxRetries,
		BackoffBase:    time.Duration(cfg.AI.BackoffBaseMS) * time.Millisecond,
		BackoffFactor:  cfg.AI.BackoffFactor,
		JitterFraction: cfg.AI.JitterFraction,
	}
	aiClient := extraction.New(providers, policy, cfg.CallTimeout(), nil)

	// init service; semaphore dishare semua job biar budget provider global
	svc := &appanalysis.Service{
		Docs:       docs,
		Segments:   segments,
		Store:      store,
		Extractor:  extractor.New(cfg.Pipeline.SegmentMaxTokens),
		Jobs:       jobs,
		Candidates: candidates,
		AI:         aiClient,
		Sem:        semaphore.NewWeighted(int64(cfg.Pipeline.Concurrency)),
		Clock:      application.SystemClock{},

		JobTimeout: cfg.JobTimeout(),
		Reconcile: domain.ReconcileOptions{
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
			CorroborationBonus:  cfg.Pipeline.CorroborationBonus,
		},
		RiskCategories: cfg.Pipeline.RiskCategories,
		ControlHints:   cfg.Pipeline.ControlHints,
	}
	svc.OnStateChange = func(st domain.State) {
		switch st {
		case domain.StateRunning:
			middleware.IncrementJobsRunning()
		case domain.StateSucceeded:
			middleware.DecrementJobsRunning()
		case domain.StateFailed:
			middleware.DecrementJobsRunning()
			middleware.IncrementJobsFailed()
		}
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/healthz", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database":     &middleware.DatabaseHealthChecker{DB: db},
		"object_store": &middleware.ObjectStoreHealthChecker{Ping: store.Ping},
	}))
	mux.Get("/readyz", middleware.ReadinessHandler)

	mux.Group(func(r chi.Router) {
		if len(cfg.Auth.APIKeys) > 0 {
			r.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
			r.Use(middleware.RequireValidTenant)
		}
		r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
		r.Mount("/", httpserver.NewRouter(svc))
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
