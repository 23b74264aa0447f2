// carebridge gates nurse access to the marketplace behind profile completion
// and admin verification. main wires stores, services, and the HTTP surface;
// business logic lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carebridge/internal/access"
	accesshandler "carebridge/internal/access/handler"
	accessmetrics "carebridge/internal/access/metrics"
	"carebridge/internal/accounts"
	"carebridge/internal/audit"
	httpapi "carebridge/internal/http"
	"carebridge/internal/jwtauth"
	"carebridge/internal/onboarding"
	onboardinghandler "carebridge/internal/onboarding/handler"
	onboardingmetrics "carebridge/internal/onboarding/metrics"
	onboardingstore "carebridge/internal/onboarding/store"
	"carebridge/internal/platform/config"
	"carebridge/internal/platform/httpserver"
	"carebridge/internal/platform/kafka"
	"carebridge/internal/platform/logger"
	platformmetrics "carebridge/internal/platform/metrics"
	"carebridge/internal/platform/middleware"
	"carebridge/internal/platform/postgres"
	"carebridge/internal/platform/redis"
	"carebridge/internal/review"
	reviewhandler "carebridge/internal/review/handler"
	"carebridge/internal/uploads"
	uploadshandler "carebridge/internal/uploads/handler"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	// Stores: Postgres when configured, in-memory otherwise.
	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}

	var (
		accountStore    accounts.Store
		profileStore    onboarding.ProfileStore
		submissionStore onboarding.SubmissionStore
	)
	if db != nil {
		accountStore = accounts.NewPostgresStore(db)
		profileStore = onboardingstore.NewPostgresProfileStore(db)
		submissionStore = onboardingstore.NewPostgresSubmissionStore(db)
		log.Info("using postgres stores")
	} else {
		accountStore = accounts.NewInMemoryStore()
		profileStore = onboarding.NewInMemoryProfileStore()
		submissionStore = onboarding.NewInMemorySubmissionStore()
		log.Warn("POSTGRES_URL not set, using in-memory stores")
	}

	// Redis-backed token revocation, optional.
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var revocationChecker middleware.TokenRevocationChecker
	if list := redis.NewRevocationList(redisClient); list != nil {
		revocationChecker = list
	}

	// Kafka audit sink, optional.
	auditSink, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}

	// Audit pipeline: the publisher hands events to a channel worker so the
	// request path never waits on the store; the worker drains the remainder
	// on shutdown.
	auditStore := audit.NewInMemoryStore()
	auditInbox := make(chan audit.Event, 256)
	auditor := audit.NewAsyncPublisher(auditStore, auditSink, auditInbox, log)
	auditWorker := audit.NewWorker(auditStore, auditInbox, log)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := auditWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	// Document uploads: MinIO when configured.
	var uploadStore uploads.Store
	minioStore, err := uploads.NewMinioStore(ctx, cfg.Minio)
	if err != nil {
		log.Error("minio connection failed", "error", err)
		os.Exit(1)
	}
	if minioStore != nil {
		uploadStore = minioStore
	} else {
		uploadStore = uploads.NewInMemoryStore()
		log.Warn("MINIO_ENDPOINT not set, using in-memory document store")
	}

	// Services.
	accountService := accounts.NewService(accountStore)
	workflow := onboarding.NewWorkflow(accountService, profileStore, submissionStore, auditor, onboardingmetrics.New(), log)
	accessService := access.NewService(accountService, profileStore, submissionStore, auditor, accessmetrics.New(), log)
	reviewService := review.NewService(db, submissionStore, profileStore, accountService, auditor, log)
	enforcer := access.NewEnforcer(accessService, access.DefaultAllowRules(), auditor, nil)

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, "carebridge", "carebridge-api")

	router := httpapi.NewRouter(httpapi.Dependencies{
		Logger:            log,
		Metrics:           platformmetrics.New(),
		JWTValidator:      jwtService,
		RevocationChecker: revocationChecker,
		AdminToken:        cfg.AdminToken,
		Enforcer:          enforcer,
		Onboarding:        onboardinghandler.New(workflow, log),
		Access:            accesshandler.New(accessService, log),
		Uploads:           uploadshandler.New(uploadStore, log),
		Review:            reviewhandler.New(reviewService, log),
		HealthCheck:       healthCheck(db, redisClient),
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting carebridge", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	stopWorker()
	<-workerDone
	if auditSink != nil {
		auditSink.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

func healthCheck(db *sql.DB, redisClient *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
