package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/practicum-api/api/swagger"
	"github.com/noah-isme/practicum-api/internal/handler"
	internalmiddleware "github.com/noah-isme/practicum-api/internal/middleware"
	"github.com/noah-isme/practicum-api/internal/repository"
	"github.com/noah-isme/practicum-api/internal/service"
	"github.com/noah-isme/practicum-api/pkg/cache"
	"github.com/noah-isme/practicum-api/pkg/config"
	"github.com/noah-isme/practicum-api/pkg/database"
	"github.com/noah-isme/practicum-api/pkg/export"
	"github.com/noah-isme/practicum-api/pkg/jobs"
	"github.com/noah-isme/practicum-api/pkg/logger"
	actormiddleware "github.com/noah-isme/practicum-api/pkg/middleware/actor"
	corsmiddleware "github.com/noah-isme/practicum-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/practicum-api/pkg/middleware/requestid"
	"github.com/noah-isme/practicum-api/pkg/storage"
)

// @title Practicum Assessment API
// @version 1.0.0
// @description Grade aggregation, batch adjustment, CSV ledgers and the submission review workflow for practicum courses.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheme, err := config.LoadGradingScheme(cfg.Grading.SchemeFile)
	if err != nil {
		logr.Sugar().Fatalw("failed to load grading scheme", "path", cfg.Grading.SchemeFile, "error", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.Cohorts.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, cohort cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cohorts.CacheTTL, logr, redisClient != nil)

	aggregator := service.NewGradeAggregator(service.AggregatorConfig{
		Precision: cfg.Grading.Precision,
		Workers:   cfg.Cohorts.SummaryWorkers,
	})
	cohortSvc := service.NewCohortService(
		repository.NewGradeRecordRepository(db),
		aggregator,
		export.NewLedgerCodec(scheme),
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.CohortServiceConfig{CacheTTL: cfg.Cohorts.CacheTTL},
	)

	workflow := service.NewSubmissionWorkflow(service.WorkflowConfig{AutoApproveEnrollment: cfg.Workflow.AutoApproveEnrollment})
	submissionSvc := service.NewSubmissionService(
		repository.NewSubmissionRepository(db),
		repository.NewTransitionRepository(db),
		workflow,
		metricsSvc,
		validate,
		logr,
	)

	checks := []handler.ReadinessCheck{{Name: "postgres", Ping: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: cacheRepo.Ping})
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks...)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(actormiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", metricsHandler.Snapshot)

	cohortHandler := handler.NewCohortHandler(cohortSvc)
	api.POST("/grades/compute", cohortHandler.Compute)
	courses := api.Group("/courses/:courseId")
	courses.GET("/summary", cohortHandler.Summary)
	courses.POST("/batch", cohortHandler.Batch)
	courses.GET("/ledger", cohortHandler.ExportLedger)
	courses.POST("/ledger", cohortHandler.ImportLedger)
	courses.POST("/records/:recordId/attendance", cohortHandler.RecordAttendance)
	courses.PATCH("/records/:recordId/requirements/:requirementId", cohortHandler.UpdateRequirement)

	submissionHandler := handler.NewSubmissionHandler(submissionSvc)
	submissions := api.Group("/submissions")
	submissions.POST("", submissionHandler.Create)
	submissions.GET("", submissionHandler.List)
	submissions.GET("/:id", submissionHandler.Get)
	submissions.GET("/:id/actions", submissionHandler.Actions)
	submissions.POST("/:id/transitions", submissionHandler.Transition)
	submissions.GET("/:id/history", submissionHandler.History)

	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		queue = mountReports(ctx, api, cfg, db, cohortSvc, metricsSvc, validate, logr)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "scheme", scheme.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}

// mountReports wires grade sheet generation: storage, signer, queue and routes.
func mountReports(ctx context.Context, api *gin.RouterGroup, cfg *config.Config, db *sqlx.DB, cohorts *service.CohortService, metricsSvc *service.MetricsService, validate *validator.Validate, logr *zap.Logger) *jobs.Queue {
	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare grade sheet storage", "dir", cfg.Reports.StorageDir, "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(cohorts, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr, nil, nil)

	reportRepo := repository.NewReportRepository(db)
	worker := service.NewReportWorker(reportRepo, exportSvc, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue(service.GradeSheetJobType, worker.Handle, jobs.QueueConfig{
		Workers:       cfg.Reports.WorkerConcurrency,
		MaxRetries:    cfg.Reports.WorkerRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: time.Minute,
		JobTimeout:    2 * time.Minute,
		Logger:        logr,
	})
	queue.Start(ctx)
	if err := metricsSvc.ObserveQueue(service.GradeSheetJobType, queue.Stats); err != nil {
		logr.Warn("queue metrics not registered", zap.Error(err))
	}

	reportSvc := service.NewReportService(reportRepo, queue, exportSvc, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Reports.SignedURLTTL,
		CleanupInterval: time.Hour,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	reportHandler := handler.NewReportHandler(reportSvc, logr)
	api.POST("/reports", reportHandler.Generate)
	api.GET("/reports/:id", reportHandler.Status)
	api.GET("/export/:token", reportHandler.Download)
	return queue
}
