package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/router"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	"github.com/stemsi/exstem-proctor/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting ExStem Proctor")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	examRepo := repository.NewExamRepository(pool)
	setRepo := repository.NewQuestionSetRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	entitlementRepo := repository.NewEntitlementRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	submissionRepo := repository.NewSubmissionRepository(pool)
	answerRepo := repository.NewAnswerRepository(pool)
	violationRepo := repository.NewViolationRepository(pool)
	monitorRepo := repository.NewMonitorRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, rdb)
	monitorService := service.NewMonitorService(monitorRepo, rdb, log)
	chainTokens := service.NewChainTokenService(cfg.ChainTokenSecret, cfg.ChainTokenTTL)
	accessService := service.NewAccessService(entitlementRepo, rdb, log)
	loaderService := service.NewLoaderService(setRepo, questionRepo, rdb, cfg.SetCacheTTL, log)
	continuityService := service.NewContinuityService(setRepo, chainTokens, log)
	unlockService := service.NewUnlockService(setRepo, submissionRepo, cfg.DefaultSetMinutes, log)
	attemptService := service.NewAttemptService(attemptRepo, submissionRepo, monitorService, rdb, log)
	resultService := service.NewResultService(submissionRepo, chainTokens, monitorService, log)
	autosaveService := service.NewAutosaveService(answerRepo, rdb, log)
	violationService := service.NewViolationService(rdb, monitorService, log)
	translationService := service.NewTranslationService(cfg.TranslateURL, cfg.TranslateTimeout, cfg.DefaultLanguage, rdb, log)

	sessionService := service.NewSessionService(service.SessionServiceDeps{
		Exams:       examRepo,
		Loader:      loaderService,
		Continuity:  continuityService,
		Unlock:      unlockService,
		Access:      accessService,
		Attempts:    attemptService,
		Results:     resultService,
		Autosave:    autosaveService,
		Violations:  violationService,
		Translation: translationService,
	}, session.Config{
		TerminalSetThreshold: cfg.TerminalSetThreshold,
		TickInterval:         cfg.TimerTick,
	}, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentPortal: handler.NewStudentPortalHandler(
			sessionService, accessService, loaderService, unlockService,
			continuityService, chainTokens, resultService, log,
		),
		WS:      handler.NewWSHandler(sessionService, translationService, log, cfg.AllowedOrigins),
		Monitor: handler.NewMonitorHandler(sessionService, monitorService, log),
		System:  handler.NewSystemHandler(pool, rdb, sessionService, log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	answerWorker := worker.NewAnswerWorker(answerRepo, rdb, cfg.WorkerBatchSize, log)
	violationWorker := worker.NewViolationWorker(violationRepo, rdb, cfg.WorkerBatchSize, log)

	workers.Add(2)
	go func() {
		defer workers.Done()
		answerWorker.Start(workerCtx)
	}()
	go func() {
		defer workers.Done()
		violationWorker.Start(workerCtx)
	}()

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Sets are cached before accepting traffic so the first wave of
	// students does not stampede PostgreSQL.
	if err := loaderService.PrewarmExams(ctx, examRepo); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, rdb, cfg, log)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Close live sessions. Their start times and answers stay in Redis
	// and PostgreSQL, so students resume on reconnect.
	sessionService.Shutdown()

	// 3. Stop workers and wait for their buffers to flush.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
