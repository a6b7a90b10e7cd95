package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/database"
	"github.com/skillevaluator/backend/internal/handler"
	"github.com/skillevaluator/backend/internal/logger"
	"github.com/skillevaluator/backend/internal/repository"
	"github.com/skillevaluator/backend/internal/router"
	"github.com/skillevaluator/backend/internal/service"
	"github.com/skillevaluator/backend/internal/validator"
	"github.com/skillevaluator/backend/internal/worker"
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
		Msg("Starting Skill Evaluator Backend")

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
	userRepo := repository.NewUserRepository(pool)
	testRepo := repository.NewTestRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, userRepo)
	userService := service.NewUserService(userRepo)
	testService := service.NewTestService(testRepo, questionRepo, rdb)
	questionService := service.NewQuestionService(questionRepo, testService)
	statsService := service.NewStatsService(testRepo, sessionRepo, questionRepo, userRepo)
	draftService := service.NewDraftService(rdb)
	rankingService := service.NewRankingService(sessionRepo, rdb)
	sessionService := service.NewSessionService(sessionRepo, testRepo, questionRepo, testService, userRepo, draftService, rankingService)
	aiService := service.NewAIService(ctx, cfg)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Candidate: handler.NewCandidateHandler(testService, sessionService, rankingService),
		Recruiter: handler.NewRecruiterHandler(testService, questionService, rankingService, statsService, aiService),
		Admin:     handler.NewAdminHandler(userService, testService, statsService),
		WS:        handler.NewWSHandler(sessionService, draftService, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	leaderboardWorker := worker.NewLeaderboardWorker(rdb, rankingService)
	go leaderboardWorker.Start(workerCtx)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every active test payload into Redis before accepting traffic.
	if err := prewarmActiveTests(ctx, testService, log); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
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

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for queues to drain.
	workerCancel()
	time.Sleep(2 * time.Second) // Allow workers to drain.

	log.Info().Msg("Shutdown complete")
}

// prewarmActiveTests loads every active test's candidate payload into Redis.
func prewarmActiveTests(ctx context.Context, testService *service.TestService, log zerolog.Logger) error {
	tests, err := testService.ListActive(ctx)
	if err != nil {
		return err
	}
	for i := range tests {
		if err := testService.WarmTestCache(ctx, &tests[i]); err != nil {
			log.Warn().Err(err).Str("test_id", tests[i].ID.String()).Msg("Prewarm skipped")
		}
	}
	log.Info().Int("tests", len(tests)).Msg("Active test caches prewarmed")
	return nil
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
