package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/handler"
	"github.com/skillevaluator/backend/internal/middleware"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/response"
	"github.com/skillevaluator/backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth      *handler.AuthHandler
	Candidate *handler.CandidateHandler
	Recruiter *handler.RecruiterHandler
	Admin     *handler.AdminHandler
	WS        *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)
		auth.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)
	}

	// ─── 2. Candidate Group ────────────────────────────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleCandidate),
	)
	{
		candidateAPI.GET("/tests", handlers.Candidate.ListTests)
		candidateAPI.POST("/tests/:test_id/start", handlers.Candidate.StartTest)
		candidateAPI.GET("/tests/:test_id/questions", handlers.Candidate.GetQuestions)
		candidateAPI.POST("/tests/:test_id/sessions/:session_id/submit", handlers.Candidate.SubmitTest)
		candidateAPI.GET("/tests/:test_id/leaderboard", handlers.Candidate.GetLeaderboard)
		candidateAPI.GET("/sessions", handlers.Candidate.ListSessions)
		candidateAPI.GET("/sessions/:session_id/result", handlers.Candidate.GetResult)
		candidateAPI.GET("/sessions/:session_id/rank", handlers.Candidate.GetRank)
	}

	// ─── 3. WebSocket Group (WS Auth via query token) ──────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireWSAuth(authService),
		middleware.RequireRole(model.RoleCandidate),
	)
	{
		ws.GET("/candidate/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Recruiter Group ────────────────────────────────────────────
	recruiterAPI := router.Group("/api/v1/recruiter")
	recruiterAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleRecruiter, model.RoleAdmin),
	)
	{
		recruiterAPI.GET("/tests", handlers.Recruiter.ListTests)
		recruiterAPI.POST("/tests", handlers.Recruiter.CreateTest)
		recruiterAPI.POST("/tests/generate", handlers.Recruiter.GenerateTest)
		recruiterAPI.GET("/tests/:test_id", handlers.Recruiter.GetTest)
		recruiterAPI.PATCH("/tests/:test_id", handlers.Recruiter.UpdateTest)
		recruiterAPI.DELETE("/tests/:test_id", handlers.Recruiter.DeleteTest)
		recruiterAPI.POST("/tests/:test_id/questions", handlers.Recruiter.AttachQuestions)
		recruiterAPI.DELETE("/tests/:test_id/questions/:question_id", handlers.Recruiter.DetachQuestion)
		recruiterAPI.GET("/tests/:test_id/sessions", handlers.Recruiter.GetTestResults)

		recruiterAPI.GET("/questions", handlers.Recruiter.ListQuestions)
		recruiterAPI.POST("/questions", handlers.Recruiter.CreateQuestion)
		recruiterAPI.PUT("/questions/:question_id", handlers.Recruiter.UpdateQuestion)
		recruiterAPI.DELETE("/questions/:question_id", handlers.Recruiter.DeleteQuestion)
		recruiterAPI.POST("/questions/batch-delete", handlers.Recruiter.BatchDeleteQuestions)

		recruiterAPI.GET("/analytics", handlers.Recruiter.GetAnalytics)
	}

	// ─── 5. Admin Group ────────────────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireRole(model.RoleAdmin),
	)
	{
		adminAPI.GET("/stats", handlers.Admin.GetStats)
		adminAPI.GET("/users", handlers.Admin.ListUsers)
		adminAPI.PATCH("/users/:user_id/role", handlers.Admin.UpdateUserRole)
		adminAPI.DELETE("/users/:user_id", handlers.Admin.DeleteUser)
		adminAPI.GET("/tests", handlers.Admin.ListAllTests)
	}

	return router
}
