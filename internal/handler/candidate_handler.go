package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skillevaluator/backend/internal/middleware"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/response"
	"github.com/skillevaluator/backend/internal/service"
	"github.com/skillevaluator/backend/internal/validator"
)

// CandidateHandler handles the candidate-facing test-taking endpoints.
type CandidateHandler struct {
	testService    *service.TestService
	sessionService *service.SessionService
	rankingService *service.RankingService
}

// NewCandidateHandler creates a new CandidateHandler.
func NewCandidateHandler(
	testService *service.TestService,
	sessionService *service.SessionService,
	rankingService *service.RankingService,
) *CandidateHandler {
	return &CandidateHandler{
		testService:    testService,
		sessionService: sessionService,
		rankingService: rankingService,
	}
}

// ListTests godoc
// GET /api/v1/candidate/tests
// Lists every test currently open for attempts.
func (h *CandidateHandler) ListTests(c *gin.Context) {
	tests, err := h.testService.ListActive(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// StartTest godoc
// POST /api/v1/candidate/tests/:test_id/start
// Starts or resumes the candidate's attempt and returns the session with a
// fresh random question order.
func (h *CandidateHandler) StartTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	session, err := h.sessionService.StartSession(c.Request.Context(), testID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}

	questions, err := h.sessionService.GetRandomizedQuestions(c.Request.Context(), testID)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.StartTestResponse{
		Session:          session,
		Questions:        questions,
		SecondsRemaining: session.RemainingSeconds(time.Now()),
	})
}

// GetQuestions godoc
// GET /api/v1/candidate/tests/:test_id/questions
// Returns the test's questions in a fresh random order, answer key stripped.
func (h *CandidateHandler) GetQuestions(c *gin.Context) {
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	questions, err := h.sessionService.GetRandomizedQuestions(c.Request.Context(), testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// SubmitTest godoc
// POST /api/v1/candidate/tests/:test_id/sessions/:session_id/submit
// Grades and finalizes the candidate's attempt.
func (h *CandidateHandler) SubmitTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	var req model.SubmitTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	session, err := h.sessionService.SubmitTest(c.Request.Context(), testID, sessionID, claims.UserID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"session": session})
}

// ListSessions godoc
// GET /api/v1/candidate/sessions
// Lists the candidate's attempt history, newest first.
func (h *CandidateHandler) ListSessions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	sessions, err := h.sessionService.ListByCandidate(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetResult godoc
// GET /api/v1/candidate/sessions/:session_id/result
// Returns the score, percentage, and skill breakdown of a completed attempt.
func (h *CandidateHandler) GetResult(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	result, err := h.sessionService.GetResult(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// GetRank godoc
// GET /api/v1/candidate/sessions/:session_id/rank
// Returns the completed attempt's rank and percentile among all completed
// attempts at the same test.
func (h *CandidateHandler) GetRank(c *gin.Context) {
	claims := middleware.GetClaims(c)
	sessionID, ok := parseIDParam(c, "session_id")
	if !ok {
		return
	}

	rank, err := h.rankingService.GetRank(c.Request.Context(), sessionID, claims.UserID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rank": rank})
}

// GetLeaderboard godoc
// GET /api/v1/candidate/tests/:test_id/leaderboard
// Returns the cached top scores for a test.
func (h *CandidateHandler) GetLeaderboard(c *gin.Context) {
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.rankingService.GetLeaderboard(c.Request.Context(), testID, limit)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// parseIDParam parses a UUID path parameter, failing the request on bad
// input.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
