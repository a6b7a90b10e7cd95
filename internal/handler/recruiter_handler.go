package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/middleware"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/response"
	"github.com/skillevaluator/backend/internal/service"
	"github.com/skillevaluator/backend/internal/validator"
)

// RecruiterHandler handles test and question management endpoints.
type RecruiterHandler struct {
	testService     *service.TestService
	questionService *service.QuestionService
	rankingService  *service.RankingService
	statsService    *service.StatsService
	aiService       *service.AIService
	log             zerolog.Logger
}

// NewRecruiterHandler creates a new RecruiterHandler.
func NewRecruiterHandler(
	testService *service.TestService,
	questionService *service.QuestionService,
	rankingService *service.RankingService,
	statsService *service.StatsService,
	aiService *service.AIService,
) *RecruiterHandler {
	return &RecruiterHandler{
		testService:     testService,
		questionService: questionService,
		rankingService:  rankingService,
		statsService:    statsService,
		aiService:       aiService,
		log:             log.With().Str("component", "recruiter_handler").Logger(),
	}
}

// ─── Tests ──────────────────────────────────────────────────────────

// ListTests godoc
// GET /api/v1/recruiter/tests
// Lists the recruiter's own tests.
func (h *RecruiterHandler) ListTests(c *gin.Context) {
	claims := middleware.GetClaims(c)

	tests, err := h.testService.ListByCreator(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}

// CreateTest godoc
// POST /api/v1/recruiter/tests
// Creates a new test. Tests start inactive and must be activated explicitly.
func (h *RecruiterHandler) CreateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"test": test})
}

// GetTest godoc
// GET /api/v1/recruiter/tests/:test_id
func (h *RecruiterHandler) GetTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if test.CreatedBy != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// UpdateTest godoc
// PATCH /api/v1/recruiter/tests/:test_id
// Partially updates a test; setting is_active opens or closes it.
func (h *RecruiterHandler) UpdateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.UpdateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.Update(c.Request.Context(), claims.UserID, testID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DeleteTest godoc
// DELETE /api/v1/recruiter/tests/:test_id
func (h *RecruiterHandler) DeleteTest(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	if err := h.testService.Delete(c.Request.Context(), claims.UserID, testID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// AttachQuestions godoc
// POST /api/v1/recruiter/tests/:test_id/questions
// Attaches existing bank questions to a test and recomputes its total.
func (h *RecruiterHandler) AttachQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	var req model.AttachQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	test, err := h.testService.AttachQuestions(c.Request.Context(), claims.UserID, testID, req.QuestionIDs)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// DetachQuestion godoc
// DELETE /api/v1/recruiter/tests/:test_id/questions/:question_id
func (h *RecruiterHandler) DetachQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	test, err := h.testService.DetachQuestion(c.Request.Context(), claims.UserID, testID, questionID)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"test": test})
}

// GetTestResults godoc
// GET /api/v1/recruiter/tests/:test_id/sessions
// Lists every completed attempt at one of the recruiter's tests, best first.
func (h *RecruiterHandler) GetTestResults(c *gin.Context) {
	claims := middleware.GetClaims(c)
	testID, ok := parseIDParam(c, "test_id")
	if !ok {
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), testID)
	if err != nil {
		failFromService(c, err)
		return
	}
	if test.CreatedBy != claims.UserID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	sessions, err := h.rankingService.CompletedSessions(c.Request.Context(), testID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// ─── Question bank ──────────────────────────────────────────────────

// ListQuestions godoc
// GET /api/v1/recruiter/questions
func (h *RecruiterHandler) ListQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	questions, err := h.questionService.ListByCreator(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// CreateQuestion godoc
// POST /api/v1/recruiter/questions
func (h *RecruiterHandler) CreateQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.CreateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Create(c.Request.Context(), claims.UserID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"question": question})
}

// UpdateQuestion godoc
// PUT /api/v1/recruiter/questions/:question_id
// Partially updates a bank question; tests holding it get their totals and
// cached payloads refreshed.
func (h *RecruiterHandler) UpdateQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.UpdateQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	question, err := h.questionService.Update(c.Request.Context(), claims.UserID, questionID, &req)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// DeleteQuestion godoc
// DELETE /api/v1/recruiter/questions/:question_id
func (h *RecruiterHandler) DeleteQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	questionID, ok := parseIDParam(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), claims.UserID, questionID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// BatchDeleteQuestions godoc
// POST /api/v1/recruiter/questions/batch-delete
func (h *RecruiterHandler) BatchDeleteQuestions(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.BatchDeleteQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.questionService.BatchDelete(c.Request.Context(), claims.UserID, req.QuestionIDs); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// GetAnalytics godoc
// GET /api/v1/recruiter/analytics
// Summarizes the recruiter's tests and attempts. Admins get platform-wide
// numbers.
func (h *RecruiterHandler) GetAnalytics(c *gin.Context) {
	claims := middleware.GetClaims(c)

	creatorID := claims.UserID
	if claims.Role == model.RoleAdmin {
		creatorID = uuid.Nil
	}

	analytics, err := h.statsService.RecruiterAnalytics(c.Request.Context(), creatorID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analytics": analytics})
}

// GenerateTest godoc
// POST /api/v1/recruiter/tests/generate
// Creates a test whose questions come from the AI generator. When the
// generator is unavailable the static fallback bank is used, so the
// operation always produces a usable test.
func (h *RecruiterHandler) GenerateTest(c *gin.Context) {
	claims := middleware.GetClaims(c)

	var req model.GenerateTestRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	drafts := h.aiService.GenerateQuestions(ctx, &req)

	test, err := h.testService.Create(ctx, claims.UserID, &model.CreateTestRequest{
		Title:           req.Skill + " assessment",
		Description:     "Generated assessment for " + req.Skill,
		DurationMinutes: 30,
	})
	if err != nil {
		failFromService(c, err)
		return
	}

	questionIDs := make([]uuid.UUID, 0, len(drafts))
	for i := range drafts {
		question, err := h.questionService.Create(ctx, claims.UserID, &drafts[i])
		if err != nil {
			h.log.Error().Err(err).Msg("Generated question insert failed")
			continue
		}
		questionIDs = append(questionIDs, question.ID)
	}
	if len(questionIDs) == 0 {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	test, err = h.testService.AttachQuestions(ctx, claims.UserID, test.ID, questionIDs)
	if err != nil {
		failFromService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"test": test, "question_count": len(questionIDs)})
}
