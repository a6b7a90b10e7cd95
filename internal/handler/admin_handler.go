package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skillevaluator/backend/internal/middleware"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/response"
	"github.com/skillevaluator/backend/internal/service"
	"github.com/skillevaluator/backend/internal/validator"
)

// AdminHandler handles administrative user management endpoints.
type AdminHandler struct {
	userService  *service.UserService
	testService  *service.TestService
	statsService *service.StatsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(userService *service.UserService, testService *service.TestService, statsService *service.StatsService) *AdminHandler {
	return &AdminHandler{userService: userService, testService: testService, statsService: statsService}
}

// ListUsers godoc
// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.List(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": users})
}

// UpdateUserRole godoc
// PATCH /api/v1/admin/users/:user_id/role
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	var req model.UpdateRoleRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	user, err := h.userService.UpdateRole(c.Request.Context(), userID, req.Role)
	if err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user})
}

// DeleteUser godoc
// DELETE /api/v1/admin/users/:user_id
// An admin cannot delete their own account.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	claims := middleware.GetClaims(c)
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}
	if userID == claims.UserID {
		response.Fail(c, http.StatusConflict, response.ErrConflict)
		return
	}

	if err := h.userService.Delete(c.Request.Context(), userID); err != nil {
		failFromService(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// GetStats godoc
// GET /api/v1/admin/stats
// Platform-wide user/test/question/session counts.
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.statsService.AdminStats(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

// ListAllTests godoc
// GET /api/v1/admin/tests
// Lists every test regardless of owner.
func (h *AdminHandler) ListAllTests(c *gin.Context) {
	tests, err := h.testService.ListByCreator(c.Request.Context(), uuid.Nil)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"tests": tests})
}
