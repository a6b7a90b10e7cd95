package model

import (
	"time"

	"github.com/google/uuid"
)

// Test represents a timed assessment composed of questions.
type Test struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	CreatedBy       uuid.UUID `json:"created_by"`
	DurationMinutes int       `json:"duration_minutes"`
	TotalPoints     int       `json:"total_points"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TestPayload is the candidate-facing view of a test: questions with the
// answer key stripped. Cached in Redis for active tests; question order is
// shuffled per request after loading, never inside the cache.
type TestPayload struct {
	TestID          uuid.UUID              `json:"test_id"`
	Title           string                 `json:"title"`
	DurationMinutes int                    `json:"duration_minutes"`
	TotalPoints     int                    `json:"total_points"`
	Questions       []QuestionForCandidate `json:"questions"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title           string `json:"title" binding:"required,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1,max=480"`
}

// UpdateTestRequest is the payload for updating an existing test.
type UpdateTestRequest struct {
	Title           string `json:"title" binding:"omitempty,min=3,max=255"`
	Description     string `json:"description" binding:"omitempty,max=2000"`
	DurationMinutes int    `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	IsActive        *bool  `json:"is_active" binding:"omitempty"`
}

// AttachQuestionsRequest is the payload for attaching questions to a test.
type AttachQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1,dive,required"`
}
