package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
)

// Difficulty enumerates question difficulty levels, ordered easiest first.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Question represents a single assessment question. CorrectAnswer and
// Explanation never leave the server through candidate-facing endpoints.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	Text          string          `json:"text"`
	Type          QuestionType    `json:"type"`
	Skill         string          `json:"skill"`
	Difficulty    Difficulty      `json:"difficulty"`
	Options       json.RawMessage `json:"options,omitempty"`
	CorrectAnswer string          `json:"correct_answer,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	Points        int             `json:"points"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// QuestionForCandidate is a question with the answer key stripped, safe to
// send to a test taker.
type QuestionForCandidate struct {
	ID      uuid.UUID       `json:"id"`
	Text    string          `json:"text"`
	Type    QuestionType    `json:"type"`
	Skill   string          `json:"skill"`
	Points  int             `json:"points"`
	Options json.RawMessage `json:"options,omitempty"`
}

// ForCandidate strips the correct answer and explanation from a question.
func (q Question) ForCandidate() QuestionForCandidate {
	return QuestionForCandidate{
		ID:      q.ID,
		Text:    q.Text,
		Type:    q.Type,
		Skill:   q.Skill,
		Points:  q.Points,
		Options: q.Options,
	}
}

// CreateQuestionRequest is the payload for creating a question.
type CreateQuestionRequest struct {
	Text          string          `json:"text" binding:"required,min=1,max=1000"`
	Type          QuestionType    `json:"type" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Skill         string          `json:"skill" binding:"required,min=1,max=100"`
	Difficulty    Difficulty      `json:"difficulty" binding:"required,oneof=EASY MEDIUM HARD"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"required,min=1,max=500"`
	Explanation   string          `json:"explanation" binding:"omitempty,max=1000"`
	Points        int             `json:"points" binding:"omitempty,min=1"`
}

// UpdateQuestionRequest is the payload for a partial question update. Only
// set fields are applied.
type UpdateQuestionRequest struct {
	Text          string          `json:"text" binding:"omitempty,min=1,max=1000"`
	Type          QuestionType    `json:"type" binding:"omitempty,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER"`
	Skill         string          `json:"skill" binding:"omitempty,min=1,max=100"`
	Difficulty    Difficulty      `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD"`
	Options       json.RawMessage `json:"options" binding:"omitempty"`
	CorrectAnswer string          `json:"correct_answer" binding:"omitempty,min=1,max=500"`
	Explanation   string          `json:"explanation" binding:"omitempty,max=1000"`
	Points        int             `json:"points" binding:"omitempty,min=1"`
}

// BatchDeleteQuestionsRequest is the payload for deleting several bank
// questions at once.
type BatchDeleteQuestionsRequest struct {
	QuestionIDs []uuid.UUID `json:"question_ids" binding:"required,min=1,dive,required"`
}

// GenerateTestRequest is the payload for AI test generation.
type GenerateTestRequest struct {
	Skill      string     `json:"skill" binding:"required,min=1,max=100"`
	Difficulty Difficulty `json:"difficulty" binding:"omitempty,oneof=EASY MEDIUM HARD"`
	Count      int        `json:"count" binding:"omitempty,min=1,max=20"`
}
