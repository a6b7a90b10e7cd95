package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/model"
)

func TestGenerateQuestions_FallbackWithoutAPIKey(t *testing.T) {
	svc := NewAIService(context.Background(), &config.Config{GeminiTimeout: time.Second})

	questions := svc.GenerateQuestions(context.Background(), &model.GenerateTestRequest{
		Skill: "kubernetes",
		Count: 3,
	})
	require.Len(t, questions, 3)

	for _, q := range questions {
		assert.Equal(t, model.QuestionTypeMultipleChoice, q.Type)
		assert.Equal(t, "kubernetes", q.Skill)
		assert.Equal(t, model.DifficultyMedium, q.Difficulty)
		assert.Equal(t, "Option A", q.CorrectAnswer)
		assert.Equal(t, DefaultPoints(model.DifficultyMedium), q.Points)
	}
}

func TestGenerateQuestions_FallbackDefaults(t *testing.T) {
	svc := NewAIService(context.Background(), &config.Config{GeminiTimeout: time.Second})

	questions := svc.GenerateQuestions(context.Background(), &model.GenerateTestRequest{Skill: "go"})
	assert.Len(t, questions, 5)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[{"text":"q"}]`, stripCodeFence("```json\n[{\"text\":\"q\"}]\n```"))
	assert.Equal(t, `[{"text":"q"}]`, stripCodeFence("```\n[{\"text\":\"q\"}]\n```"))
	assert.Equal(t, `[{"text":"q"}]`, stripCodeFence(`[{"text":"q"}]`))
}

func TestDefaultPoints(t *testing.T) {
	assert.Equal(t, 5, DefaultPoints(model.DifficultyEasy))
	assert.Equal(t, 10, DefaultPoints(model.DifficultyMedium))
	assert.Equal(t, 15, DefaultPoints(model.DifficultyHard))
}
