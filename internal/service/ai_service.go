package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/model"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.0-flash"

// generatedQuestion is the JSON shape the model is prompted to return.
type generatedQuestion struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"`
}

// AIService generates multiple-choice questions with Gemini. Any failure,
// including a missing API key, falls back to a static question template so
// test generation always succeeds.
type AIService struct {
	cfg    *config.Config
	client *genai.Client
	log    zerolog.Logger
}

// NewAIService creates a new AIService. A nil client is valid and means
// fallback-only operation.
func NewAIService(ctx context.Context, cfg *config.Config) *AIService {
	s := &AIService{
		cfg: cfg,
		log: log.With().Str("component", "ai_service").Logger(),
	}

	if cfg.GeminiAPIKey == "" {
		s.log.Warn().Msg("GEMINI_API_KEY not set, AI generation will use the static fallback")
		return s
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Gemini client init failed, AI generation will use the static fallback")
		return s
	}
	s.client = client
	return s
}

// GenerateQuestions produces count multiple-choice question drafts for a
// skill. The drafts are not persisted here.
func (s *AIService) GenerateQuestions(ctx context.Context, req *model.GenerateTestRequest) []model.CreateQuestionRequest {
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = model.DifficultyMedium
	}
	count := req.Count
	if count == 0 {
		count = 5
	}

	if s.client != nil {
		questions, err := s.generateWithGemini(ctx, req.Skill, difficulty, count)
		if err == nil {
			return questions
		}
		s.log.Warn().Err(err).
			Str("skill", req.Skill).
			Msg("Gemini generation failed, using static fallback")
	}
	return fallbackQuestions(req.Skill, difficulty, count)
}

func (s *AIService) generateWithGemini(ctx context.Context, skill string, difficulty model.Difficulty, count int) ([]model.CreateQuestionRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GeminiTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Generate exactly %d challenging and practical technical multiple-choice questions "+
			"for the skill '%s' with difficulty level '%s'. "+
			"Return ONLY a JSON array of objects with the fields: "+
			"'text' (the question), 'options' (array of exactly 4 option strings), "+
			"'correct_answer' (the exact text of the correct option), 'points' (integer). "+
			"Questions must not be generic; use code snippets or specific scenarios where applicable. "+
			"Return raw JSON only, no markdown.",
		count, skill, difficulty)

	result, err := s.client.Models.GenerateContent(ctx, geminiModel, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	raw := stripCodeFence(result.Text())

	var generated []generatedQuestion
	if err := json.Unmarshal([]byte(raw), &generated); err != nil {
		return nil, fmt.Errorf("decode generated questions: %w", err)
	}
	if len(generated) == 0 {
		return nil, fmt.Errorf("model returned an empty question set")
	}

	questions := make([]model.CreateQuestionRequest, 0, len(generated))
	for _, g := range generated {
		if g.Text == "" || g.CorrectAnswer == "" {
			continue
		}
		options, err := json.Marshal(g.Options)
		if err != nil {
			continue
		}
		points := g.Points
		if points <= 0 {
			points = DefaultPoints(difficulty)
		}
		questions = append(questions, model.CreateQuestionRequest{
			Text:          g.Text,
			Type:          model.QuestionTypeMultipleChoice,
			Skill:         skill,
			Difficulty:    difficulty,
			Options:       options,
			CorrectAnswer: g.CorrectAnswer,
			Points:        points,
		})
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("model returned no usable questions")
	}
	return questions, nil
}

// fallbackQuestions builds placeholder questions so a recruiter's generation
// flow keeps working without an AI backend.
func fallbackQuestions(skill string, difficulty model.Difficulty, count int) []model.CreateQuestionRequest {
	options, _ := json.Marshal([]string{"Option A", "Option B", "Option C", "Option D"})

	questions := make([]model.CreateQuestionRequest, 0, count)
	for i := 1; i <= count; i++ {
		questions = append(questions, model.CreateQuestionRequest{
			Text:          fmt.Sprintf("[FALLBACK] %s question %d: technical insight about %s.", difficulty, i, skill),
			Type:          model.QuestionTypeMultipleChoice,
			Skill:         skill,
			Difficulty:    difficulty,
			Options:       options,
			CorrectAnswer: "Option A",
			Points:        DefaultPoints(difficulty),
		})
	}
	return questions
}

// stripCodeFence removes a surrounding markdown code block, which some model
// responses include despite the JSON mime type.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
