package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/model"
)

// questionStore is the question-bank persistence contract. Update and Delete
// report which tests referenced the question so their payload caches can be
// refreshed.
type questionStore interface {
	Create(ctx context.Context, q *model.Question) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Question, error)
	Update(ctx context.Context, q *model.Question) ([]uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// payloadRefresher rebuilds the cached candidate payload of a test after its
// question set or point values changed.
type payloadRefresher interface {
	RefreshPayloadCache(ctx context.Context, testID uuid.UUID)
}

// QuestionService handles the recruiter question bank. Edits propagate to the
// payload caches of every test holding the touched question.
type QuestionService struct {
	questions questionStore
	payloads  payloadRefresher
	log       zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questions questionStore, payloads payloadRefresher) *QuestionService {
	return &QuestionService{
		questions: questions,
		payloads:  payloads,
		log:       log.With().Str("component", "question_service").Logger(),
	}
}

// Create adds a question to the caller's bank. Points default to the
// difficulty weight when the request leaves them unset.
func (s *QuestionService) Create(ctx context.Context, creatorID uuid.UUID, req *model.CreateQuestionRequest) (*model.Question, error) {
	points := req.Points
	if points == 0 {
		points = DefaultPoints(req.Difficulty)
	}

	q := &model.Question{
		Text:          req.Text,
		Type:          req.Type,
		Skill:         req.Skill,
		Difficulty:    req.Difficulty,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		Points:        points,
		CreatedBy:     creatorID,
	}
	if err := s.questions.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create question: %w", err)
	}
	return q, nil
}

// GetByID loads a single question, owner only.
func (s *QuestionService) GetByID(ctx context.Context, callerID, id uuid.UUID) (*model.Question, error) {
	q, err := s.questions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	if q.CreatedBy != callerID {
		return nil, ErrNotOwner
	}
	return q, nil
}

// ListByCreator returns the caller's question bank.
func (s *QuestionService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Question, error) {
	return s.questions.ListByCreator(ctx, creatorID)
}

// Update applies a partial edit to a bank question, owner only. Tests holding
// the question get their totals recomputed and payload caches refreshed;
// running sessions are untouched, their total_points was snapshotted at start.
func (s *QuestionService) Update(ctx context.Context, callerID, id uuid.UUID, req *model.UpdateQuestionRequest) (*model.Question, error) {
	q, err := s.GetByID(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	if req.Text != "" {
		q.Text = req.Text
	}
	if req.Type != "" {
		q.Type = req.Type
	}
	if req.Skill != "" {
		q.Skill = req.Skill
	}
	if req.Difficulty != "" {
		q.Difficulty = req.Difficulty
	}
	if req.Options != nil {
		q.Options = req.Options
	}
	if req.CorrectAnswer != "" {
		q.CorrectAnswer = req.CorrectAnswer
	}
	if req.Explanation != "" {
		q.Explanation = req.Explanation
	}
	if req.Points > 0 {
		q.Points = req.Points
	}

	testIDs, err := s.questions.Update(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("update question: %w", err)
	}
	s.refreshTests(ctx, testIDs)
	return q, nil
}

// Delete removes a question from the bank, owner only. Join rows cascade,
// affected tests get their totals recomputed and their payload caches
// refreshed so candidates stop receiving the removed question.
func (s *QuestionService) Delete(ctx context.Context, callerID, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, callerID, id); err != nil {
		return err
	}
	testIDs, err := s.questions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	s.refreshTests(ctx, testIDs)
	return nil
}

// BatchDelete removes several bank questions at once, owner only. Already
// missing questions are skipped; a foreign question aborts the batch before
// anything is deleted. Each affected test cache is refreshed once.
func (s *QuestionService) BatchDelete(ctx context.Context, callerID uuid.UUID, ids []uuid.UUID) error {
	owned := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, err := s.GetByID(ctx, callerID, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		owned = append(owned, id)
	}

	affected := make(map[uuid.UUID]struct{})
	for _, id := range owned {
		testIDs, err := s.questions.Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete question %s: %w", id, err)
		}
		for _, tid := range testIDs {
			affected[tid] = struct{}{}
		}
	}
	for tid := range affected {
		s.payloads.RefreshPayloadCache(ctx, tid)
	}
	return nil
}

func (s *QuestionService) refreshTests(ctx context.Context, testIDs []uuid.UUID) {
	for _, tid := range testIDs {
		s.payloads.RefreshPayloadCache(ctx, tid)
	}
}

// DefaultPoints maps a difficulty to its standard point value.
func DefaultPoints(d model.Difficulty) int {
	switch d {
	case model.DifficultyHard:
		return 15
	case model.DifficultyMedium:
		return 10
	default:
		return 5
	}
}
