package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/config"
	"github.com/skillevaluator/backend/internal/model"
	"github.com/skillevaluator/backend/internal/repository"
)

// TestService handles recruiter-side test management and the candidate-facing
// payload cache.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(testRepo *repository.TestRepository, questionRepo *repository.QuestionRepository, rdb *redis.Client) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID loads a test, mapping a missing row to ErrNotFound.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	test, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return test, nil
}

// ListActive returns every test currently open to candidates.
func (s *TestService) ListActive(ctx context.Context) ([]model.Test, error) {
	return s.testRepo.ListActive(ctx)
}

// ListByCreator returns tests owned by the given recruiter. A Nil creator
// lists everything (admin view).
func (s *TestService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Test, error) {
	return s.testRepo.ListByCreator(ctx, creatorID)
}

// Create registers a new test. Tests start inactive and empty.
func (s *TestService) Create(ctx context.Context, creatorID uuid.UUID, req *model.CreateTestRequest) (*model.Test, error) {
	now := time.Now().UTC()
	test := &model.Test{
		ID:              uuid.New(),
		Title:           req.Title,
		Description:     req.Description,
		CreatedBy:       creatorID,
		DurationMinutes: req.DurationMinutes,
		IsActive:        false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.testRepo.Create(ctx, test); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	return test, nil
}

// Update applies a partial update; only the owner may modify a test.
// Activating a test warms its payload cache; deactivating drops it.
func (s *TestService) Update(ctx context.Context, callerID, testID uuid.UUID, req *model.UpdateTestRequest) (*model.Test, error) {
	test, err := s.ownedTest(ctx, callerID, testID)
	if err != nil {
		return nil, err
	}

	if req.Title != "" {
		test.Title = req.Title
	}
	if req.Description != "" {
		test.Description = req.Description
	}
	if req.DurationMinutes > 0 {
		test.DurationMinutes = req.DurationMinutes
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	test.UpdatedAt = time.Now().UTC()

	if test.IsActive {
		// Refuse to open a test with no questions.
		questions, err := s.questionRepo.ListByTest(ctx, test.ID)
		if err != nil {
			return nil, fmt.Errorf("list questions: %w", err)
		}
		if len(questions) == 0 {
			return nil, ErrNoQuestions
		}
	}

	if err := s.testRepo.Update(ctx, test); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}

	if test.IsActive {
		if err := s.WarmTestCache(ctx, test); err != nil {
			s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Cache warm failed")
		}
	} else {
		s.invalidateCache(ctx, test.ID)
	}
	return test, nil
}

// Delete removes a test and its cached payload; only the owner may delete.
func (s *TestService) Delete(ctx context.Context, callerID, testID uuid.UUID) error {
	if _, err := s.ownedTest(ctx, callerID, testID); err != nil {
		return err
	}
	if err := s.testRepo.Delete(ctx, testID); err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	s.invalidateCache(ctx, testID)
	return nil
}

// AttachQuestions links questions to a test and recomputes its total points.
func (s *TestService) AttachQuestions(ctx context.Context, callerID, testID uuid.UUID, questionIDs []uuid.UUID) (*model.Test, error) {
	if _, err := s.ownedTest(ctx, callerID, testID); err != nil {
		return nil, err
	}

	for _, qid := range questionIDs {
		if _, err := s.questionRepo.GetByID(ctx, qid); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("get question: %w", err)
		}
	}

	if err := s.testRepo.AttachQuestions(ctx, testID, questionIDs); err != nil {
		return nil, fmt.Errorf("attach questions: %w", err)
	}

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("reload test: %w", err)
	}
	if test.IsActive {
		if err := s.WarmTestCache(ctx, test); err != nil {
			s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Cache warm failed")
		}
	}
	return test, nil
}

// DetachQuestion unlinks a question from a test and recomputes total points.
func (s *TestService) DetachQuestion(ctx context.Context, callerID, testID, questionID uuid.UUID) (*model.Test, error) {
	if _, err := s.ownedTest(ctx, callerID, testID); err != nil {
		return nil, err
	}
	if err := s.testRepo.DetachQuestion(ctx, testID, questionID); err != nil {
		return nil, fmt.Errorf("detach question: %w", err)
	}

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("reload test: %w", err)
	}
	if test.IsActive {
		if err := s.WarmTestCache(ctx, test); err != nil {
			s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Cache warm failed")
		}
	}
	return test, nil
}

// GetPayload returns the candidate-facing payload for a test, reading through
// the Redis cache. Question order is the stored order; callers shuffle.
func (s *TestService) GetPayload(ctx context.Context, test *model.Test) (*model.TestPayload, error) {
	key := config.CacheKey.TestPayloadKey(test.ID.String())

	cached, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		payload := &model.TestPayload{}
		if err := json.Unmarshal(cached, payload); err == nil {
			return payload, nil
		}
		// Corrupt cache entry, rebuild below.
		s.rdb.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Cache read failed")
	}

	payload, err := s.buildPayload(ctx, test)
	if err != nil {
		return nil, err
	}
	if err := s.WarmTestCache(ctx, test); err != nil {
		s.log.Warn().Err(err).Str("test_id", test.ID.String()).Msg("Cache warm failed")
	}
	return payload, nil
}

// WarmTestCache builds the answer-stripped payload and stores it in Redis.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) error {
	payload, err := s.buildPayload(ctx, test)
	if err != nil {
		return err
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	key := config.CacheKey.TestPayloadKey(test.ID.String())
	if err := s.rdb.Set(ctx, key, payloadJSON, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", test.ID.String()).
		Int("questions", len(payload.Questions)).
		Msg("Cache warmed")
	return nil
}

func (s *TestService) buildPayload(ctx context.Context, test *model.Test) (*model.TestPayload, error) {
	questions, err := s.questionRepo.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	candidateQuestions := make([]model.QuestionForCandidate, len(questions))
	for i, q := range questions {
		candidateQuestions[i] = q.ForCandidate()
	}

	return &model.TestPayload{
		TestID:          test.ID,
		Title:           test.Title,
		DurationMinutes: test.DurationMinutes,
		TotalPoints:     test.TotalPoints,
		Questions:       candidateQuestions,
	}, nil
}

// RefreshPayloadCache drops a test's cached payload and rebuilds it when the
// test is still active and answerable. Question-bank edits call this for every
// test holding the edited question, since those payloads are cached without a
// TTL and would otherwise serve the stale question set indefinitely.
func (s *TestService) RefreshPayloadCache(ctx context.Context, testID uuid.UUID) {
	s.invalidateCache(ctx, testID)

	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Cache refresh load failed")
		}
		return
	}
	if !test.IsActive {
		return
	}
	// A test left with zero questions simply stays uncached.
	if err := s.WarmTestCache(ctx, test); err != nil && !errors.Is(err, ErrNoQuestions) {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Cache refresh warm failed")
	}
}

func (s *TestService) invalidateCache(ctx context.Context, testID uuid.UUID) {
	if err := s.rdb.Del(ctx, config.CacheKey.TestPayloadKey(testID.String())).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID.String()).Msg("Cache invalidation failed")
	}
}

func (s *TestService) ownedTest(ctx context.Context, callerID, testID uuid.UUID) (*model.Test, error) {
	test, err := s.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test.CreatedBy != callerID {
		return nil, ErrNotOwner
	}
	return test, nil
}
