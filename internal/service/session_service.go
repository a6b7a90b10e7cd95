package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skillevaluator/backend/internal/model"
)

// sessionStore is the session persistence contract. Create must refuse a
// second IN_PROGRESS row for the same (test, candidate) pair and surface the
// lost race as pgx.ErrNoRows; Finalize and MarkExpired must be conditional on
// the row still being IN_PROGRESS and report whether they won.
type sessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error)
	FindActiveByTestAndCandidate(ctx context.Context, testID, candidateID uuid.UUID) (*model.Session, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Session, error)
	Create(ctx context.Context, s *model.Session) error
	Finalize(ctx context.Context, s *model.Session) (bool, error)
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)
}

type testCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
}

type questionCatalog interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
}

// payloadSource serves the answer-stripped candidate view of a test, backed
// by the Redis payload cache. Grading still goes through questionCatalog
// because the stripped payload has no answer key.
type payloadSource interface {
	GetPayload(ctx context.Context, test *model.Test) (*model.TestPayload, error)
}

type candidateResolver interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

type draftBuffer interface {
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

type rankingQueue interface {
	EnqueueRefresh(ctx context.Context, testID uuid.UUID) error
}

// SessionService is the session lifecycle engine. Expiry is lazy: nothing
// sweeps sessions in the background, the deadline is checked against the
// clock whenever a session is touched.
type SessionService struct {
	sessions  sessionStore
	tests     testCatalog
	questions questionCatalog
	payloads  payloadSource
	users     candidateResolver
	drafts    draftBuffer
	ranking   rankingQueue
	now       func() time.Time
	log       zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	sessions sessionStore,
	tests testCatalog,
	questions questionCatalog,
	payloads payloadSource,
	users candidateResolver,
	drafts draftBuffer,
	ranking rankingQueue,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		tests:     tests,
		questions: questions,
		payloads:  payloads,
		users:     users,
		drafts:    drafts,
		ranking:   ranking,
		now:       time.Now,
		log:       log.With().Str("component", "session_service").Logger(),
	}
}

// StartSession starts a candidate's attempt at a test, or resumes the one
// already running.
//
// When the existing attempt's deadline has passed it is transitioned to
// EXPIRED and a fresh session is created. ExpiresAt and TotalPoints are
// snapshotted here and never recalculated, so editing the test afterwards
// cannot affect a running attempt.
func (s *SessionService) StartSession(ctx context.Context, testID, candidateID uuid.UUID) (*model.Session, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	if !test.IsActive {
		return nil, ErrTestInactive
	}

	if _, err := s.users.GetByID(ctx, candidateID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}

	// The store's partial uniqueness constraint serializes concurrent starts
	// for the same pair; a lost insert race is resolved by re-reading the
	// winner. Three rounds cover create-vs-create and expire-vs-create races.
	for attempt := 0; attempt < 3; attempt++ {
		existing, err := s.sessions.FindActiveByTestAndCandidate(ctx, testID, candidateID)
		switch {
		case err == nil:
			if s.now().Before(existing.ExpiresAt) {
				// Idempotent resume, the clock is not reset.
				return existing, nil
			}
			if _, err := s.sessions.MarkExpired(ctx, existing.ID); err != nil {
				return nil, fmt.Errorf("expire session: %w", err)
			}
			s.log.Info().
				Str("session_id", existing.ID.String()).
				Msg("Session lazily expired")
		case errors.Is(err, pgx.ErrNoRows):
			// No active session, fall through to create.
		default:
			return nil, fmt.Errorf("find active session: %w", err)
		}

		now := s.now().UTC()
		session := &model.Session{
			ID:          uuid.New(),
			TestID:      testID,
			CandidateID: candidateID,
			StartedAt:   now,
			ExpiresAt:   now.Add(time.Duration(test.DurationMinutes) * time.Minute),
			Status:      model.SessionStatusInProgress,
			TotalPoints: test.TotalPoints,
		}

		err = s.sessions.Create(ctx, session)
		if err == nil {
			s.log.Info().
				Str("session_id", session.ID.String()).
				Str("test_id", testID.String()).
				Time("expires_at", session.ExpiresAt).
				Msg("Session started")
			return session, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create session: %w", err)
		}
		// A concurrent start won the insert; loop to pick up its session.
	}
	return nil, errors.New("start session: retries exhausted")
}

// GetRandomizedQuestions returns the test's questions in a fresh uniformly
// random order with the answer key stripped. The stripped payload is read
// through the Redis cache; the permutation itself is never cached.
func (s *SessionService) GetRandomizedQuestions(ctx context.Context, testID uuid.UUID) ([]model.QuestionForCandidate, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get test: %w", err)
	}

	payload, err := s.payloads.GetPayload(ctx, test)
	if err != nil {
		return nil, fmt.Errorf("get payload: %w", err)
	}

	out := make([]model.QuestionForCandidate, len(payload.Questions))
	copy(out, payload.Questions)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out, nil
}

// SubmitTest grades and finalizes a session. Finalization happens exactly
// once: the store's conditional update is the arbiter when a manual submit
// races the client's auto-submit.
//
// A late submission is rejected unless autoSubmit is set; the auto-submit
// path represents the client's own countdown firing, so it may finalize a
// session whose deadline has just passed.
func (s *SessionService) SubmitTest(ctx context.Context, testID, sessionID, candidateID uuid.UUID, req *model.SubmitTestRequest) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.TestID != testID {
		return nil, ErrNotFound
	}
	if session.CandidateID != candidateID {
		return nil, ErrUnauthorized
	}
	if session.Status.IsTerminal() {
		return nil, ErrAlreadyCompleted
	}

	now := s.now().UTC()
	if !now.Before(session.ExpiresAt) && !req.AutoSubmit {
		return nil, ErrSessionExpired
	}

	questions, err := s.questions.ListByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	score, breakdown := gradeAnswers(questions, req.Answers)

	session.Answers = req.Answers
	session.Score = &score
	session.SkillBreakdown = breakdown
	session.SubmittedAt = &now
	if req.AutoSubmit {
		session.Status = model.SessionStatusAutoSubmitted
	} else {
		session.Status = model.SessionStatusSubmitted
	}

	won, err := s.sessions.Finalize(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}
	if !won {
		// A concurrent submit reached the store first.
		return nil, ErrAlreadyCompleted
	}

	if err := s.drafts.Clear(ctx, session.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Draft cleanup failed")
	}
	if err := s.ranking.EnqueueRefresh(ctx, session.TestID); err != nil {
		s.log.Warn().Err(err).Str("test_id", session.TestID.String()).Msg("Leaderboard refresh enqueue failed")
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("score", score).
		Bool("auto_submit", req.AutoSubmit).
		Msg("Session finalized")
	return session, nil
}

// GetSession loads a session for its owning candidate.
func (s *SessionService) GetSession(ctx context.Context, sessionID, candidateID uuid.UUID) (*model.Session, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session.CandidateID != candidateID {
		return nil, ErrUnauthorized
	}
	return session, nil
}

// GetResult returns the candidate-facing summary of a completed session.
func (s *SessionService) GetResult(ctx context.Context, sessionID, candidateID uuid.UUID) (*model.SessionResult, error) {
	session, err := s.GetSession(ctx, sessionID, candidateID)
	if err != nil {
		return nil, err
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotCompleted
	}

	var score int
	if session.Score != nil {
		score = *session.Score
	}
	var percentage float64
	if session.TotalPoints > 0 {
		percentage = round2(float64(score) / float64(session.TotalPoints) * 100)
	}

	var submittedAt time.Time
	if session.SubmittedAt != nil {
		submittedAt = *session.SubmittedAt
	}

	return &model.SessionResult{
		SessionID:      session.ID,
		TestID:         session.TestID,
		Score:          score,
		TotalPoints:    session.TotalPoints,
		Percentage:     percentage,
		SkillBreakdown: session.SkillBreakdown,
		SubmittedAt:    submittedAt,
		Status:         session.Status,
	}, nil
}

// ListByCandidate returns the candidate's session history.
func (s *SessionService) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Session, error) {
	return s.sessions.ListByCandidate(ctx, candidateID)
}

// gradeAnswers scores a submission against the question set. Comparison is
// exact string equality modulo case and surrounding whitespace for every
// question type. Every skill in the set appears in the breakdown, at zero
// when nothing for it was answered correctly.
func gradeAnswers(questions []model.Question, answers map[string]string) (int, map[string]int) {
	score := 0
	breakdown := make(map[string]int, len(questions))

	for _, q := range questions {
		if _, ok := breakdown[q.Skill]; !ok {
			breakdown[q.Skill] = 0
		}
		answer, ok := answers[q.ID.String()]
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer)) {
			score += q.Points
			breakdown[q.Skill] += q.Points
		}
	}
	return score, breakdown
}
