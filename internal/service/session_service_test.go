package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/model"
)

// ─── In-memory fakes ────────────────────────────────────────────────────────

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.Session)}
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) FindActiveByTestAndCandidate(_ context.Context, testID, candidateID uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.TestID == testID && s.CandidateID == candidateID && s.Status == model.SessionStatusInProgress {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) ListByCandidate(_ context.Context, candidateID uuid.UUID) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		if s.CandidateID == candidateID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) FindCompletedByTest(_ context.Context, testID uuid.UUID) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Session
	for _, s := range f.sessions {
		if s.TestID == testID && s.Status != model.SessionStatusInProgress {
			out = append(out, *s)
		}
	}
	return out, nil
}

// Create mirrors the partial uniqueness constraint: a second IN_PROGRESS row
// for the same pair is swallowed and reported as pgx.ErrNoRows.
func (f *fakeSessionStore) Create(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.TestID == s.TestID && existing.CandidateID == s.CandidateID &&
			existing.Status == model.SessionStatusInProgress {
			return pgx.ErrNoRows
		}
	}
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionStore) Finalize(_ context.Context, s *model.Session) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[s.ID]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	stored.Status = s.Status
	stored.Answers = s.Answers
	stored.Score = s.Score
	stored.SkillBreakdown = s.SkillBreakdown
	stored.SubmittedAt = s.SubmittedAt
	return true, nil
}

func (f *fakeSessionStore) MarkExpired(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.sessions[id]
	if !ok || stored.Status != model.SessionStatusInProgress {
		return false, nil
	}
	stored.Status = model.SessionStatusExpired
	return true, nil
}

type fakeTestCatalog struct {
	tests map[uuid.UUID]*model.Test
}

func (f *fakeTestCatalog) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	t, ok := f.tests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type fakeQuestionCatalog struct {
	byTest map[uuid.UUID][]model.Question
}

func (f *fakeQuestionCatalog) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	return f.byTest[testID], nil
}

// fakePayloads builds the stripped payload straight from the catalog, standing
// in for the Redis-cached read-through path.
type fakePayloads struct {
	catalog *fakeQuestionCatalog
}

func (f *fakePayloads) GetPayload(ctx context.Context, test *model.Test) (*model.TestPayload, error) {
	questions, err := f.catalog.ListByTest(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	stripped := make([]model.QuestionForCandidate, len(questions))
	for i, q := range questions {
		stripped[i] = q.ForCandidate()
	}
	return &model.TestPayload{
		TestID:          test.ID,
		Title:           test.Title,
		DurationMinutes: test.DurationMinutes,
		TotalPoints:     test.TotalPoints,
		Questions:       stripped,
	}, nil
}

type fakeUserResolver struct {
	users map[uuid.UUID]*model.User
}

func (f *fakeUserResolver) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return u, nil
}

type noopDrafts struct{}

func (noopDrafts) Clear(context.Context, uuid.UUID) error { return nil }

type recordingQueue struct {
	refreshed []uuid.UUID
}

func (q *recordingQueue) EnqueueRefresh(_ context.Context, testID uuid.UUID) error {
	q.refreshed = append(q.refreshed, testID)
	return nil
}

// ─── Fixture ────────────────────────────────────────────────────────────────

type engineFixture struct {
	svc       *SessionService
	store     *fakeSessionStore
	queue     *recordingQueue
	clock     *time.Time
	testID    uuid.UUID
	candidate uuid.UUID
	questions []model.Question
}

// newEngineFixture builds an engine around one active 30-minute test with
// two questions: 10 points of "go" and 5 points of "sql".
func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	testID := uuid.New()
	candidateID := uuid.New()
	creatorID := uuid.New()

	options, err := json.Marshal([]string{"A", "B", "C", "D"})
	require.NoError(t, err)

	questions := []model.Question{
		{
			ID:            uuid.New(),
			Text:          "Which keyword starts a goroutine?",
			Type:          model.QuestionTypeMultipleChoice,
			Skill:         "go",
			Difficulty:    model.DifficultyMedium,
			Options:       options,
			CorrectAnswer: "go",
			Points:        10,
		},
		{
			ID:            uuid.New(),
			Text:          "SELECT removes rows from a table.",
			Type:          model.QuestionTypeTrueFalse,
			Skill:         "sql",
			Difficulty:    model.DifficultyEasy,
			CorrectAnswer: "false",
			Points:        5,
		},
	}

	tests := &fakeTestCatalog{tests: map[uuid.UUID]*model.Test{
		testID: {
			ID:              testID,
			Title:           "Backend basics",
			CreatedBy:       creatorID,
			DurationMinutes: 30,
			TotalPoints:     15,
			IsActive:        true,
		},
	}}
	users := &fakeUserResolver{users: map[uuid.UUID]*model.User{
		candidateID: {ID: candidateID, Username: "cand", Role: model.RoleCandidate},
	}}

	store := newFakeSessionStore()
	queue := &recordingQueue{}

	catalog := &fakeQuestionCatalog{byTest: map[uuid.UUID][]model.Question{testID: questions}}
	svc := NewSessionService(store, tests, catalog, &fakePayloads{catalog: catalog}, users, noopDrafts{}, queue)

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }

	return &engineFixture{
		svc:       svc,
		store:     store,
		queue:     queue,
		clock:     clock,
		testID:    testID,
		candidate: candidateID,
		questions: questions,
	}
}

func (f *engineFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// ─── StartSession ───────────────────────────────────────────────────────────

func TestStartSession_CreatesSession(t *testing.T) {
	f := newEngineFixture(t)

	session, err := f.svc.StartSession(context.Background(), f.testID, f.candidate)
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusInProgress, session.Status)
	assert.Equal(t, f.testID, session.TestID)
	assert.Equal(t, f.candidate, session.CandidateID)
	assert.Equal(t, 15, session.TotalPoints)
	assert.Equal(t, f.clock.Add(30*time.Minute), session.ExpiresAt)
	assert.Nil(t, session.Score)
	assert.Nil(t, session.SubmittedAt)
	assert.Empty(t, session.Answers)
}

func TestStartSession_UnknownTest(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.StartSession(context.Background(), uuid.New(), f.candidate)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartSession_InactiveTest(t *testing.T) {
	f := newEngineFixture(t)
	tests := f.svc.tests.(*fakeTestCatalog)
	tests.tests[f.testID].IsActive = false

	_, err := f.svc.StartSession(context.Background(), f.testID, f.candidate)
	assert.ErrorIs(t, err, ErrTestInactive)
}

func TestStartSession_UnknownCandidate(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.StartSession(context.Background(), f.testID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartSession_IdempotentResume(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	f.advance(5 * time.Minute)

	second, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	// The clock is not reset on resume.
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	assert.Equal(t, first.StartedAt, second.StartedAt)
}

func TestStartSession_ExpiredAttemptCreatesNewSession(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	f.advance(31 * time.Minute)

	second, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, f.clock.Add(30*time.Minute), second.ExpiresAt)

	old, err := f.store.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusExpired, old.Status)
}

func TestStartSession_LostInsertRaceReturnsWinner(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Simulate another worker winning the insert between the existence check
	// and our Create by seeding an IN_PROGRESS row directly.
	winner := &model.Session{
		ID:          uuid.New(),
		TestID:      f.testID,
		CandidateID: f.candidate,
		StartedAt:   *f.clock,
		ExpiresAt:   f.clock.Add(30 * time.Minute),
		Status:      model.SessionStatusInProgress,
		TotalPoints: 15,
	}
	require.NoError(t, f.store.Create(ctx, winner))

	got, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
}

// ─── GetRandomizedQuestions ─────────────────────────────────────────────────

func TestGetRandomizedQuestions_StripsAnswerKey(t *testing.T) {
	f := newEngineFixture(t)

	questions, err := f.svc.GetRandomizedQuestions(context.Background(), f.testID)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	want := map[uuid.UUID]bool{f.questions[0].ID: true, f.questions[1].ID: true}
	for _, q := range questions {
		assert.True(t, want[q.ID])
		assert.NotEmpty(t, q.Skill)
	}
}

func TestGetRandomizedQuestions_UnknownTest(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.GetRandomizedQuestions(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

// ─── SubmitTest ─────────────────────────────────────────────────────────────

func TestSubmitTest_ScoresAndFinalizes(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	f.advance(10 * time.Minute)

	// Case and surrounding whitespace must not matter.
	answers := map[string]string{
		f.questions[0].ID.String(): "  GO ",
		f.questions[1].ID.String(): "False",
	}
	result, err := f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{Answers: answers})
	require.NoError(t, err)

	assert.Equal(t, model.SessionStatusSubmitted, result.Status)
	require.NotNil(t, result.Score)
	assert.Equal(t, 15, *result.Score)
	assert.Equal(t, map[string]int{"go": 10, "sql": 5}, result.SkillBreakdown)
	require.NotNil(t, result.SubmittedAt)
	assert.Equal(t, f.clock.UTC(), *result.SubmittedAt)

	assert.Equal(t, []uuid.UUID{f.testID}, f.queue.refreshed)
}

func TestSubmitTest_WrongAndMissingAnswersScoreZero(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	// One wrong answer, one question left unanswered.
	answers := map[string]string{f.questions[0].ID.String(): "select"}
	result, err := f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{Answers: answers})
	require.NoError(t, err)

	require.NotNil(t, result.Score)
	assert.Equal(t, 0, *result.Score)
	// Every skill in the test appears in the breakdown, at zero.
	assert.Equal(t, map[string]int{"go": 0, "sql": 0}, result.SkillBreakdown)
}

func TestSubmitTest_UnknownSession(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.svc.SubmitTest(context.Background(), f.testID, uuid.New(), f.candidate, &model.SubmitTestRequest{Answers: map[string]string{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubmitTest_WrongCandidate(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	_, err = f.svc.SubmitTest(ctx, f.testID, session.ID, uuid.New(), &model.SubmitTestRequest{Answers: map[string]string{}})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSubmitTest_SecondSubmissionRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	answers := map[string]string{f.questions[0].ID.String(): "go"}
	first, err := f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{Answers: answers})
	require.NoError(t, err)

	_, err = f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{
		Answers: map[string]string{f.questions[1].ID.String(): "false"},
	})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	// The first submission's score is untouched.
	stored, err := f.store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Score)
	assert.Equal(t, *first.Score, *stored.Score)
	assert.Equal(t, answers, stored.Answers)
}

func TestSubmitTest_LateManualSubmitRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	f.advance(31 * time.Minute)

	_, err = f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{
		Answers: map[string]string{f.questions[0].ID.String(): "go"},
	})
	assert.ErrorIs(t, err, ErrSessionExpired)

	// The rejection must not leak any mutation.
	stored, err := f.store.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInProgress, stored.Status)
	assert.Nil(t, stored.Score)
	assert.Empty(t, stored.Answers)
}

func TestSubmitTest_LateAutoSubmitSucceeds(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	f.advance(31 * time.Minute)

	result, err := f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{
		Answers:    map[string]string{f.questions[0].ID.String(): "go"},
		AutoSubmit: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusAutoSubmitted, result.Status)
	require.NotNil(t, result.Score)
	assert.Equal(t, 10, *result.Score)
}

func TestSubmitTest_MismatchedTest(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	_, err = f.svc.SubmitTest(ctx, uuid.New(), session.ID, f.candidate, &model.SubmitTestRequest{Answers: map[string]string{}})
	assert.ErrorIs(t, err, ErrNotFound)
}

// ─── Results ────────────────────────────────────────────────────────────────

func TestGetResult_NotCompleted(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	_, err = f.svc.GetResult(ctx, session.ID, f.candidate)
	assert.ErrorIs(t, err, ErrSessionNotCompleted)
}

func TestGetResult_CompletedSession(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	session, err := f.svc.StartSession(ctx, f.testID, f.candidate)
	require.NoError(t, err)

	_, err = f.svc.SubmitTest(ctx, f.testID, session.ID, f.candidate, &model.SubmitTestRequest{
		Answers: map[string]string{f.questions[0].ID.String(): "go"},
	})
	require.NoError(t, err)

	result, err := f.svc.GetResult(ctx, session.ID, f.candidate)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Score)
	assert.Equal(t, 15, result.TotalPoints)
	assert.InDelta(t, 66.67, result.Percentage, 0.001)
	assert.Equal(t, model.SessionStatusSubmitted, result.Status)
}
