package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/model"
)

func completedSession(testID, candidateID uuid.UUID, score int, submittedAt time.Time) *model.Session {
	s := score
	at := submittedAt
	return &model.Session{
		ID:          uuid.New(),
		TestID:      testID,
		CandidateID: candidateID,
		Status:      model.SessionStatusSubmitted,
		Score:       &s,
		TotalPoints: 100,
		SubmittedAt: &at,
	}
}

func TestGetRank_OrdersByScoreDescending(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)
	ctx := context.Background()

	testID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	low := completedSession(testID, uuid.New(), 40, base)
	mid := completedSession(testID, uuid.New(), 70, base.Add(time.Minute))
	high := completedSession(testID, uuid.New(), 90, base.Add(2*time.Minute))
	for _, s := range []*model.Session{low, mid, high} {
		store.sessions[s.ID] = s
	}

	rank, err := svc.GetRank(ctx, mid.ID, mid.CandidateID)
	require.NoError(t, err)

	assert.Equal(t, 2, rank.Rank)
	assert.Equal(t, 3, rank.TotalCandidates)
	assert.InDelta(t, 33.33, rank.Percentile, 0.001)
}

func TestGetRank_SingleCandidate(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)

	testID := uuid.New()
	only := completedSession(testID, uuid.New(), 55, time.Now().UTC())
	store.sessions[only.ID] = only

	rank, err := svc.GetRank(context.Background(), only.ID, only.CandidateID)
	require.NoError(t, err)

	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 1, rank.TotalCandidates)
	assert.Equal(t, 0.0, rank.Percentile)
}

func TestGetRank_TieBreaksByEarlierSubmission(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)
	ctx := context.Background()

	testID := uuid.New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	early := completedSession(testID, uuid.New(), 80, base)
	late := completedSession(testID, uuid.New(), 80, base.Add(10*time.Minute))
	store.sessions[early.ID] = early
	store.sessions[late.ID] = late

	earlyRank, err := svc.GetRank(ctx, early.ID, early.CandidateID)
	require.NoError(t, err)
	lateRank, err := svc.GetRank(ctx, late.ID, late.CandidateID)
	require.NoError(t, err)

	assert.Equal(t, 1, earlyRank.Rank)
	assert.Equal(t, 2, lateRank.Rank)
}

func TestGetRank_ExpiredSessionsCount(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)
	ctx := context.Background()

	testID := uuid.New()
	submitted := completedSession(testID, uuid.New(), 60, time.Now().UTC())

	// An expired, never-submitted attempt is terminal and ranks with a nil
	// score, below every scored session.
	expired := &model.Session{
		ID:          uuid.New(),
		TestID:      testID,
		CandidateID: uuid.New(),
		Status:      model.SessionStatusExpired,
		TotalPoints: 100,
	}
	store.sessions[submitted.ID] = submitted
	store.sessions[expired.ID] = expired

	rank, err := svc.GetRank(ctx, submitted.ID, submitted.CandidateID)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 2, rank.TotalCandidates)
	assert.InDelta(t, 50.0, rank.Percentile, 0.001)
}

func TestGetRank_UnknownSession(t *testing.T) {
	svc := NewRankingService(newFakeSessionStore(), nil)

	_, err := svc.GetRank(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRank_WrongCandidate(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)

	s := completedSession(uuid.New(), uuid.New(), 50, time.Now().UTC())
	store.sessions[s.ID] = s

	_, err := svc.GetRank(context.Background(), s.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetRank_InProgressSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(store, nil)

	s := &model.Session{
		ID:          uuid.New(),
		TestID:      uuid.New(),
		CandidateID: uuid.New(),
		Status:      model.SessionStatusInProgress,
	}
	store.sessions[s.ID] = s

	_, err := svc.GetRank(context.Background(), s.ID, s.CandidateID)
	assert.ErrorIs(t, err, ErrSessionNotCompleted)
}

// emptyCompletedStore simulates a store whose completed-session view lags
// behind the session row, the case the zero-divide guard exists for.
type emptyCompletedStore struct{ *fakeSessionStore }

func (emptyCompletedStore) FindCompletedByTest(context.Context, uuid.UUID) ([]model.Session, error) {
	return nil, nil
}

func TestGetRank_NoCompletedSessions(t *testing.T) {
	store := newFakeSessionStore()
	svc := NewRankingService(emptyCompletedStore{store}, nil)

	s := completedSession(uuid.New(), uuid.New(), 50, time.Now().UTC())
	store.sessions[s.ID] = s

	_, err := svc.GetRank(context.Background(), s.ID, s.CandidateID)
	assert.ErrorIs(t, err, ErrNoRankData)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 33.33, round2(100.0/3.0))
	assert.Equal(t, 66.67, round2(200.0/3.0))
	assert.Equal(t, 0.0, round2(0))
}
