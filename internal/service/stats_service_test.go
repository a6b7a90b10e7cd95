package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/model"
)

type fakeCounters struct {
	// per-creator test and session tallies, uuid.Nil holds the global view
	tests     map[uuid.UUID][2]int // total, active
	sessions  map[uuid.UUID][2]int // total, completed
	questions int
	roles     map[model.Role]int
}

func (f *fakeCounters) CountByCreator(_ context.Context, creatorID uuid.UUID) (int, int, error) {
	c := f.tests[creatorID]
	return c[0], c[1], nil
}

func (f *fakeCounters) CountByTestCreator(_ context.Context, creatorID uuid.UUID) (int, int, error) {
	c := f.sessions[creatorID]
	return c[0], c[1], nil
}

func (f *fakeCounters) Count(_ context.Context) (int, error) {
	return f.questions, nil
}

func (f *fakeCounters) CountByRole(_ context.Context) (map[model.Role]int, error) {
	return f.roles, nil
}

func TestStatsService_RecruiterAnalytics(t *testing.T) {
	recruiterID := uuid.New()
	counters := &fakeCounters{
		tests: map[uuid.UUID][2]int{
			recruiterID: {8, 3},
			uuid.Nil:    {20, 11},
		},
		sessions: map[uuid.UUID][2]int{
			recruiterID: {42, 37},
			uuid.Nil:    {100, 80},
		},
	}
	svc := NewStatsService(counters, counters, counters, counters)

	got, err := svc.RecruiterAnalytics(context.Background(), recruiterID)
	require.NoError(t, err)

	assert.Equal(t, 8, got.TotalTests)
	assert.Equal(t, 3, got.ActiveTests)
	assert.Equal(t, 42, got.TotalSessions)
	assert.Equal(t, 37, got.CompletedSessions)
}

func TestStatsService_RecruiterAnalyticsAdminSeesAll(t *testing.T) {
	counters := &fakeCounters{
		tests:    map[uuid.UUID][2]int{uuid.Nil: {20, 11}},
		sessions: map[uuid.UUID][2]int{uuid.Nil: {100, 80}},
	}
	svc := NewStatsService(counters, counters, counters, counters)

	got, err := svc.RecruiterAnalytics(context.Background(), uuid.Nil)
	require.NoError(t, err)

	assert.Equal(t, 20, got.TotalTests)
	assert.Equal(t, 11, got.ActiveTests)
	assert.Equal(t, 100, got.TotalSessions)
	assert.Equal(t, 80, got.CompletedSessions)
}

func TestStatsService_AdminStats(t *testing.T) {
	counters := &fakeCounters{
		tests:     map[uuid.UUID][2]int{uuid.Nil: {14, 9}},
		sessions:  map[uuid.UUID][2]int{uuid.Nil: {250, 190}},
		questions: 73,
		roles: map[model.Role]int{
			model.RoleAdmin:     2,
			model.RoleRecruiter: 5,
			model.RoleCandidate: 120,
		},
	}
	svc := NewStatsService(counters, counters, counters, counters)

	got, err := svc.AdminStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 127, got.TotalUsers)
	assert.Equal(t, 2, got.Admins)
	assert.Equal(t, 5, got.Recruiters)
	assert.Equal(t, 120, got.Candidates)
	assert.Equal(t, 14, got.TotalTests)
	assert.Equal(t, 73, got.TotalQuestions)
	assert.Equal(t, 250, got.TotalSessions)
}
