package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/skillevaluator/backend/internal/model"
)

type testCounter interface {
	CountByCreator(ctx context.Context, creatorID uuid.UUID) (total, active int, err error)
}

type sessionCounter interface {
	CountByTestCreator(ctx context.Context, creatorID uuid.UUID) (total, completed int, err error)
}

type questionCounter interface {
	Count(ctx context.Context) (int, error)
}

type roleCounter interface {
	CountByRole(ctx context.Context) (map[model.Role]int, error)
}

// StatsService aggregates counts for the recruiter analytics and admin stats
// endpoints. All numbers come from live queries, nothing is cached.
type StatsService struct {
	tests     testCounter
	sessions  sessionCounter
	questions questionCounter
	users     roleCounter
}

// NewStatsService creates a new StatsService.
func NewStatsService(tests testCounter, sessions sessionCounter, questions questionCounter, users roleCounter) *StatsService {
	return &StatsService{
		tests:     tests,
		sessions:  sessions,
		questions: questions,
		users:     users,
	}
}

// RecruiterAnalytics summarizes one recruiter's tests and the attempts they
// received. Pass uuid.Nil for the admin's platform-wide view.
func (s *StatsService) RecruiterAnalytics(ctx context.Context, recruiterID uuid.UUID) (*model.RecruiterAnalytics, error) {
	totalTests, activeTests, err := s.tests.CountByCreator(ctx, recruiterID)
	if err != nil {
		return nil, fmt.Errorf("count tests: %w", err)
	}
	totalSessions, completedSessions, err := s.sessions.CountByTestCreator(ctx, recruiterID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	return &model.RecruiterAnalytics{
		TotalTests:        totalTests,
		ActiveTests:       activeTests,
		TotalSessions:     totalSessions,
		CompletedSessions: completedSessions,
	}, nil
}

// AdminStats returns the platform-wide entity census.
func (s *StatsService) AdminStats(ctx context.Context) (*model.AdminStats, error) {
	roles, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	totalTests, _, err := s.tests.CountByCreator(ctx, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("count tests: %w", err)
	}
	totalQuestions, err := s.questions.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	totalSessions, _, err := s.sessions.CountByTestCreator(ctx, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}

	return &model.AdminStats{
		TotalUsers:     roles[model.RoleAdmin] + roles[model.RoleRecruiter] + roles[model.RoleCandidate],
		Admins:         roles[model.RoleAdmin],
		Recruiters:     roles[model.RoleRecruiter],
		Candidates:     roles[model.RoleCandidate],
		TotalTests:     totalTests,
		TotalQuestions: totalQuestions,
		TotalSessions:  totalSessions,
	}, nil
}
