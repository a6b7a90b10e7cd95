package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates session states. IN_PROGRESS is the only
// non-terminal state; the other three are terminal and final.
type SessionStatus string

const (
	SessionStatusInProgress    SessionStatus = "IN_PROGRESS"
	SessionStatusExpired       SessionStatus = "EXPIRED"
	SessionStatusSubmitted     SessionStatus = "SUBMITTED"
	SessionStatusAutoSubmitted SessionStatus = "AUTO_SUBMITTED"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusInProgress
}

// Session represents one candidate's timed attempt at one test.
//
// ExpiresAt and TotalPoints are fixed at creation: later edits to the test's
// duration or question set never alter a running session. Answers, Score,
// SkillBreakdown and SubmittedAt are set exactly once, at finalization.
type Session struct {
	ID             uuid.UUID         `json:"id"`
	TestID         uuid.UUID         `json:"test_id"`
	CandidateID    uuid.UUID         `json:"candidate_id"`
	StartedAt      time.Time         `json:"started_at"`
	ExpiresAt      time.Time         `json:"expires_at"`
	SubmittedAt    *time.Time        `json:"submitted_at,omitempty"`
	Status         SessionStatus     `json:"status"`
	Answers        map[string]string `json:"answers,omitempty"`
	Score          *int              `json:"score,omitempty"`
	TotalPoints    int               `json:"total_points"`
	SkillBreakdown map[string]int    `json:"skill_breakdown,omitempty"`
}

// RemainingSeconds returns the whole seconds left on the session clock at the
// given instant, floored at zero.
func (s *Session) RemainingSeconds(now time.Time) int {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// SubmitTestRequest is the payload for submitting a test attempt.
type SubmitTestRequest struct {
	Answers    map[string]string `json:"answers" binding:"required"`
	AutoSubmit bool              `json:"auto_submit"`
}

// StartTestResponse is returned when a candidate starts (or resumes) a test.
type StartTestResponse struct {
	Session          *Session               `json:"session"`
	Questions        []QuestionForCandidate `json:"questions"`
	SecondsRemaining int                    `json:"seconds_remaining"`
}

// RankResponse reports a completed session's standing among its siblings.
type RankResponse struct {
	Rank            int     `json:"rank"`
	TotalCandidates int     `json:"total_candidates"`
	Percentile      float64 `json:"percentile"`
}

// SessionResult is the candidate-facing summary of a completed session.
type SessionResult struct {
	SessionID      uuid.UUID      `json:"session_id"`
	TestID         uuid.UUID      `json:"test_id"`
	Score          int            `json:"score"`
	TotalPoints    int            `json:"total_points"`
	Percentage     float64        `json:"percentage"`
	SkillBreakdown map[string]int `json:"skill_breakdown"`
	SubmittedAt    time.Time      `json:"submitted_at"`
	Status         SessionStatus  `json:"status"`
}
