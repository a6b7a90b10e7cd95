package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillevaluator/backend/internal/model"
)

// SessionRepository is the session store. Two guarantees matter here:
//
//   - At most one IN_PROGRESS row per (test_id, candidate_id), enforced by a
//     partial unique index; Create surfaces a lost race as pgx.ErrNoRows so
//     the engine can re-read the winning row.
//   - Terminal rows are immutable: Finalize and MarkExpired are conditional
//     updates guarded on status = 'IN_PROGRESS' and report whether they won.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `id, test_id, candidate_id, started_at, expires_at, submitted_at,
	 status, answers, score, total_points, skill_breakdown`

// GetByID retrieves a session by its UUID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// FindActiveByTestAndCandidate retrieves the single IN_PROGRESS session for a
// (test, candidate) pair, or pgx.ErrNoRows.
func (r *SessionRepository) FindActiveByTestAndCandidate(ctx context.Context, testID, candidateID uuid.UUID) (*model.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE test_id = $1 AND candidate_id = $2 AND status = $3`,
		testID, candidateID, model.SessionStatusInProgress)
	return scanSession(row)
}

// FindCompletedByTest retrieves every terminal session for a test, newest
// submission first. Ranking re-sorts by score in the service layer.
func (r *SessionRepository) FindCompletedByTest(ctx context.Context, testID uuid.UUID) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE test_id = $1 AND status <> $2
		 ORDER BY submitted_at DESC NULLS LAST`,
		testID, model.SessionStatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListByCandidate retrieves all sessions for a candidate, newest first.
func (r *SessionRepository) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]model.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions
		 WHERE candidate_id = $1
		 ORDER BY started_at DESC`, candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// Create inserts a new IN_PROGRESS session. When a concurrent start for the
// same pair already inserted one, the partial unique index swallows the row
// and Scan returns pgx.ErrNoRows — the caller re-reads the existing session.
func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, test_id, candidate_id, started_at, expires_at, status, total_points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (test_id, candidate_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id`,
		s.ID, s.TestID, s.CandidateID, s.StartedAt, s.ExpiresAt, s.Status, s.TotalPoints,
	).Scan(&s.ID)
}

// Finalize writes the terminal result in one conditional update. Returns
// false when the session was already terminal (lost a finalization race).
func (r *SessionRepository) Finalize(ctx context.Context, s *model.Session) (bool, error) {
	answersJSON, err := json.Marshal(s.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}
	breakdownJSON, err := json.Marshal(s.SkillBreakdown)
	if err != nil {
		return false, fmt.Errorf("marshal skill breakdown: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions
		 SET status = $1, answers = $2, score = $3, skill_breakdown = $4, submitted_at = $5
		 WHERE id = $6 AND status = $7`,
		s.Status, answersJSON, s.Score, breakdownJSON, s.SubmittedAt,
		s.ID, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkExpired transitions an IN_PROGRESS session to EXPIRED. Returns false
// when the session already reached a terminal state.
func (r *SessionRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = $1 WHERE id = $2 AND status = $3`,
		model.SessionStatusExpired, id, model.SessionStatusInProgress)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CountByTestCreator returns total and terminal session counts across the
// tests a recruiter owns. Pass uuid.Nil for platform-wide counts.
func (r *SessionRepository) CountByTestCreator(ctx context.Context, creatorID uuid.UUID) (total, completed int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE s.status <> $1)
	          FROM sessions s`
	args := []any{model.SessionStatusInProgress}
	if creatorID != uuid.Nil {
		query += ` JOIN tests t ON t.id = s.test_id WHERE t.created_by = $2`
		args = append(args, creatorID)
	}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&total, &completed)
	return total, completed, err
}

func scanSession(row pgx.Row) (*model.Session, error) {
	s := &model.Session{}
	var answersJSON, breakdownJSON []byte

	err := row.Scan(&s.ID, &s.TestID, &s.CandidateID, &s.StartedAt, &s.ExpiresAt,
		&s.SubmittedAt, &s.Status, &answersJSON, &s.Score, &s.TotalPoints, &breakdownJSON)
	if err != nil {
		return nil, err
	}

	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &s.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &s.SkillBreakdown); err != nil {
			return nil, fmt.Errorf("unmarshal skill breakdown: %w", err)
		}
	}
	return s, nil
}
