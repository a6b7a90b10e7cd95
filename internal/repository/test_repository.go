package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillevaluator/backend/internal/model"
)

// TestRepository handles test data access, including the test/question join
// table. total_points on the test row is maintained here on every change to
// the question set; running sessions keep their own snapshot.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, created_by, duration_minutes, total_points, is_active, created_at, updated_at
		 FROM tests WHERE id = $1`, id,
	).Scan(&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.DurationMinutes,
		&t.TotalPoints, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new test (no questions attached yet, inactive by default).
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, description, created_by, duration_minutes, total_points, is_active)
		 VALUES ($1, $2, $3, $4, 0, $5)
		 RETURNING id, total_points, created_at, updated_at`,
		t.Title, t.Description, t.CreatedBy, t.DurationMinutes, t.IsActive,
	).Scan(&t.ID, &t.TotalPoints, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies a test's metadata. Duration edits never touch existing
// sessions: their expires_at was fixed at creation.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, description = $2, duration_minutes = $3, is_active = $4, updated_at = NOW()
		 WHERE id = $5`,
		t.Title, t.Description, t.DurationMinutes, t.IsActive, t.ID)
	return err
}

// Delete removes a test and its join rows (cascade).
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

// ListActive returns all tests currently open for new attempts.
func (r *TestRepository) ListActive(ctx context.Context) ([]model.Test, error) {
	return r.list(ctx, `WHERE is_active = TRUE`)
}

// ListByCreator returns tests authored by a user. Pass uuid.Nil to list all
// tests (admin view).
func (r *TestRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Test, error) {
	if creatorID == uuid.Nil {
		return r.list(ctx, ``)
	}
	return r.list(ctx, `WHERE created_by = $1`, creatorID)
}

// CountByCreator returns total and active test counts for a creator.
// Pass uuid.Nil for platform-wide counts.
func (r *TestRepository) CountByCreator(ctx context.Context, creatorID uuid.UUID) (total, active int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM tests`
	var args []any
	if creatorID != uuid.Nil {
		query += ` WHERE created_by = $1`
		args = append(args, creatorID)
	}
	err = r.pool.QueryRow(ctx, query, args...).Scan(&total, &active)
	return total, active, err
}

func (r *TestRepository) list(ctx context.Context, where string, args ...any) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, description, created_by, duration_minutes, total_points, is_active, created_at, updated_at
		 FROM tests `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.DurationMinutes,
			&t.TotalPoints, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// AttachQuestions links questions to a test and recomputes total_points in
// the same transaction.
func (r *TestRepository) AttachQuestions(ctx context.Context, testID uuid.UUID, questionIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, qid := range questionIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO test_questions (test_id, question_id)
			 VALUES ($1, $2)
			 ON CONFLICT (test_id, question_id) DO NOTHING`,
			testID, qid); err != nil {
			return fmt.Errorf("attach question %s: %w", qid, err)
		}
	}

	if err := recomputeTotalPoints(ctx, tx, testID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DetachQuestion unlinks a question from a test and recomputes total_points.
func (r *TestRepository) DetachQuestion(ctx context.Context, testID, questionID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM test_questions WHERE test_id = $1 AND question_id = $2`,
		testID, questionID); err != nil {
		return fmt.Errorf("detach question: %w", err)
	}

	if err := recomputeTotalPoints(ctx, tx, testID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecomputeTotalPoints refreshes a test's total_points outside an attach or
// detach, e.g. after a question row is deleted.
func (r *TestRepository) RecomputeTotalPoints(ctx context.Context, testID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := recomputeTotalPoints(ctx, tx, testID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// recomputeTotalPoints updates total_points to the sum of attached question
// points within the caller's transaction.
func recomputeTotalPoints(ctx context.Context, tx pgx.Tx, testID uuid.UUID) error {
	if _, err := tx.Exec(ctx,
		`UPDATE tests
		 SET total_points = (
		   SELECT COALESCE(SUM(q.points), 0)
		   FROM test_questions tq
		   JOIN questions q ON q.id = tq.question_id
		   WHERE tq.test_id = $1
		 ), updated_at = NOW()
		 WHERE id = $1`,
		testID); err != nil {
		return fmt.Errorf("recompute total points: %w", err)
	}
	return nil
}
