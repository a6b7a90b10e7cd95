package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/skillevaluator/backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (text, type, skill, difficulty, options, correct_answer, explanation, points, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		q.Text, q.Type, q.Skill, q.Difficulty, q.Options, q.CorrectAnswer, q.Explanation, q.Points, q.CreatedBy,
	).Scan(&q.ID, &q.CreatedAt)
}

// GetByID retrieves a question by its UUID.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, text, type, skill, difficulty, options, correct_answer, explanation, points, created_by, created_at
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.Text, &q.Type, &q.Skill, &q.Difficulty, &q.Options,
		&q.CorrectAnswer, &q.Explanation, &q.Points, &q.CreatedBy, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListByTest retrieves all questions attached to a test. Order here is the
// storage order; the session engine shuffles per request.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.text, q.type, q.skill, q.difficulty, q.options,
		        q.correct_answer, q.explanation, q.points, q.created_by, q.created_at
		 FROM questions q
		 JOIN test_questions tq ON tq.question_id = q.id
		 WHERE tq.test_id = $1`, testID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// ListByCreator retrieves all questions authored by a user.
func (r *QuestionRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, text, type, skill, difficulty, options, correct_answer, explanation, points, created_by, created_at
		 FROM questions WHERE created_by = $1
		 ORDER BY created_at DESC`, creatorID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// Update rewrites a question in a transaction. A points change moves the
// totals of every test holding the question, so those are recomputed here and
// the affected test ids returned for cache maintenance.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE questions
		 SET text = $1, type = $2, skill = $3, difficulty = $4, options = $5,
		     correct_answer = $6, explanation = $7, points = $8
		 WHERE id = $9`,
		q.Text, q.Type, q.Skill, q.Difficulty, q.Options,
		q.CorrectAnswer, q.Explanation, q.Points, q.ID)
	if err != nil {
		return nil, err
	}

	testIDs, err := referencingTests(ctx, tx, q.ID)
	if err != nil {
		return nil, err
	}
	for _, tid := range testIDs {
		if err := recomputeTotalPoints(ctx, tx, tid); err != nil {
			return nil, err
		}
	}
	return testIDs, tx.Commit(ctx)
}

// Delete removes a question in a transaction. Join rows go via ON DELETE
// CASCADE, so the tests that referenced it get their totals recomputed here;
// their ids are returned so callers can refresh stale payload caches.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	testIDs, err := referencingTests(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id); err != nil {
		return nil, err
	}
	for _, tid := range testIDs {
		if err := recomputeTotalPoints(ctx, tx, tid); err != nil {
			return nil, err
		}
	}
	return testIDs, tx.Commit(ctx)
}

// Count returns the number of questions across all banks.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n)
	return n, err
}

func referencingTests(ctx context.Context, tx pgx.Tx, questionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := tx.Query(ctx, `SELECT test_id FROM test_questions WHERE question_id = $1`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var testIDs []uuid.UUID
	for rows.Next() {
		var tid uuid.UUID
		if err := rows.Scan(&tid); err != nil {
			return nil, err
		}
		testIDs = append(testIDs, tid)
	}
	return testIDs, rows.Err()
}

func scanQuestions(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &q.Skill, &q.Difficulty, &q.Options,
			&q.CorrectAnswer, &q.Explanation, &q.Points, &q.CreatedBy, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
