package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillevaluator/backend/internal/model"
)

type fakeQuestionStore struct {
	byID       map[uuid.UUID]*model.Question
	references map[uuid.UUID][]uuid.UUID // question -> tests holding it
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{
		byID:       make(map[uuid.UUID]*model.Question),
		references: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeQuestionStore) Create(_ context.Context, q *model.Question) error {
	q.ID = uuid.New()
	cp := *q
	f.byID[q.ID] = &cp
	return nil
}

func (f *fakeQuestionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Question, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuestionStore) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.byID {
		if q.CreatedBy == creatorID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (f *fakeQuestionStore) Update(_ context.Context, q *model.Question) ([]uuid.UUID, error) {
	if _, ok := f.byID[q.ID]; !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *q
	f.byID[q.ID] = &cp
	return f.references[q.ID], nil
}

func (f *fakeQuestionStore) Delete(_ context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	testIDs := f.references[id]
	delete(f.byID, id)
	delete(f.references, id)
	return testIDs, nil
}

// recordingRefresher counts payload-cache refreshes per test.
type recordingRefresher struct {
	refreshed map[uuid.UUID]int
}

func newRecordingRefresher() *recordingRefresher {
	return &recordingRefresher{refreshed: make(map[uuid.UUID]int)}
}

func (r *recordingRefresher) RefreshPayloadCache(_ context.Context, testID uuid.UUID) {
	r.refreshed[testID]++
}

type bankFixture struct {
	svc      *QuestionService
	store    *fakeQuestionStore
	payloads *recordingRefresher
	owner    uuid.UUID
}

func newBankFixture() *bankFixture {
	store := newFakeQuestionStore()
	payloads := newRecordingRefresher()
	return &bankFixture{
		svc:      NewQuestionService(store, payloads),
		store:    store,
		payloads: payloads,
		owner:    uuid.New(),
	}
}

func (f *bankFixture) addQuestion(t *testing.T, attachedTo ...uuid.UUID) *model.Question {
	t.Helper()
	q, err := f.svc.Create(context.Background(), f.owner, &model.CreateQuestionRequest{
		Text:          "What does the blank identifier do?",
		Type:          model.QuestionTypeShortAnswer,
		Skill:         "go",
		Difficulty:    model.DifficultyMedium,
		CorrectAnswer: "discards a value",
	})
	require.NoError(t, err)
	f.store.references[q.ID] = attachedTo
	return q
}

func TestQuestionService_DeleteRefreshesAffectedTestCaches(t *testing.T) {
	f := newBankFixture()
	testA, testB := uuid.New(), uuid.New()
	q := f.addQuestion(t, testA, testB)

	require.NoError(t, f.svc.Delete(context.Background(), f.owner, q.ID))

	assert.Equal(t, 1, f.payloads.refreshed[testA])
	assert.Equal(t, 1, f.payloads.refreshed[testB])

	_, err := f.svc.GetByID(context.Background(), f.owner, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestionService_DeleteUnattachedQuestionSkipsRefresh(t *testing.T) {
	f := newBankFixture()
	q := f.addQuestion(t)

	require.NoError(t, f.svc.Delete(context.Background(), f.owner, q.ID))
	assert.Empty(t, f.payloads.refreshed)
}

func TestQuestionService_DeleteRejectsForeignQuestion(t *testing.T) {
	f := newBankFixture()
	q := f.addQuestion(t, uuid.New())

	err := f.svc.Delete(context.Background(), uuid.New(), q.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Empty(t, f.payloads.refreshed)

	_, err = f.svc.GetByID(context.Background(), f.owner, q.ID)
	assert.NoError(t, err)
}

func TestQuestionService_UpdateAppliesOnlySetFields(t *testing.T) {
	f := newBankFixture()
	testID := uuid.New()
	q := f.addQuestion(t, testID)

	updated, err := f.svc.Update(context.Background(), f.owner, q.ID, &model.UpdateQuestionRequest{
		Text:   "What does _ do in an assignment?",
		Points: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, "What does _ do in an assignment?", updated.Text)
	assert.Equal(t, 12, updated.Points)
	assert.Equal(t, q.Skill, updated.Skill)
	assert.Equal(t, q.CorrectAnswer, updated.CorrectAnswer)
	assert.Equal(t, q.Difficulty, updated.Difficulty)

	assert.Equal(t, 1, f.payloads.refreshed[testID])
}

func TestQuestionService_UpdateRejectsForeignQuestion(t *testing.T) {
	f := newBankFixture()
	q := f.addQuestion(t, uuid.New())

	_, err := f.svc.Update(context.Background(), uuid.New(), q.ID, &model.UpdateQuestionRequest{Points: 1})
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Empty(t, f.payloads.refreshed)
}

func TestQuestionService_BatchDeleteRefreshesEachTestOnce(t *testing.T) {
	f := newBankFixture()
	shared := uuid.New()
	other := uuid.New()
	q1 := f.addQuestion(t, shared, other)
	q2 := f.addQuestion(t, shared)

	err := f.svc.BatchDelete(context.Background(), f.owner, []uuid.UUID{q1.ID, q2.ID, uuid.New()})
	require.NoError(t, err)

	// Both deletions touch the shared test but its cache rebuilds once.
	assert.Equal(t, 1, f.payloads.refreshed[shared])
	assert.Equal(t, 1, f.payloads.refreshed[other])

	_, err = f.svc.GetByID(context.Background(), f.owner, q1.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.GetByID(context.Background(), f.owner, q2.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestionService_BatchDeleteAbortsOnForeignQuestion(t *testing.T) {
	f := newBankFixture()
	mine := f.addQuestion(t, uuid.New())

	foreign, err := f.svc.Create(context.Background(), uuid.New(), &model.CreateQuestionRequest{
		Text:          "Is nil a type?",
		Type:          model.QuestionTypeTrueFalse,
		Skill:         "go",
		Difficulty:    model.DifficultyEasy,
		CorrectAnswer: "false",
	})
	require.NoError(t, err)

	err = f.svc.BatchDelete(context.Background(), f.owner, []uuid.UUID{foreign.ID, mine.ID})
	assert.ErrorIs(t, err, ErrNotOwner)

	// Nothing was deleted, nothing refreshed.
	_, err = f.svc.GetByID(context.Background(), f.owner, mine.ID)
	assert.NoError(t, err)
	assert.Empty(t, f.payloads.refreshed)
}
