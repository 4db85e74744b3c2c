package attempt_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invigilo/invigilo/internal/attempt"
	"github.com/invigilo/invigilo/internal/db"
	"github.com/invigilo/invigilo/internal/exam"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// A :memory: database lives on its connection.
	dbh.SetMaxOpenConns(1)
	require.NoError(t, db.EnsureSchema(context.Background(), dbh, db.DriverSQLite))
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedExam(t *testing.T, dbh *sql.DB) exam.Exam {
	t.Helper()
	ex := exam.Exam{
		ID:       "ex1",
		Title:    "Midterm",
		IsActive: true,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.QuestionOneChoice, Prompt: "Pick one", Points: 10, Position: 0, Choices: []exam.Choice{
				{ID: "c1", Content: "right", IsCorrect: true, Position: 0},
				{ID: "c2", Content: "wrong", Position: 1},
			}},
			{ID: "q2", Type: exam.QuestionMultiple, Prompt: "Pick two", Points: 8, Position: 1, Choices: []exam.Choice{
				{ID: "a", Content: "A", IsCorrect: true, Position: 0},
				{ID: "b", Content: "B", IsCorrect: true, Position: 1},
				{ID: "c", Content: "C", Position: 2},
			}},
			{ID: "q3", Type: exam.QuestionText, Prompt: "Explain", Points: 5, Position: 2},
		},
	}
	require.NoError(t, exam.NewSQLStore(dbh).PutExam(context.Background(), ex))
	return ex
}

func strp(s string) *string { return &s }

func TestSQLStore_GetOrCreateIsUnique(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a1, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	assert.Equal(t, attempt.StatusAssigned, a1.Status)
	assert.NotZero(t, a1.AssignedAt)

	a2, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	assert.Equal(t, a1.ID, a2.ID)

	b, err := store.GetOrCreate(ctx, "ex1", "u2")
	require.NoError(t, err)
	assert.NotEqual(t, a1.ID, b.ID)
}

func TestSQLStore_GetOrCreateConcurrent(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			a, err := store.GetOrCreate(ctx, "ex1", "u1")
			assert.NoError(t, err)
			ids[i] = a.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id, "the unique constraint must collapse racers onto one row")
	}
	var count int
	require.NoError(t, dbh.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM assignments WHERE exam_id=$1 AND user_id=$2`, "ex1", "u1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLStore_GetUnknown(t *testing.T) {
	dbh := openTestDB(t)
	store := attempt.NewSQLStore(dbh)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, attempt.ErrNotFound)
	_, err = store.GetByExamUser(context.Background(), "ex1", "u1")
	assert.ErrorIs(t, err, attempt.ErrNotFound)
}

func TestSQLStore_StartIsConditional(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)

	applied, err := store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Start(ctx, a.ID, 2000)
	require.NoError(t, err)
	assert.False(t, applied, "second start must not win")

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.StatusStarted, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.Equal(t, int64(1000), *got.StartedAt)
}

func TestSQLStore_SubmitOnlyFromStarted(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)

	final := 12.0
	applied, err := store.Submit(ctx, a.ID, attempt.StatusSubmitted, 12, &final, false, 3000)
	require.NoError(t, err)
	assert.False(t, applied, "submit from assigned must not apply")

	_, err = store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)

	applied, err = store.Submit(ctx, a.ID, attempt.StatusSubmitted, 12, &final, false, 3000)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.Submit(ctx, a.ID, attempt.StatusSubmitted, 99, nil, true, 4000)
	require.NoError(t, err)
	assert.False(t, applied, "re-submit must not overwrite")

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.StatusSubmitted, got.Status)
	assert.Equal(t, 12.0, got.AutoScore)
	require.NotNil(t, got.Score)
	assert.Equal(t, 12.0, *got.Score)
	require.NotNil(t, got.SubmittedAt)
	assert.Equal(t, int64(3000), *got.SubmittedAt)
}

func TestSQLStore_ForceReviewAppendsExactlyOnce(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	_, err = store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)

	v := attempt.Violation{Type: "fullscreen_exit", Details: "left at q2"}
	applied, err := store.ForceReview(ctx, a.ID, v, 10, 2000)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.ForceReview(ctx, a.ID, v, 10, 2500)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.StatusPendingReview, got.Status)
	assert.Nil(t, got.Score)
	assert.True(t, got.ForcedSubmission)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "fullscreen_exit", got.Violations[0].Type)
	assert.Equal(t, int64(2000), got.Violations[0].CreatedAt)
}

func TestSQLStore_SetGraded(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)

	err = store.SetGraded(ctx, a.ID, 15, "see me")
	assert.ErrorIs(t, err, attempt.ErrInvalidState, "grading an active attempt is rejected")
	assert.ErrorIs(t, store.SetGraded(ctx, "missing", 15, ""), attempt.ErrNotFound)

	_, err = store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)
	_, err = store.Submit(ctx, a.ID, attempt.StatusPendingReview, 10, nil, false, 2000)
	require.NoError(t, err)

	require.NoError(t, store.SetGraded(ctx, a.ID, 15, "good work"))
	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, attempt.StatusGraded, got.Status)
	require.NotNil(t, got.Score)
	assert.Equal(t, 15.0, *got.Score)
	assert.Equal(t, "good work", got.TeacherNotes)

	// Regrade overwrites in place.
	require.NoError(t, store.SetGraded(ctx, a.ID, 17, "after appeal"))
	got, err = store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 17.0, *got.Score)
}

func TestSQLStore_ListFilters(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	_, err = store.GetOrCreate(ctx, "ex1", "u2")
	require.NoError(t, err)
	_, err = store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)

	all, err := store.List(ctx, attempt.ListOpts{ExamID: "ex1"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	started, err := store.List(ctx, attempt.ListOpts{ExamID: "ex1", Status: string(attempt.StatusStarted)})
	require.NoError(t, err)
	require.Len(t, started, 1)
	assert.Equal(t, a.ID, started[0].ID)

	mine, err := store.List(ctx, attempt.ListOpts{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "u2", mine[0].UserID)
}

func TestAnswerSQLStore_ReplaceKeepsOnlyLatest(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	answers := attempt.NewAnswerSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)

	require.NoError(t, answers.Replace(ctx, a.ID, "q2", []attempt.Answer{
		{ChoiceID: strp("a")}, {ChoiceID: strp("b")},
	}))
	require.NoError(t, answers.Replace(ctx, a.ID, "q2", []attempt.Answer{
		{ChoiceID: strp("c")},
	}))

	rows, err := answers.ListByAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "q2", rows[0].QuestionID)
	require.NotNil(t, rows[0].ChoiceID)
	assert.Equal(t, "c", *rows[0].ChoiceID)

	// Clearing a question leaves it unanswered.
	require.NoError(t, answers.Replace(ctx, a.ID, "q2", nil))
	rows, err = answers.ListByAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAnswerSQLStore_ReplaceRefusedOnceCompleted(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	answers := attempt.NewAnswerSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	_, err = store.Start(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.NoError(t, answers.Replace(ctx, a.ID, "q1", []attempt.Answer{{ChoiceID: strp("c1")}}))

	_, err = store.Submit(ctx, a.ID, attempt.StatusSubmitted, 10, nil, false, 2000)
	require.NoError(t, err)

	err = answers.Replace(ctx, a.ID, "q1", []attempt.Answer{{ChoiceID: strp("c2")}})
	assert.ErrorIs(t, err, attempt.ErrInvalidState)

	rows, err := answers.ListByAssignment(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", *rows[0].ChoiceID, "frozen answers stay as submitted")

	assert.ErrorIs(t, answers.Replace(ctx, "missing", "q1", nil), attempt.ErrNotFound)
}

func TestAnswerSQLStore_CorrectionAndSum(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	answers := attempt.NewAnswerSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)

	require.NoError(t, answers.Replace(ctx, a.ID, "q2", []attempt.Answer{
		{ChoiceID: strp("a")}, {ChoiceID: strp("b")},
	}))
	require.NoError(t, answers.Replace(ctx, a.ID, "q3", []attempt.Answer{
		{Text: strp("an essay")},
	}))

	n, err := answers.ApplyCorrection(ctx, a.ID, "q2", 8, "all selected")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "every row of the question gets the score")

	n, err = answers.ApplyCorrection(ctx, a.ID, "q3", 4, "missing one point")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := answers.SumScores(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.0, sum, "multi-row questions count once")

	rows, err := answers.ListByAssignment(ctx, a.ID)
	require.NoError(t, err)
	for _, r := range rows {
		if r.QuestionID != "q2" {
			continue
		}
		require.NotNil(t, r.Score)
		assert.Equal(t, 8.0, *r.Score)
		require.NotNil(t, r.Feedback)
		assert.Equal(t, "all selected", *r.Feedback)
	}
}

func TestAnswerSQLStore_SumEmptyIsZero(t *testing.T) {
	dbh := openTestDB(t)
	seedExam(t, dbh)
	store := attempt.NewSQLStore(dbh)
	answers := attempt.NewAnswerSQLStore(dbh)
	ctx := context.Background()

	a, err := store.GetOrCreate(ctx, "ex1", "u1")
	require.NoError(t, err)
	sum, err := answers.SumScores(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sum)
}
