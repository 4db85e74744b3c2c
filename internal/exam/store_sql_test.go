package exam_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invigilo/invigilo/internal/db"
	"github.com/invigilo/invigilo/internal/exam"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	dbh.SetMaxOpenConns(1)
	require.NoError(t, db.EnsureSchema(context.Background(), dbh, db.DriverSQLite))
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func sampleExam() exam.Exam {
	return exam.Exam{
		ID:        "ex1",
		Title:     "Final",
		TeacherID: "t1",
		IsActive:  true,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.QuestionOneChoice, Prompt: "Pick", Points: 10, Position: 0, Choices: []exam.Choice{
				{ID: "c1", Content: "yes", IsCorrect: true, Position: 0},
				{ID: "c2", Content: "no", Position: 1},
			}},
			{ID: "q2", Type: exam.QuestionText, Prompt: "Explain", Points: 5, Position: 1},
		},
	}
}

func TestSQLStore_StudentViewHidesAnswerKey(t *testing.T) {
	dbh := openTestDB(t)
	store := exam.NewSQLStore(dbh)
	ctx := context.Background()
	require.NoError(t, store.PutExam(ctx, sampleExam()))

	got, err := store.GetExam(ctx, "ex1")
	require.NoError(t, err)
	require.Len(t, got.Questions, 2)
	for _, c := range got.Questions[0].Choices {
		assert.False(t, c.IsCorrect, "student view must not leak the key")
	}

	admin, err := store.GetExamAdmin(ctx, "ex1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, admin.Questions[0].CorrectChoiceIDs())
}

func TestSQLStore_PutExamRewritesQuestions(t *testing.T) {
	dbh := openTestDB(t)
	store := exam.NewSQLStore(dbh)
	ctx := context.Background()
	require.NoError(t, store.PutExam(ctx, sampleExam()))

	ex := sampleExam()
	ex.Title = "Final v2"
	ex.Questions = ex.Questions[:1]
	require.NoError(t, store.PutExam(ctx, ex))

	got, err := store.GetExamAdmin(ctx, "ex1")
	require.NoError(t, err)
	assert.Equal(t, "Final v2", got.Title)
	assert.Len(t, got.Questions, 1)
}

func TestSQLStore_DeleteExam(t *testing.T) {
	dbh := openTestDB(t)
	store := exam.NewSQLStore(dbh)
	ctx := context.Background()
	require.NoError(t, store.PutExam(ctx, sampleExam()))

	require.NoError(t, store.DeleteExam(ctx, "ex1"))
	_, err := store.GetExam(ctx, "ex1")
	assert.ErrorIs(t, err, exam.ErrNotFound)
	assert.ErrorIs(t, store.DeleteExam(ctx, "ex1"), exam.ErrNotFound)
}
