package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invigilo/invigilo/internal/attempt"
	authmw "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/rbac"
	"github.com/invigilo/invigilo/internal/session"
)

func withIdentity(sub, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authmw.WithSubject(r.Context(), sub)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func startedSession(t *testing.T) (*session.Service, exam.Store, attempt.Assignment) {
	t.Helper()
	ctx := context.Background()
	exams := exam.NewInMemoryStore()
	require.NoError(t, exams.PutExam(ctx, exam.Exam{
		ID:       "ex1",
		Title:    "Quiz",
		IsActive: true,
		Questions: []exam.Question{
			{ID: "q1", Type: exam.QuestionOneChoice, Points: 10, Choices: []exam.Choice{
				{ID: "c1", IsCorrect: true}, {ID: "c2"},
			}},
		},
	}))
	store := attempt.NewMemoryStore()
	svc := session.NewService(exams, store, store)
	a, err := svc.FindOrCreateAssignment(ctx, "ex1", "student1")
	require.NoError(t, err)
	a, err = svc.StartExam(ctx, a.ID)
	require.NoError(t, err)
	return svc, exams, a
}

func TestReportViolation_EmptyBodyStillForcesReview(t *testing.T) {
	svc, exams, a := startedSession(t)

	r := chi.NewRouter()
	r.Use(withIdentity("student1", "student"))
	r.Post("/session/{assignmentID}/violation", ReportViolationHandler(svc, exams))

	req := httptest.NewRequest("POST", "/session/"+a.ID+"/violation", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "a violation report must not bounce back to the student")
	var got attempt.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, attempt.StatusPendingReview, got.Status)
	assert.True(t, got.ForcedSubmission)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "unspecified", got.Violations[0].Type)
}

func TestReportViolation_MalformedBodyStillForcesReview(t *testing.T) {
	svc, exams, a := startedSession(t)

	r := chi.NewRouter()
	r.Use(withIdentity("student1", "student"))
	r.Post("/session/{assignmentID}/violation", ReportViolationHandler(svc, exams))

	req := httptest.NewRequest("POST", "/session/"+a.ID+"/violation", strings.NewReader(`not json at all`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got attempt.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, attempt.StatusPendingReview, got.Status)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "unspecified", got.Violations[0].Type)
}

func TestGetSession_ReportsMaxScore(t *testing.T) {
	svc, exams, a := startedSession(t)

	r := chi.NewRouter()
	r.Use(withIdentity("student1", "student"))
	r.Get("/session/{assignmentID}", GetSessionHandler(svc, exams))

	req := httptest.NewRequest("GET", "/session/"+a.ID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		MaxScore float64 `json:"max_score"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 10.0, got.MaxScore)
}
