package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	authmw "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/rbac"
)

// POST /exams
func UploadExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ex exam.Exam
		if err := json.NewDecoder(r.Body).Decode(&ex); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if ex.ID == "" {
			ex.ID = uuid.NewString()
		}
		if ex.TeacherID == "" {
			ex.TeacherID = authmw.SubjectFromContext(r.Context())
		}
		for i := range ex.Questions {
			q := &ex.Questions[i]
			if !q.Type.Valid() {
				http.Error(w, fmt.Sprintf("question %d: unknown type %q", i, q.Type), http.StatusBadRequest)
				return
			}
			if q.Type.Objective() && len(q.CorrectChoiceIDs()) == 0 {
				http.Error(w, fmt.Sprintf("question %d: %s needs at least one correct choice", i, q.Type), http.StatusBadRequest)
				return
			}
			if q.ID == "" {
				q.ID = uuid.NewString()
			}
			for j := range q.Choices {
				if q.Choices[j].ID == "" {
					q.Choices[j].ID = uuid.NewString()
				}
			}
		}
		if err := store.PutExam(r.Context(), ex); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, ex)
	}
}

// GET /exams/{examID}
// Students get the answer key stripped; grading roles see the full exam.
func GetExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		role := rbac.RoleFromContext(r.Context())
		var (
			ex  exam.Exam
			err error
		)
		if role == "teacher" || role == "admin" {
			ex, err = store.GetExamAdmin(r.Context(), id)
		} else {
			ex, err = store.GetExam(r.Context(), id)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, ex)
	}
}

// DELETE /exams/{examID}
func DeleteExamHandler(store exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "examID")
		ex, err := store.GetExamAdmin(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role != "admin" && ex.TeacherID != authmw.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := store.DeleteExam(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
