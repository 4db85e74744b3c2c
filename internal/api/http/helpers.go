package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/invigilo/invigilo/internal/attempt"
	authmw "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/grading"
	"github.com/invigilo/invigilo/internal/rbac"
	"github.com/invigilo/invigilo/internal/session"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func errStatus(err error) int {
	switch {
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, attempt.ErrNotFound),
		errors.Is(err, grading.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, attempt.ErrInvalidState), errors.Is(err, grading.ErrNotSubmitted):
		return http.StatusConflict
	case errors.Is(err, session.ErrExamClosed):
		return http.StatusForbidden
	case errors.Is(err, session.ErrAnswerKind):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), errStatus(err))
}

// canAccessAttempt allows the owning student plus any grading role.
func canAccessAttempt(r *http.Request, ownerID string) bool {
	role := rbac.RoleFromContext(r.Context())
	if role == "teacher" || role == "admin" {
		return true
	}
	return authmw.SubjectFromContext(r.Context()) == ownerID
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
