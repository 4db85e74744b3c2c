package http

import (
	"net/http"
	"strings"

	"github.com/invigilo/invigilo/internal/attempt"
	authmw "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/rbac"
)

// GET /attempts?exam_id=...&user_id=...&status=...&limit=50&offset=0
// Grading roles may list with any filters; students are scoped to their own
// attempts regardless of the user_id they pass.
func ListAttemptsHandler(store attempt.AssignmentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := authmw.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if role != "admin" && role != "teacher" {
			userID = sub
		}

		list, err := store.List(r.Context(), attempt.ListOpts{
			ExamID: strings.TrimSpace(r.URL.Query().Get("exam_id")),
			UserID: userID,
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, list)
	}
}
