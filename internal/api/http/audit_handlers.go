package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/invigilo/invigilo/internal/audit"
)

// GET /session/{assignmentID}/audit?limit=50
// The lifecycle trail for one attempt, oldest first. Reviewer-facing:
// pairs with the violation log when deciding a pending_review grade.
func AuditTrailHandler(logs *audit.Log) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
		events, err := logs.Recent(r.Context(), id, limit)
		if err != nil {
			http.Error(w, "audit trail", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
	}
}
