package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/invigilo/invigilo/internal/grading"
)

// POST /exams/{examID}/students/{studentID}/correction
// Applies teacher scores/feedback to answer rows, re-sums the final score
// and moves the attempt to graded. Safe to repeat: regrading re-sums.
func ApplyCorrectionHandler(corrector *grading.Corrector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		studentID := chi.URLParam(r, "studentID")

		var corr grading.Correction
		if err := json.NewDecoder(r.Body).Decode(&corr); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(corr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a, err := corrector.SaveManualCorrection(r.Context(), examID, studentID, corr)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, a)
	}
}
