package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/invigilo/invigilo/internal/attempt"
	authmw "github.com/invigilo/invigilo/internal/auth/middleware"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/metrics"
	"github.com/invigilo/invigilo/internal/session"
)

// POST /exams/{examID}/session
// Find-or-create the caller's attempt, gate on timing and activity, then
// start it. Entering an already started session returns it unchanged.
func EnterExamHandler(svc *session.Service, exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID := chi.URLParam(r, "examID")
		sub := authmw.SubjectFromContext(r.Context())

		ex, err := exams.GetExamAdmin(r.Context(), examID)
		if err != nil {
			writeError(w, err)
			return
		}
		a, err := svc.FindOrCreateAssignment(r.Context(), examID, sub)
		if err != nil {
			writeError(w, err)
			return
		}
		if !svc.ValidateTiming(ex) {
			http.Error(w, "exam window is closed", http.StatusForbidden)
			return
		}
		if !svc.CanTakeExam(ex, a) {
			http.Error(w, session.ErrExamClosed.Error(), http.StatusForbidden)
			return
		}
		wasAssigned := a.Status == attempt.StatusAssigned
		a, err = svc.StartExam(r.Context(), a.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if wasAssigned {
			metrics.AttemptsStartedTotal.Inc()
		}
		writeJSON(w, a)
	}
}

// PUT /session/{assignmentID}/answers
// Body: { "<questionID>": <choiceID | [choiceIDs] | text>, ... }
func SaveAnswersHandler(svc *session.Service, exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := svc.Assignment(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !canAccessAttempt(r, a.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		ex, err := exams.GetExamAdmin(r.Context(), a.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		values, err := attempt.ParseAnswerMap(ex, raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.SaveAnswers(r.Context(), id, values); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]int{"saved": len(values)})
	}
}

// POST /session/{assignmentID}/submit
func SubmitHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		finishAttempt(svc, w, r, false)
	}
}

// POST /session/{assignmentID}/abandon
// Same terminal path as submit, but always routed to manual review.
func AbandonHandler(svc *session.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		finishAttempt(svc, w, r, true)
	}
}

func finishAttempt(svc *session.Service, w http.ResponseWriter, r *http.Request, abandon bool) {
	id := chi.URLParam(r, "assignmentID")
	a, err := svc.Assignment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !canAccessAttempt(r, a.UserID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if abandon {
		a, err = svc.Abandon(r.Context(), id)
	} else {
		a, err = svc.SubmitExam(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.AttemptsSubmittedTotal.WithLabelValues(
		string(a.Status), strconv.FormatBool(a.ForcedSubmission)).Inc()
	metrics.AutoScoreHistogram.Observe(a.AutoScore)
	writeJSON(w, a)
}

type violationReq struct {
	Type    string                     `json:"type"`
	Details string                     `json:"details,omitempty"`
	Answers map[string]json.RawMessage `json:"answers,omitempty"`
}

// POST /session/{assignmentID}/violation
// Never fails the student mid-exam: a malformed body or missing type still
// forces the attempt into pending_review, and unparseable trailing answers
// are dropped rather than rejected.
func ReportViolationHandler(svc *session.Service, exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := svc.Assignment(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !canAccessAttempt(r, a.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req violationReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Type == "" {
			req.Type = "unspecified"
		}
		var values map[string]attempt.AnswerValue
		if len(req.Answers) > 0 {
			if ex, err := exams.GetExamAdmin(r.Context(), a.ExamID); err == nil {
				values, _ = attempt.ParseAnswerMap(ex, req.Answers)
			}
		}
		a, err = svc.HandleViolation(r.Context(), id, req.Type, req.Details, values)
		if err != nil {
			writeError(w, err)
			return
		}
		metrics.ViolationsTotal.WithLabelValues(req.Type).Inc()
		writeJSON(w, a)
	}
}

// GET /session/{assignmentID}
func GetSessionHandler(svc *session.Service, exams exam.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		a, err := svc.Assignment(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		if !canAccessAttempt(r, a.UserID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		answers, err := svc.Answers(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		ex, err := exams.GetExam(r.Context(), a.ExamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"assignment": a,
			"answers":    answers,
			"max_score":  ex.MaxScore(),
		})
	}
}
