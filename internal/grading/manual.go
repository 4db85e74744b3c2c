package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/invigilo/invigilo/internal/attempt"
)

var (
	// ErrNotSubmitted is returned when a correction targets an attempt the
	// student has not handed in yet.
	ErrNotSubmitted = errors.New("assignment has no submission to grade")
	// ErrQuestionNotFound is returned when a correction item matches no
	// answer rows on the attempt. The attempt is not moved to graded; a typo
	// must not finalize a total that silently omits the item's points.
	ErrQuestionNotFound = errors.New("question has no answers on this attempt")
)

// QuestionCorrection carries a teacher's score and feedback for one question.
type QuestionCorrection struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
	Feedback   string  `json:"feedback,omitempty"`
}

// Correction is the full manual grading payload for one attempt.
type Correction struct {
	Items        []QuestionCorrection `json:"items" validate:"required,min=1,dive"`
	TeacherNotes string               `json:"teacher_notes,omitempty"`
}

// Corrector applies teacher-supplied scores to answer rows and finalizes the
// attempt's authoritative total.
type Corrector struct {
	assignments attempt.AssignmentStore
	answers     attempt.AnswerStore
}

func NewCorrector(assignments attempt.AssignmentStore, answers attempt.AnswerStore) *Corrector {
	return &Corrector{assignments: assignments, answers: answers}
}

// SaveManualCorrection writes each item's score and feedback onto every
// answer row of its question, re-sums the per-question scores into the
// assignment's final score, and moves the attempt to graded. auto_score is
// left untouched as the historical objective total. Regrading an already
// graded attempt re-applies and re-sums. An item referencing a question with
// no answer rows fails with ErrQuestionNotFound before any finalize.
func (c *Corrector) SaveManualCorrection(ctx context.Context, examID, studentID string, corr Correction) (attempt.Assignment, error) {
	a, err := c.assignments.GetByExamUser(ctx, examID, studentID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	if !a.Status.IsCompleted() {
		return attempt.Assignment{}, ErrNotSubmitted
	}
	for _, it := range corr.Items {
		n, err := c.answers.ApplyCorrection(ctx, a.ID, it.QuestionID, it.Score, it.Feedback)
		if err != nil {
			return attempt.Assignment{}, fmt.Errorf("correct question %s: %w", it.QuestionID, err)
		}
		if n == 0 {
			return attempt.Assignment{}, fmt.Errorf("question %s: %w", it.QuestionID, ErrQuestionNotFound)
		}
	}
	total, err := c.answers.SumScores(ctx, a.ID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	notes := corr.TeacherNotes
	if notes == "" {
		notes = a.TeacherNotes
	}
	if err := c.assignments.SetGraded(ctx, a.ID, total, notes); err != nil {
		return attempt.Assignment{}, err
	}
	return c.assignments.Get(ctx, a.ID)
}

// CorrectQuestion is the single-question path: one item, same finalize.
func (c *Corrector) CorrectQuestion(ctx context.Context, examID, studentID string, item QuestionCorrection) (attempt.Assignment, error) {
	return c.SaveManualCorrection(ctx, examID, studentID, Correction{Items: []QuestionCorrection{item}})
}
