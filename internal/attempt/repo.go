package attempt

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("assignment not found")
	ErrInvalidState = errors.New("invalid assignment state")
)

// ListOpts filters assignment listings for teacher dashboards and the
// student's own history.
type ListOpts struct {
	ExamID string
	UserID string
	Status string
	Limit  int
	Offset int
}

// AssignmentStore is the durable record of one attempt per (exam, student).
// Transition methods are conditional updates: they apply only when the row is
// in the expected prior state, and report whether they did, so retried
// requests degrade to reads instead of double-applying.
type AssignmentStore interface {
	// GetOrCreate returns the existing assignment for (examID, userID) or
	// creates one in status assigned. Concurrent first access is resolved by
	// the store's uniqueness constraint, never by duplicate rows.
	GetOrCreate(ctx context.Context, examID, userID string) (Assignment, error)
	Get(ctx context.Context, id string) (Assignment, error)
	GetByExamUser(ctx context.Context, examID, userID string) (Assignment, error)
	List(ctx context.Context, opts ListOpts) ([]Assignment, error)

	// Start moves assigned -> started and stamps started_at. Applied is
	// false when the assignment was not in assigned; the row is untouched.
	Start(ctx context.Context, id string, now int64) (applied bool, err error)

	// Submit terminates a started attempt. Score is nil when the attempt
	// routes to manual review. Applied is false when the attempt was not in
	// started.
	Submit(ctx context.Context, id string, final Status, autoScore float64, score *float64, forced bool, now int64) (applied bool, err error)

	// ForceReview atomically appends one violation record and forces any
	// still-active attempt into pending_review with a null score. Applied is
	// false (and nothing is appended) when the attempt already completed.
	ForceReview(ctx context.Context, id string, v Violation, autoScore float64, now int64) (applied bool, err error)

	// SetGraded writes the authoritative total and moves the completed
	// attempt to graded. Re-grading an already graded attempt re-applies.
	SetGraded(ctx context.Context, id string, score float64, notes string) error

	ListViolations(ctx context.Context, assignmentID string) ([]Violation, error)
}

// AnswerStore is the durable record of answer rows per (assignment, question).
type AnswerStore interface {
	// Replace atomically deletes all rows for (assignmentID, questionID) and
	// inserts rows in their place. A concurrent reader sees either the old
	// set or the new one, never a mix. The status is re-checked in the same
	// atomic unit: a replace racing a terminal transition fails with
	// ErrInvalidState rather than landing rows on a frozen score.
	Replace(ctx context.Context, assignmentID, questionID string, rows []Answer) error

	ListByAssignment(ctx context.Context, assignmentID string) ([]Answer, error)

	// ApplyCorrection writes score and feedback onto every row of the
	// question, since the question is scored as a unit. Returns the number
	// of rows updated.
	ApplyCorrection(ctx context.Context, assignmentID, questionID string, score float64, feedback string) (int, error)

	// SumScores totals manual scores counting each question once, whatever
	// the row count per question.
	SumScores(ctx context.Context, assignmentID string) (float64, error)
}
