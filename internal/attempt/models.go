package attempt

// Status is the assignment state machine. Transitions only move forward:
//
//	assigned -> started -> submitted | pending_review -> graded
type Status string

const (
	StatusAssigned      Status = "assigned"
	StatusStarted       Status = "started"
	StatusSubmitted     Status = "submitted"
	StatusPendingReview Status = "pending_review"
	StatusGraded        Status = "graded"
)

// IsActive reports whether the student can still work on the attempt.
func (s Status) IsActive() bool {
	return s == StatusAssigned || s == StatusStarted
}

// IsCompleted reports whether the attempt reached a terminal submission.
func (s Status) IsCompleted() bool {
	return s == StatusSubmitted || s == StatusPendingReview || s == StatusGraded
}

// CanTransitionTo enforces forward-only movement through the machine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusAssigned:
		return next == StatusStarted || next == StatusPendingReview
	case StatusStarted:
		return next == StatusSubmitted || next == StatusPendingReview
	case StatusSubmitted, StatusPendingReview:
		return next == StatusGraded
	case StatusGraded:
		// Regrading re-stamps graded in place.
		return next == StatusGraded
	}
	return false
}

// Assignment is one student's single attempt at one exam, unique per
// (exam_id, user_id).
type Assignment struct {
	ID               string      `json:"id"`
	ExamID           string      `json:"exam_id"`
	UserID           string      `json:"user_id"`
	Status           Status      `json:"status"`
	AssignedAt       int64       `json:"assigned_at"`
	StartedAt        *int64      `json:"started_at,omitempty"`
	SubmittedAt      *int64      `json:"submitted_at,omitempty"`
	AutoScore        float64     `json:"auto_score"`
	Score            *float64    `json:"score,omitempty"`
	TeacherNotes     string      `json:"teacher_notes,omitempty"`
	ForcedSubmission bool        `json:"forced_submission"`
	Violations       []Violation `json:"security_violations,omitempty"`
}

// Violation is one entry in the append-only integrity log of an assignment.
type Violation struct {
	ID               int64  `json:"id,omitempty"`
	AssignmentID     string `json:"assignment_id,omitempty"`
	Type             string `json:"type"`
	Details          string `json:"details,omitempty"`
	ForcedSubmission bool   `json:"forced_submission"`
	CreatedAt        int64  `json:"timestamp"`
}

// Answer is one stored row for (assignment, question). Choice questions use
// ChoiceID; multiple-choice questions store one row per selected choice; text
// questions store exactly one row with Text set. Score and Feedback are
// filled by manual correction.
type Answer struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignment_id"`
	QuestionID   string   `json:"question_id"`
	ChoiceID     *string  `json:"choice_id,omitempty"`
	Text         *string  `json:"answer_text,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	Feedback     *string  `json:"feedback,omitempty"`
}
