package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invigilo/invigilo/internal/attempt"
	"github.com/invigilo/invigilo/internal/exam"
	"github.com/invigilo/invigilo/internal/grading"
)

var (
	// ErrExamClosed means the exam is inactive or the attempt is no longer
	// active.
	ErrExamClosed = errors.New("exam is not open for taking")
	// ErrAnswerKind means an answer value shape does not match its question
	// type. Payloads decoded through attempt.ParseAnswerMap never trip this.
	ErrAnswerKind = errors.New("answer value does not match question type")
)

// AuditLog receives attempt lifecycle events. May be nil.
type AuditLog interface {
	Append(ctx context.Context, typ, key string, data any) error
}

// Service owns the attempt state machine: find-or-create, timing checks,
// start, answer recording, submission and violation handling.
type Service struct {
	exams       exam.Store
	assignments attempt.AssignmentStore
	answers     attempt.AnswerStore
	scorer      *grading.AutoScorer
	audit       AuditLog
	now         func() time.Time
}

type Option func(*Service)

func WithAuditLog(l AuditLog) Option { return func(s *Service) { s.audit = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(exams exam.Store, assignments attempt.AssignmentStore, answers attempt.AnswerStore, opts ...Option) *Service {
	s := &Service{
		exams:       exams,
		assignments: assignments,
		answers:     answers,
		scorer:      grading.NewAutoScorer(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// FindOrCreateAssignment returns the student's attempt for the exam, creating
// it in status assigned on first access. Safe under concurrent first access;
// duplicates cannot exist.
func (s *Service) FindOrCreateAssignment(ctx context.Context, examID, studentID string) (attempt.Assignment, error) {
	if _, err := s.exams.GetExamAdmin(ctx, examID); err != nil {
		return attempt.Assignment{}, err
	}
	return s.assignments.GetOrCreate(ctx, examID, studentID)
}

// ValidateTiming reports whether the exam's start/end window, when set,
// contains the current time.
func (s *Service) ValidateTiming(ex exam.Exam) bool {
	now := s.now()
	if ex.StartTime != nil && now.Before(*ex.StartTime) {
		return false
	}
	if ex.EndTime != nil && now.After(*ex.EndTime) {
		return false
	}
	return true
}

// CanTakeExam reports whether the attempt is still workable: the assignment
// exists and is active, and the exam itself is active. Timing is checked
// separately via ValidateTiming before allowing entry.
func (s *Service) CanTakeExam(ex exam.Exam, a attempt.Assignment) bool {
	return a.ID != "" && a.Status.IsActive() && ex.IsActive
}

// StartExam moves assigned -> started and stamps started_at. Starting an
// already started attempt is a no-op that keeps the original stamp; starting
// a completed attempt is rejected with the record unchanged.
func (s *Service) StartExam(ctx context.Context, assignmentID string) (attempt.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	if a.Status == attempt.StatusStarted {
		return a, nil
	}
	if a.Status.IsCompleted() {
		return a, attempt.ErrInvalidState
	}
	applied, err := s.assignments.Start(ctx, assignmentID, s.now().Unix())
	if err != nil {
		return attempt.Assignment{}, err
	}
	if applied {
		s.auditEvent(ctx, "AttemptStarted", assignmentID, map[string]any{"exam_id": a.ExamID, "user_id": a.UserID})
	}
	return s.assignments.Get(ctx, assignmentID)
}

// SubmitExam is the student's explicit hand-in. Attempts on exams with text
// questions route to pending_review with a null score; otherwise the attempt
// is submitted with the auto score as final. Re-submitting a completed
// attempt is a safe no-op.
func (s *Service) SubmitExam(ctx context.Context, assignmentID string) (attempt.Assignment, error) {
	return s.submit(ctx, assignmentID, false, false)
}

// Abandon ends an attempt the student walked away from. It always routes to
// manual review; an abandoned attempt is never auto-graded.
func (s *Service) Abandon(ctx context.Context, assignmentID string) (attempt.Assignment, error) {
	return s.submit(ctx, assignmentID, true, true)
}

func (s *Service) submit(ctx context.Context, assignmentID string, forceReview, forced bool) (attempt.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	if a.Status.IsCompleted() {
		return a, nil
	}
	if a.Status != attempt.StatusStarted {
		return a, attempt.ErrInvalidState
	}

	ex, err := s.exams.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	rows, err := s.answers.ListByAssignment(ctx, a.ID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	autoScore := s.scorer.ScoreAttempt(ex, rows)

	final := attempt.StatusSubmitted
	var score *float64
	if forceReview || ex.HasTextQuestions() {
		final = attempt.StatusPendingReview
	} else {
		sc := autoScore
		score = &sc
	}

	applied, err := s.assignments.Submit(ctx, a.ID, final, autoScore, score, forced, s.now().Unix())
	if err != nil {
		return attempt.Assignment{}, err
	}
	if applied {
		s.auditEvent(ctx, "AttemptSubmitted", a.ID, map[string]any{
			"status": final, "auto_score": autoScore, "forced": forced,
		})
	}
	return s.assignments.Get(ctx, a.ID)
}

// SaveAnswers validates and persists the student's answers, replacing any
// prior rows per question. Question IDs not belonging to the exam are
// skipped so stale client payloads never fail the batch. Each question is
// replaced in its own atomic unit; answers already saved for earlier
// questions survive a failure on a later one.
func (s *Service) SaveAnswers(ctx context.Context, assignmentID string, values map[string]attempt.AnswerValue) error {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if a.Status.IsCompleted() {
		return attempt.ErrInvalidState
	}
	ex, err := s.exams.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return err
	}
	for _, q := range ex.Questions {
		v, ok := values[q.ID]
		if !ok {
			continue
		}
		rows, err := answerRows(a.ID, q, v)
		if err != nil {
			return err
		}
		if err := s.answers.Replace(ctx, a.ID, q.ID, rows); err != nil {
			return fmt.Errorf("save answers for question %s: %w", q.ID, err)
		}
	}
	return nil
}

// HandleViolation reacts to a detected integrity breach: any answers sent
// along are saved first so partial work reaches the reviewer, then the
// attempt is forced to pending_review with a null score and one appended log
// entry. A violation on an already completed attempt is a no-op and never
// duplicates log entries.
func (s *Service) HandleViolation(ctx context.Context, assignmentID, vtype, details string, values map[string]attempt.AnswerValue) (attempt.Assignment, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return attempt.Assignment{}, err
	}
	if a.Status.IsCompleted() {
		return a, nil
	}
	if len(values) > 0 {
		// Preserve whatever we can; the forced transition still happens if
		// saving fails.
		_ = s.SaveAnswers(ctx, assignmentID, values)
	}

	autoScore := 0.0
	if ex, err := s.exams.GetExamAdmin(ctx, a.ExamID); err == nil {
		if rows, err := s.answers.ListByAssignment(ctx, a.ID); err == nil {
			autoScore = s.scorer.ScoreAttempt(ex, rows)
		}
	}

	v := attempt.Violation{Type: vtype, Details: details, ForcedSubmission: true}
	applied, err := s.assignments.ForceReview(ctx, a.ID, v, autoScore, s.now().Unix())
	if err != nil {
		return attempt.Assignment{}, err
	}
	if applied {
		s.auditEvent(ctx, "AttemptViolation", a.ID, map[string]any{"type": vtype})
	}
	return s.assignments.Get(ctx, a.ID)
}

// CalculateAutoScore recomputes the objective score from stored answers.
// Pure over the answer rows: repeated calls without new answers agree.
func (s *Service) CalculateAutoScore(ctx context.Context, assignmentID string) (float64, error) {
	a, err := s.assignments.Get(ctx, assignmentID)
	if err != nil {
		return 0, err
	}
	ex, err := s.exams.GetExamAdmin(ctx, a.ExamID)
	if err != nil {
		return 0, err
	}
	rows, err := s.answers.ListByAssignment(ctx, a.ID)
	if err != nil {
		return 0, err
	}
	return s.scorer.ScoreAttempt(ex, rows), nil
}

// Assignment fetches the attempt with its violation log.
func (s *Service) Assignment(ctx context.Context, assignmentID string) (attempt.Assignment, error) {
	return s.assignments.Get(ctx, assignmentID)
}

// Answers fetches the attempt's stored answer rows.
func (s *Service) Answers(ctx context.Context, assignmentID string) ([]attempt.Answer, error) {
	if _, err := s.assignments.Get(ctx, assignmentID); err != nil {
		return nil, err
	}
	return s.answers.ListByAssignment(ctx, assignmentID)
}

func (s *Service) auditEvent(ctx context.Context, typ, key string, data any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Append(ctx, typ, key, data)
}

func answerRows(assignmentID string, q exam.Question, v attempt.AnswerValue) ([]attempt.Answer, error) {
	switch q.Type {
	case exam.QuestionOneChoice, exam.QuestionBoolean:
		if v.Kind != attempt.KindChoice {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrAnswerKind)
		}
		id := v.ChoiceID
		return []attempt.Answer{{AssignmentID: assignmentID, QuestionID: q.ID, ChoiceID: &id}}, nil
	case exam.QuestionMultiple:
		if v.Kind != attempt.KindChoices {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrAnswerKind)
		}
		seen := map[string]struct{}{}
		var rows []attempt.Answer
		for _, cid := range v.ChoiceIDs {
			if _, dup := seen[cid]; dup {
				continue
			}
			seen[cid] = struct{}{}
			id := cid
			rows = append(rows, attempt.Answer{AssignmentID: assignmentID, QuestionID: q.ID, ChoiceID: &id})
		}
		return rows, nil
	case exam.QuestionText:
		if v.Kind != attempt.KindText {
			return nil, fmt.Errorf("question %s: %w", q.ID, ErrAnswerKind)
		}
		txt := v.Text
		return []attempt.Answer{{AssignmentID: assignmentID, QuestionID: q.ID, Text: &txt}}, nil
	}
	return nil, fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
}
