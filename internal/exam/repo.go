package exam

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("exam not found")

// Store is the data-access surface the attempt engine reads exams through.
// Exam content is immutable for the duration of an attempt; only the owning
// teacher rewrites it, via PutExam.
type Store interface {
	// PutExam upserts the exam together with its questions and choices.
	PutExam(ctx context.Context, e Exam) error
	// GetExam is the student-safe read: choices come back with is_correct
	// stripped.
	GetExam(ctx context.Context, id string) (Exam, error)
	// GetExamAdmin returns the full exam including the answer key.
	GetExamAdmin(ctx context.Context, id string) (Exam, error)
	// DeleteExam removes the exam; questions, choices, assignments and
	// answers cascade.
	DeleteExam(ctx context.Context, id string) error
}
