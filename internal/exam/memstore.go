package exam

import (
	"context"
	"sync"
)

// memoryStore backs tests and single-process offline deployments.
type memoryStore struct {
	mu    sync.RWMutex
	exams map[string]Exam
}

func NewInMemoryStore() Store {
	return &memoryStore{exams: map[string]Exam{}}
}

func (m *memoryStore) PutExam(_ context.Context, e Exam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exams[e.ID] = e
	return nil
}

func (m *memoryStore) GetExam(ctx context.Context, id string) (Exam, error) {
	e, err := m.GetExamAdmin(ctx, id)
	if err != nil {
		return Exam{}, err
	}
	qs := make([]Question, len(e.Questions))
	copy(qs, e.Questions)
	for i := range qs {
		cs := make([]Choice, len(qs[i].Choices))
		copy(cs, qs[i].Choices)
		for j := range cs {
			cs[j].IsCorrect = false
		}
		qs[i].Choices = cs
	}
	e.Questions = qs
	return e, nil
}

func (m *memoryStore) GetExamAdmin(_ context.Context, id string) (Exam, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.exams[id]
	if !ok {
		return Exam{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) DeleteExam(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exams[id]; !ok {
		return ErrNotFound
	}
	delete(m.exams, id)
	return nil
}
