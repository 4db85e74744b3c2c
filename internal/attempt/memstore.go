package attempt

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements AssignmentStore and AnswerStore in memory, mirroring
// the conditional-update semantics of the SQL store. It backs tests and
// single-process offline deployments.
type MemoryStore struct {
	mu          sync.Mutex
	assignments map[string]Assignment          // by id
	byExamUser  map[[2]string]string           // (exam,user) -> id
	violations  map[string][]Violation         // by assignment id
	answers     map[string]map[string][]Answer // assignment id -> question id -> rows
	vseq        int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		assignments: map[string]Assignment{},
		byExamUser:  map[[2]string]string{},
		violations:  map[string][]Violation{},
		answers:     map[string]map[string][]Answer{},
	}
}

func (m *MemoryStore) GetOrCreate(_ context.Context, examID, userID string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]string{examID, userID}
	if id, ok := m.byExamUser[key]; ok {
		return m.withViolations(m.assignments[id]), nil
	}
	a := Assignment{
		ID:         uuid.NewString(),
		ExamID:     examID,
		UserID:     userID,
		Status:     StatusAssigned,
		AssignedAt: nowUnix(),
	}
	m.assignments[a.ID] = a
	m.byExamUser[key] = a.ID
	return a, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return m.withViolations(a), nil
}

func (m *MemoryStore) GetByExamUser(_ context.Context, examID, userID string) (Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byExamUser[[2]string{examID, userID}]
	if !ok {
		return Assignment{}, ErrNotFound
	}
	return m.withViolations(m.assignments[id]), nil
}

func (m *MemoryStore) List(_ context.Context, opts ListOpts) ([]Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Assignment
	for _, a := range m.assignments {
		if opts.ExamID != "" && a.ExamID != opts.ExamID {
			continue
		}
		if opts.UserID != "" && a.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && string(a.Status) != opts.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssignedAt > out[j].AssignedAt })
	return out, nil
}

func (m *MemoryStore) Start(_ context.Context, id string, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != StatusAssigned {
		return false, nil
	}
	a.Status = StatusStarted
	a.StartedAt = &now
	m.assignments[id] = a
	return true, nil
}

func (m *MemoryStore) Submit(_ context.Context, id string, final Status, autoScore float64, score *float64, forced bool, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return false, ErrNotFound
	}
	if a.Status != StatusStarted {
		return false, nil
	}
	a.Status = final
	a.AutoScore = autoScore
	a.Score = score
	a.ForcedSubmission = forced
	a.SubmittedAt = &now
	m.assignments[id] = a
	return true, nil
}

func (m *MemoryStore) ForceReview(_ context.Context, id string, v Violation, autoScore float64, now int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return false, ErrNotFound
	}
	if !a.Status.IsActive() {
		return false, nil
	}
	a.Status = StatusPendingReview
	a.AutoScore = autoScore
	a.Score = nil
	a.ForcedSubmission = true
	a.SubmittedAt = &now
	m.assignments[id] = a

	m.vseq++
	v.ID = m.vseq
	v.AssignmentID = id
	v.ForcedSubmission = true
	v.CreatedAt = now
	m.violations[id] = append(m.violations[id], v)
	return true, nil
}

func (m *MemoryStore) SetGraded(_ context.Context, id string, score float64, notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[id]
	if !ok {
		return ErrNotFound
	}
	if !a.Status.IsCompleted() {
		return ErrInvalidState
	}
	a.Status = StatusGraded
	a.Score = &score
	a.TeacherNotes = notes
	m.assignments[id] = a
	return nil
}

func (m *MemoryStore) ListViolations(_ context.Context, assignmentID string) ([]Violation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.violations[assignmentID]
	out := make([]Violation, len(vs))
	copy(out, vs)
	return out, nil
}

func (m *MemoryStore) withViolations(a Assignment) Assignment {
	vs := m.violations[a.ID]
	a.Violations = make([]Violation, len(vs))
	copy(a.Violations, vs)
	return a
}

// --- AnswerStore ---

func (m *MemoryStore) Replace(_ context.Context, assignmentID, questionID string, rows []Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[assignmentID]
	if !ok {
		return ErrNotFound
	}
	if a.Status.IsCompleted() {
		return ErrInvalidState
	}
	byQ, ok := m.answers[assignmentID]
	if !ok {
		byQ = map[string][]Answer{}
		m.answers[assignmentID] = byQ
	}
	cp := make([]Answer, len(rows))
	copy(cp, rows)
	for i := range cp {
		if cp[i].ID == "" {
			cp[i].ID = uuid.NewString()
		}
		cp[i].AssignmentID = assignmentID
		cp[i].QuestionID = questionID
	}
	byQ[questionID] = cp
	return nil
}

func (m *MemoryStore) ListByAssignment(_ context.Context, assignmentID string) ([]Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Answer
	for _, rows := range m.answers[assignmentID] {
		out = append(out, rows...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ApplyCorrection(_ context.Context, assignmentID, questionID string, score float64, feedback string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.answers[assignmentID][questionID]
	for i := range rows {
		s, f := score, feedback
		rows[i].Score = &s
		rows[i].Feedback = &f
	}
	return len(rows), nil
}

func (m *MemoryStore) SumScores(_ context.Context, assignmentID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, rows := range m.answers[assignmentID] {
		best, seen := 0.0, false
		for _, r := range rows {
			if r.Score != nil && (!seen || *r.Score > best) {
				best, seen = *r.Score, true
			}
		}
		if seen {
			sum += best
		}
	}
	return sum, nil
}
