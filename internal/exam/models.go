package exam

import "time"

// QuestionType selects how a question is answered and scored.
type QuestionType string

const (
	QuestionText      QuestionType = "text"
	QuestionOneChoice QuestionType = "one_choice"
	QuestionMultiple  QuestionType = "multiple"
	QuestionBoolean   QuestionType = "boolean"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionOneChoice, QuestionMultiple, QuestionBoolean:
		return true
	}
	return false
}

// Objective reports whether the type is auto-gradable. Text answers always
// wait for a teacher.
func (t QuestionType) Objective() bool { return t != QuestionText }

type Choice struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id,omitempty"`
	Content    string `json:"content"`
	IsCorrect  bool   `json:"is_correct,omitempty"`
	Position   int    `json:"position"`
}

type Question struct {
	ID       string       `json:"id"`
	ExamID   string       `json:"exam_id,omitempty"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt"`
	Points   float64      `json:"points"`
	Position int          `json:"position"`
	Choices  []Choice     `json:"choices,omitempty"`
}

// CorrectChoiceIDs returns the answer key for objective questions.
func (q Question) CorrectChoiceIDs() []string {
	var out []string
	for _, c := range q.Choices {
		if c.IsCorrect {
			out = append(out, c.ID)
		}
	}
	return out
}

type Exam struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	DurationMin int        `json:"duration_min"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	IsActive    bool       `json:"is_active"`
	TeacherID   string     `json:"teacher_id"`
	Questions   []Question `json:"questions,omitempty"`
	CreatedAt   int64      `json:"created_at,omitempty"`
}

// QuestionByID resolves a question belonging to this exam. The second return
// is false for IDs from other exams or stale client payloads.
func (e Exam) QuestionByID(id string) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// HasTextQuestions reports whether any answer needs manual grading before a
// final score exists.
func (e Exam) HasTextQuestions() bool {
	for _, q := range e.Questions {
		if q.Type == QuestionText {
			return true
		}
	}
	return false
}

// MaxScore is the sum of points across all questions.
func (e Exam) MaxScore() float64 {
	var sum float64
	for _, q := range e.Questions {
		sum += q.Points
	}
	return sum
}
