package grading

import (
	"github.com/invigilo/invigilo/internal/attempt"
	"github.com/invigilo/invigilo/internal/exam"
)

// Result is the outcome of scoring a single question.
type Result struct {
	Points      float64 // points awarded automatically
	MaxPoints   float64 // the question's max points
	NeedsManual bool    // true if teacher review is required
}

// Strategy scores one question from its recorded answer rows.
type Strategy interface {
	Score(q exam.Question, rows []attempt.Answer) Result
}

// AutoScorer routes by question type to the correct Strategy. Scoring is pure
// over the recorded answers: rescoring without new answers returns the same
// total, so recomputation after late edits is safe.
type AutoScorer struct {
	strategies map[exam.QuestionType]Strategy
}

func NewAutoScorer() *AutoScorer {
	return &AutoScorer{
		strategies: map[exam.QuestionType]Strategy{
			exam.QuestionOneChoice: singleChoiceStrategy{},
			exam.QuestionBoolean:   singleChoiceStrategy{},
			exam.QuestionMultiple:  multiChoiceStrategy{},
			exam.QuestionText:      textStrategy{},
		},
	}
}

// ScoreQuestion scores one question. Unanswered questions contribute 0.
func (s *AutoScorer) ScoreQuestion(q exam.Question, rows []attempt.Answer) Result {
	strat, ok := s.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true}
	}
	return strat.Score(q, rows)
}

// ScoreAttempt sums the objective score across the exam's questions.
func (s *AutoScorer) ScoreAttempt(ex exam.Exam, answers []attempt.Answer) float64 {
	byQuestion := map[string][]attempt.Answer{}
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}
	var total float64
	for _, q := range ex.Questions {
		total += s.ScoreQuestion(q, byQuestion[q.ID]).Points
	}
	return total
}

// --- Strategies ---

type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Score(q exam.Question, rows []attempt.Answer) Result {
	res := Result{MaxPoints: q.Points}
	if len(rows) != 1 || rows[0].ChoiceID == nil {
		return res
	}
	for _, id := range q.CorrectChoiceIDs() {
		if *rows[0].ChoiceID == id {
			res.Points = q.Points
			return res
		}
	}
	return res
}

type multiChoiceStrategy struct{}

// Full points only when the selected set equals the correct set exactly.
// Any missing or extra choice zeroes the question.
func (multiChoiceStrategy) Score(q exam.Question, rows []attempt.Answer) Result {
	res := Result{MaxPoints: q.Points}
	selected := map[string]struct{}{}
	for _, r := range rows {
		if r.ChoiceID != nil {
			selected[*r.ChoiceID] = struct{}{}
		}
	}
	correct := toSet(q.CorrectChoiceIDs())
	if len(correct) > 0 && setEqual(selected, correct) {
		res.Points = q.Points
	}
	return res
}

type textStrategy struct{}

func (textStrategy) Score(q exam.Question, _ []attempt.Answer) Result {
	return Result{MaxPoints: q.Points, NeedsManual: true}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
