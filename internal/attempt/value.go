package attempt

import (
	"encoding/json"
	"fmt"

	"github.com/invigilo/invigilo/internal/exam"
)

// AnswerKind tags the shape of a submitted answer value.
type AnswerKind int

const (
	KindChoice  AnswerKind = iota // single choice ID
	KindChoices                   // list of choice IDs
	KindText                      // free text
)

// AnswerValue is the tagged union a client payload is decoded into before it
// reaches the recorder. The kind must match the question type.
type AnswerValue struct {
	Kind      AnswerKind
	ChoiceID  string
	ChoiceIDs []string
	Text      string
}

func ChoiceAnswer(id string) AnswerValue { return AnswerValue{Kind: KindChoice, ChoiceID: id} }
func ChoicesAnswer(ids []string) AnswerValue {
	return AnswerValue{Kind: KindChoices, ChoiceIDs: ids}
}
func TextAnswer(s string) AnswerValue { return AnswerValue{Kind: KindText, Text: s} }

// ParseAnswerValue decodes a raw JSON answer according to the question type:
// a string choice ID for one_choice/boolean, a string array for multiple, a
// string for text.
func ParseAnswerValue(qt exam.QuestionType, raw json.RawMessage) (AnswerValue, error) {
	switch qt {
	case exam.QuestionOneChoice, exam.QuestionBoolean:
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return AnswerValue{}, fmt.Errorf("%s answer must be a choice id string: %w", qt, err)
		}
		return ChoiceAnswer(id), nil
	case exam.QuestionMultiple:
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil {
			return AnswerValue{}, fmt.Errorf("multiple answer must be an array of choice ids: %w", err)
		}
		return ChoicesAnswer(ids), nil
	case exam.QuestionText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return AnswerValue{}, fmt.Errorf("text answer must be a string: %w", err)
		}
		return TextAnswer(s), nil
	}
	return AnswerValue{}, fmt.Errorf("unknown question type %q", qt)
}

// ParseAnswerMap decodes a raw payload keyed by question ID. Question IDs
// not belonging to the exam are dropped so stale client payloads do not fail
// the whole batch; malformed values for known questions are an error.
func ParseAnswerMap(ex exam.Exam, raw map[string]json.RawMessage) (map[string]AnswerValue, error) {
	out := make(map[string]AnswerValue, len(raw))
	for qid, rv := range raw {
		q, ok := ex.QuestionByID(qid)
		if !ok {
			continue
		}
		v, err := ParseAnswerValue(q.Type, rv)
		if err != nil {
			return nil, fmt.Errorf("question %s: %w", qid, err)
		}
		out[qid] = v
	}
	return out, nil
}
