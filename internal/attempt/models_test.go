package attempt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invigilo/invigilo/internal/exam"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusAssigned, StatusStarted, true},
		{StatusAssigned, StatusPendingReview, true},
		{StatusAssigned, StatusSubmitted, false},
		{StatusAssigned, StatusGraded, false},
		{StatusStarted, StatusSubmitted, true},
		{StatusStarted, StatusPendingReview, true},
		{StatusStarted, StatusAssigned, false},
		{StatusSubmitted, StatusGraded, true},
		{StatusSubmitted, StatusStarted, false},
		{StatusPendingReview, StatusGraded, true},
		{StatusPendingReview, StatusSubmitted, false},
		{StatusGraded, StatusGraded, true},
		{StatusGraded, StatusStarted, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusAssigned.IsActive())
	assert.True(t, StatusStarted.IsActive())
	assert.False(t, StatusSubmitted.IsActive())

	assert.True(t, StatusSubmitted.IsCompleted())
	assert.True(t, StatusPendingReview.IsCompleted())
	assert.True(t, StatusGraded.IsCompleted())
	assert.False(t, StatusStarted.IsCompleted())
}

func TestParseAnswerValue(t *testing.T) {
	v, err := ParseAnswerValue(exam.QuestionOneChoice, json.RawMessage(`"c1"`))
	require.NoError(t, err)
	assert.Equal(t, ChoiceAnswer("c1"), v)

	v, err = ParseAnswerValue(exam.QuestionBoolean, json.RawMessage(`"true_choice"`))
	require.NoError(t, err)
	assert.Equal(t, KindChoice, v.Kind)

	v, err = ParseAnswerValue(exam.QuestionMultiple, json.RawMessage(`["a","b"]`))
	require.NoError(t, err)
	assert.Equal(t, ChoicesAnswer([]string{"a", "b"}), v)

	v, err = ParseAnswerValue(exam.QuestionText, json.RawMessage(`"free text"`))
	require.NoError(t, err)
	assert.Equal(t, TextAnswer("free text"), v)
}

func TestParseAnswerValue_ShapeMismatch(t *testing.T) {
	_, err := ParseAnswerValue(exam.QuestionOneChoice, json.RawMessage(`["a"]`))
	assert.Error(t, err)

	_, err = ParseAnswerValue(exam.QuestionMultiple, json.RawMessage(`"a"`))
	assert.Error(t, err)

	_, err = ParseAnswerValue(exam.QuestionText, json.RawMessage(`42`))
	assert.Error(t, err)

	_, err = ParseAnswerValue(exam.QuestionType("riddle"), json.RawMessage(`"x"`))
	assert.Error(t, err)
}

func TestParseAnswerMap_DropsUnknownQuestions(t *testing.T) {
	ex := exam.Exam{Questions: []exam.Question{
		{ID: "q1", Type: exam.QuestionOneChoice},
		{ID: "q2", Type: exam.QuestionText},
	}}
	got, err := ParseAnswerMap(ex, map[string]json.RawMessage{
		"q1":   json.RawMessage(`"c1"`),
		"q2":   json.RawMessage(`"hello"`),
		"gone": json.RawMessage(`{"not": "even valid"}`),
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, ChoiceAnswer("c1"), got["q1"])
	assert.Equal(t, TextAnswer("hello"), got["q2"])
}

func TestParseAnswerMap_MalformedKnownQuestionFails(t *testing.T) {
	ex := exam.Exam{Questions: []exam.Question{{ID: "q1", Type: exam.QuestionMultiple}}}
	_, err := ParseAnswerMap(ex, map[string]json.RawMessage{"q1": json.RawMessage(`"not-an-array"`)})
	assert.Error(t, err)
}
