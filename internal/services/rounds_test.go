package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionSet(t *testing.T) {
	content := "Both of you make strong points about scheduling.\n\n" +
		"```json\n" +
		`{"questions": [{"id": "q1", "text": "Which constraint binds hardest?", "options": [{"id": "a", "text": "Time"}, {"id": "b", "text": "Budget"}]}]}` +
		"\n```\n" +
		"Let me know what you think."

	qs := ParseQuestionSet(content)
	require.NotNil(t, qs)
	require.Len(t, qs.Questions, 1)
	assert.Equal(t, "q1", qs.Questions[0].ID)
	assert.Equal(t, "Which constraint binds hardest?", qs.Questions[0].Text)
	require.Len(t, qs.Questions[0].Options, 2)
	assert.Equal(t, "Budget", qs.Questions[0].Options[1].Text)
}

func TestParseQuestionSetNoBlock(t *testing.T) {
	assert.Nil(t, ParseQuestionSet("Just prose, no questions here."))
	assert.Nil(t, ParseQuestionSet(""))
}

func TestParseQuestionSetMalformedJSON(t *testing.T) {
	assert.Nil(t, ParseQuestionSet("```json\n{not valid json\n```"))
}

func TestParseQuestionSetUnterminatedFence(t *testing.T) {
	assert.Nil(t, ParseQuestionSet("```json\n{\"questions\": []}"))
}

func TestParseQuestionSetEmptyQuestions(t *testing.T) {
	assert.Nil(t, ParseQuestionSet("```json\n{\"questions\": []}\n```"))
}
