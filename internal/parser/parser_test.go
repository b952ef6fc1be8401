package parser

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/tutorpipe/internal/domain"
)

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n[1, 2]\n```": "[1, 2]",
		"```\n{\"a\":1}\n```":  `{"a":1}`,
		"  {\"a\":1}  ":        `{"a":1}`,
		"```JSON\n{}\n```\n\n": "{}",
		"```json [true]```":    "[true]",
		"```[1,2]\n```":        "[1,2]",
		"no fences here":       "no fences here",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripFences(in), "input %q", in)
	}
}

func TestParseRoundTrip(t *testing.T) {
	want := map[string]any{
		"feedback_text": "Nice work",
		"score":         float64(87),
		"strengths":     []any{"clear reasoning", "good vocabulary"},
		"nested":        map[string]any{"flag": true, "none": nil},
	}
	body, err := json.MarshalIndent(want, "", "  ")
	require.NoError(t, err)

	got, err := Parse("```json\n" + string(body) + "\n```")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseIntoTypedRoundTrip(t *testing.T) {
	want := domain.LearningPath{
		Immediate: []string{"light reactions"},
		Future:    []string{"Calvin cycle"},
		Resources: []string{"chapter 4"},
	}
	body, err := json.Marshal(want)
	require.NoError(t, err)

	var got domain.LearningPath
	require.NoError(t, ParseInto("```\n"+string(body)+"\n```", &got))
	assert.Equal(t, want, got)
}

func TestParseFailures(t *testing.T) {
	for _, in := range []string{
		"",
		"```json\n```",
		"Here is your feedback: great job",
		`{"a": 1} trailing words`,
		`{"a": 1`,
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrParse, "input %q", in)
	}
}

func TestDecodeQuestionsArray(t *testing.T) {
	raw := "```json\n" + `[
	  {"question_text": "What absorbs light?", "question_type": "mcq",
	   "options": ["Chlorophyll", "Water", "Oxygen", "Glucose"],
	   "correct_answer": "Chlorophyll", "explanation": "Pigment", "difficulty_level": 2, "points": 3},
	  {"question_text": "Explain the light reactions.", "question_type": "open",
	   "options": ["ignored"], "correct_answer": "ATP and NADPH are produced"},
	  {"question_text": "Where do light reactions occur?",
	   "options": ["Stroma", "Thylakoid membrane"], "correct_answer": "B"}
	]` + "\n```"

	qs, err := DecodeQuestions(raw, QuestionDefaults{Type: domain.QuestionMCQ, Difficulty: 3})
	require.NoError(t, err)
	require.Len(t, qs, 3)

	assert.Equal(t, domain.QuestionMCQ, qs[0].QuestionType)
	assert.Equal(t, 2, qs[0].DifficultyLevel)
	assert.Equal(t, 3, qs[0].Points)

	assert.Equal(t, domain.QuestionOpen, qs[1].QuestionType)
	assert.Nil(t, qs[1].Options)
	assert.Equal(t, 3, qs[1].DifficultyLevel)
	assert.Equal(t, 1, qs[1].Points)

	assert.Equal(t, domain.QuestionMCQ, qs[2].QuestionType)
	assert.Equal(t, "Thylakoid membrane", qs[2].CorrectAnswer)
}

func TestDecodeQuestionsSingleObject(t *testing.T) {
	raw := `{"question_text": "2+2?", "options": ["3", "4"], "correct_answer": "4"}`
	qs, err := DecodeQuestions(raw, QuestionDefaults{Type: domain.QuestionMCQ, Difficulty: 1})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "4", qs[0].CorrectAnswer)
}

func TestDecodeQuestionsRejectsMalformed(t *testing.T) {
	def := QuestionDefaults{Type: domain.QuestionMCQ, Difficulty: 3}
	for name, raw := range map[string]string{
		"not json":          "Sure! Here are three questions...",
		"empty array":       "[]",
		"scalar":            "42",
		"missing text":      `[{"options": ["a", "b"], "correct_answer": "a"}]`,
		"missing answer":    `[{"question_text": "q", "options": ["a", "b"]}]`,
		"mcq one option":    `[{"question_text": "q", "options": ["a"], "correct_answer": "a"}]`,
		"answer not option": `[{"question_text": "q", "options": ["a", "b"], "correct_answer": "zebra"}]`,
		"object options":    `[{"question_text": "q", "options": [{"id": 1}], "correct_answer": "a"}]`,
		"unknown type":      `[{"question_text": "q", "question_type": "matching", "correct_answer": "a"}]`,
		"numeric answer":    `[{"question_text": "q", "question_type": "open", "correct_answer": 4}]`,
	} {
		_, err := DecodeQuestions(raw, def)
		assert.ErrorIs(t, err, ErrParse, name)
	}
}

func TestDecodeFeedback(t *testing.T) {
	raw := "```json\n" + `{
	  "feedback_text": "Correct, well reasoned.",
	  "score": 92,
	  "strengths": ["precise"],
	  "improvements": [],
	  "next_steps": ["try harder questions"],
	  "learning_path_recommendations": {"immediate": ["Calvin cycle"], "future": [], "resources": ["textbook"]}
	}` + "\n```"

	fb, err := DecodeFeedback(raw)
	require.NoError(t, err)
	assert.Equal(t, 92.0, fb.Score)
	assert.Equal(t, []string{"precise"}, fb.Strengths)
	assert.Equal(t, []string{}, fb.Improvements)
	assert.Equal(t, []string{"Calvin cycle"}, fb.LearningPathRecommendations.Immediate)
}

func TestDecodeFeedbackDefaultsMissingLists(t *testing.T) {
	fb, err := DecodeFeedback(`{"feedback_text": "ok", "score": 70}`)
	require.NoError(t, err)
	assert.Equal(t, []string{}, fb.Strengths)
	assert.Equal(t, []string{}, fb.LearningPathRecommendations.Resources)
}

func TestDecodeFeedbackRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"prose":         "Great answer! You got it right.",
		"missing score": `{"feedback_text": "ok"}`,
		"score too big": `{"feedback_text": "ok", "score": 150}`,
		"negative":      `{"feedback_text": "ok", "score": -1}`,
		"string score":  `{"feedback_text": "ok", "score": "85"}`,
		"empty text":    `{"feedback_text": "  ", "score": 50}`,
		"array":         `[{"feedback_text": "ok", "score": 50}]`,
	} {
		_, err := DecodeFeedback(raw)
		assert.ErrorIs(t, err, ErrParse, name)
	}
}
