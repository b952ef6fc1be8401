package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/ashureev/tutorpipe/internal/domain"
)

// QuestionDefaults fills fields a generated question may omit.
type QuestionDefaults struct {
	Type       domain.QuestionType
	Difficulty int
	Points     int
}

type rawQuestion struct {
	QuestionText    string          `json:"question_text"`
	QuestionType    string          `json:"question_type"`
	Options         json.RawMessage `json:"options"`
	CorrectAnswer   any             `json:"correct_answer"`
	Explanation     string          `json:"explanation"`
	DifficultyLevel *float64        `json:"difficulty_level"`
	Points          *float64        `json:"points"`
}

// DecodeQuestions decodes a generated question batch. A single object is
// treated as a batch of one. Every item must carry text and a correct answer;
// mcq items must carry at least two string options, open items carry none.
// Only the content fields of the returned questions are set.
func DecodeQuestions(raw string, def QuestionDefaults) ([]domain.Question, error) {
	items, err := rawArray(raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no questions in response", ErrParse)
	}
	if def.Points <= 0 {
		def.Points = 1
	}

	out := make([]domain.Question, 0, len(items))
	for i, item := range items {
		var rq rawQuestion
		if err := json.Unmarshal(item, &rq); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrParse, i, err)
		}
		q, err := rq.toQuestion(def)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrParse, i, err)
		}
		out = append(out, q)
	}
	return out, nil
}

func (rq rawQuestion) toQuestion(def QuestionDefaults) (domain.Question, error) {
	q := domain.Question{
		QuestionText:    strings.TrimSpace(rq.QuestionText),
		Explanation:     strings.TrimSpace(rq.Explanation),
		DifficultyLevel: def.Difficulty,
		Points:          def.Points,
	}
	if q.QuestionText == "" {
		return q, fmt.Errorf("missing question_text")
	}

	q.QuestionType = def.Type
	if rq.QuestionType != "" {
		qt, ok := domain.ParseQuestionType(rq.QuestionType)
		if !ok {
			return q, fmt.Errorf("unknown question_type %q", rq.QuestionType)
		}
		q.QuestionType = qt
	}
	if q.QuestionType == "" {
		q.QuestionType = domain.QuestionMCQ
	}

	answer, err := answerString(rq.CorrectAnswer)
	if err != nil {
		return q, err
	}

	if q.QuestionType == domain.QuestionMCQ {
		opts, err := decodeOptions(rq.Options)
		if err != nil {
			return q, err
		}
		if len(opts) < 2 {
			return q, fmt.Errorf("mcq needs at least two options, got %d", len(opts))
		}
		q.Options = opts
		answer, err = matchOption(answer, opts)
		if err != nil {
			return q, err
		}
	}
	q.CorrectAnswer = answer

	if rq.DifficultyLevel != nil && *rq.DifficultyLevel > 0 {
		q.DifficultyLevel = clamp(int(math.Round(*rq.DifficultyLevel)), 1, 5)
	}
	if rq.Points != nil && *rq.Points > 0 {
		q.Points = int(math.Round(*rq.Points))
		if q.Points == 0 {
			q.Points = 1
		}
	}
	return q, nil
}

func answerString(v any) (string, error) {
	switch a := v.(type) {
	case string:
		if s := strings.TrimSpace(a); s != "" {
			return s, nil
		}
	case nil:
	default:
		return "", fmt.Errorf("correct_answer must be a string, got %T", v)
	}
	return "", fmt.Errorf("missing correct_answer")
}

func decodeOptions(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("options must be a list of strings: %v", err)
	}
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out, nil
}

// matchOption resolves an mcq answer to one of the option texts. The answer
// must equal an option, or be a letter label ("B", "b)", "C.") pointing at one.
func matchOption(answer string, opts []string) (string, error) {
	for _, o := range opts {
		if o == answer {
			return answer, nil
		}
	}
	label := strings.TrimRight(strings.TrimSpace(answer), ").:")
	if len(label) == 1 {
		idx := int(strings.ToUpper(label)[0]) - 'A'
		if idx >= 0 && idx < len(opts) {
			return opts[idx], nil
		}
	}
	return "", fmt.Errorf("correct_answer %q is not one of the options", answer)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
