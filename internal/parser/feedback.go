package parser

import (
	"fmt"
	"strings"

	"github.com/ashureev/tutorpipe/internal/domain"
)

type rawFeedback struct {
	FeedbackText string               `json:"feedback_text"`
	Score        *float64             `json:"score"`
	Strengths    []string             `json:"strengths"`
	Improvements []string             `json:"improvements"`
	NextSteps    []string             `json:"next_steps"`
	LearningPath *domain.LearningPath `json:"learning_path_recommendations"`
}

// DecodeFeedback decodes a generated evaluation object. The text must be
// non-empty and the score present and within [0,100]. Missing lists decode as
// empty. Only the content fields of the returned feedback are set.
func DecodeFeedback(raw string) (domain.Feedback, error) {
	var rf rawFeedback
	if err := ParseInto(raw, &rf); err != nil {
		return domain.Feedback{}, err
	}

	text := strings.TrimSpace(rf.FeedbackText)
	if text == "" {
		return domain.Feedback{}, fmt.Errorf("%w: missing feedback_text", ErrParse)
	}
	if rf.Score == nil {
		return domain.Feedback{}, fmt.Errorf("%w: missing score", ErrParse)
	}
	if *rf.Score < 0 || *rf.Score > 100 {
		return domain.Feedback{}, fmt.Errorf("%w: score %v out of range", ErrParse, *rf.Score)
	}

	fb := domain.Feedback{
		FeedbackText: text,
		Score:        *rf.Score,
		Strengths:    nonNil(rf.Strengths),
		Improvements: nonNil(rf.Improvements),
		NextSteps:    nonNil(rf.NextSteps),
	}
	if rf.LearningPath != nil {
		fb.LearningPathRecommendations = *rf.LearningPath
	}
	fb.LearningPathRecommendations.Immediate = nonNil(fb.LearningPathRecommendations.Immediate)
	fb.LearningPathRecommendations.Future = nonNil(fb.LearningPathRecommendations.Future)
	fb.LearningPathRecommendations.Resources = nonNil(fb.LearningPathRecommendations.Resources)
	return fb, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
