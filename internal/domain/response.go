package domain

import (
	"time"

	"github.com/ashureev/tutorpipe/internal/adaptive"
)

// UserResponse is one submitted answer.
type UserResponse struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"question_id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Answer      string    `json:"answer"`
	IsCorrect   bool      `json:"is_correct"`
	TimeSpent   int       `json:"time_spent"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LearningPath is the structured recommendation attached to feedback.
type LearningPath struct {
	Immediate []string `json:"immediate"`
	Future    []string `json:"future"`
	Resources []string `json:"resources"`
}

// Feedback is the evaluation of one response. One record is written per
// evaluation-stage run.
type Feedback struct {
	ID                          string       `json:"id"`
	ResponseID                  string       `json:"response_id"`
	UserID                      string       `json:"user_id"`
	AgentType                   StageTag     `json:"agent_type"`
	FeedbackText                string       `json:"feedback_text"`
	Score                       float64      `json:"score"`
	Strengths                   []string     `json:"strengths"`
	Improvements                []string     `json:"improvements"`
	NextSteps                   []string     `json:"next_steps"`
	LearningPathRecommendations LearningPath `json:"learning_path_recommendations"`
	Fallback                    bool         `json:"fallback"`
	CreatedAt                   time.Time    `json:"created_at"`
}

// NeedsRemediation returns true when the score would steer the next batch
// towards easier questions.
func (f *Feedback) NeedsRemediation() bool {
	return f.Score < adaptive.RemediationThreshold
}

// History aggregates a principal's earlier responses in a session.
type History struct {
	CorrectCount int
	PriorCount   int
	TotalTime    int
}

// Add folds one prior response into the history.
func (h *History) Add(r *UserResponse) {
	h.PriorCount++
	h.TotalTime += r.TimeSpent
	if r.IsCorrect {
		h.CorrectCount++
	}
}

// Performance is the running snapshot sent back with feedback.
type Performance struct {
	Score       float64 `json:"score"`
	Accuracy    float64 `json:"accuracy"`
	AverageTime float64 `json:"averageTime"`
}
