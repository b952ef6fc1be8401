package stage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ashureev/tutorpipe/internal/domain"
)

const (
	defaultSessionTitle = "Learning Session"
	defaultContentGoal  = "General understanding"
	defaultSessionGoal  = "General learning"
)

func joinOr(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}

func contentPrompt(topic string, objectives []string, difficulty int, contentType string) string {
	return fmt.Sprintf(`As an expert educational content creator, generate personalized learning material for the following:

Topic: %s
Learning Objectives: %s
Difficulty Level: %d/5
Content Type: %s

Please create comprehensive, engaging content that:
1. Clearly explains the core concepts
2. Uses real-world examples and analogies
3. Is appropriate for difficulty level %d
4. Includes interactive elements or thought-provoking questions
5. Follows best educational practices

Format the response as structured educational content with clear sections.`,
		topic, joinOr(objectives, defaultContentGoal), difficulty, contentType, difficulty)
}

func questionTypeLabel(t domain.QuestionType) string {
	if t == domain.QuestionOpen {
		return "open-ended"
	}
	return "multiple choice"
}

func assessmentPrompt(req AssessmentRequest, contentText string, session sessionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "As an expert educational assessment creator, generate exactly %d high-quality %s questions based on the following learning content:\n\n",
		req.NumberOfQuestions, questionTypeLabel(req.QuestionType))
	if contentText != "" {
		fmt.Fprintf(&b, "CONTENT TO ASSESS:\n%s\n\n", contentText)
	}

	options := "Array of 4 answer choices"
	if req.QuestionType == domain.QuestionOpen {
		options = "null"
	}
	fmt.Fprintf(&b, `SESSION CONTEXT:
- Title: %s
- Objectives: %s
- Difficulty Level: %d/5
- Question Type: %s

REQUIREMENTS:
1. Create questions that test understanding, not just memorization
2. Ensure questions are appropriate for difficulty level %d
3. Include clear, unambiguous correct answers
4. For MCQ: Provide 4 options with plausible distractors; correct_answer must be the exact text of one option
5. For open-ended questions: Provide clear evaluation criteria in the explanation
6. Include explanations for correct answers

Format each question as a JSON object with these fields:
- question_text: The question
- question_type: "%s"
- options: %s
- correct_answer: The correct answer
- explanation: Why this is correct
- difficulty_level: %d
- points: Suggested point value

Return ONLY a JSON array of %d question objects, no additional text.`,
		session.title, joinOr(session.objectives, defaultSessionGoal), req.DifficultyLevel, req.QuestionType,
		req.DifficultyLevel, req.QuestionType, options, req.DifficultyLevel, req.NumberOfQuestions)
	return b.String()
}

func evaluationPrompt(q *domain.Question, r *domain.UserResponse, session sessionContext, h domain.History, averageTime float64) string {
	correct := "No"
	if r.IsCorrect {
		correct = "Yes"
	}
	var options string
	if len(q.Options) > 0 {
		encoded, _ := json.Marshal(q.Options)
		options = "ANSWER OPTIONS: " + string(encoded) + "\n"
	}

	return fmt.Sprintf(`As an expert educational feedback specialist, provide comprehensive, personalized feedback for the following student response:

QUESTION: %s
QUESTION TYPE: %s
CORRECT ANSWER: %s
STUDENT ANSWER: %s
IS CORRECT: %s
TIME SPENT: %d seconds
DIFFICULTY LEVEL: %d/5

LEARNING CONTEXT:
- Session: %s
- Objectives: %s
- Student Performance: %d/%d correct answers
- Average Response Time: %.0f seconds

%s
Please provide detailed feedback that includes:

1. IMMEDIATE FEEDBACK: Whether the answer is correct/incorrect with brief explanation
2. DETAILED ANALYSIS: Why the answer is right/wrong, addressing misconceptions
3. STRENGTHS: What the student did well (even if incorrect)
4. AREAS FOR IMPROVEMENT: Specific areas to focus on
5. NEXT STEPS: Concrete actions for improvement
6. LEARNING PATH RECOMMENDATIONS: Suggested topics/resources for further study

FORMAT: Return a JSON object with these exact fields:
{
  "feedback_text": "Main feedback paragraph",
  "score": number (0-100),
  "strengths": ["strength1", "strength2"],
  "improvements": ["improvement1", "improvement2"],
  "next_steps": ["step1", "step2"],
  "learning_path_recommendations": {
    "immediate": ["topic1", "topic2"],
    "future": ["advanced_topic1", "advanced_topic2"],
    "resources": ["resource1", "resource2"]
  }
}

Make feedback constructive, encouraging, and actionable. Adapt tone to student's performance level.`,
		q.QuestionText, q.QuestionType, q.CorrectAnswer, r.Answer, correct, r.TimeSpent, q.DifficultyLevel,
		session.title, joinOr(session.objectives, defaultSessionGoal),
		h.CorrectCount, h.PriorCount+1, averageTime, options)
}
