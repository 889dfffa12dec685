package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/careerhub/backend/models"
)

// FallbackHint is returned when no hint could be generated.
const FallbackHint = "Consider the key concepts related to this topic. Break down the question into smaller parts."

// Assistant turns domain objects into prompts and model replies back into domain values.
// A nil model makes every call fail with ErrNoModel.
type Assistant struct {
	model ChatModel
}

func NewAssistant(model ChatModel) *Assistant {
	return &Assistant{model: model}
}

func (a *Assistant) Enabled() bool {
	return a != nil && a.model != nil
}

func (a *Assistant) ask(ctx context.Context, system, user string) (string, error) {
	if !a.Enabled() {
		return "", ErrNoModel
	}
	return a.model.Ask(ctx, system, user)
}

// Ask forwards a raw prompt.
func (a *Assistant) Ask(ctx context.Context, prompt string) (string, error) {
	return a.ask(ctx, "", prompt)
}

const feedbackSystemPrompt = `You are a senior technical interviewer reviewing a practice interview.
Reply with a single JSON object and nothing else, using this shape:
{"overall": {"strengths": [string], "weaknesses": [string], "tips": [string],
 "overall_assessment": string, "recommendation": string},
 "detailed_review": [{"question_id": string, "feedback": string, "score": number 0-10}]}`

type feedbackReply struct {
	Overall        models.Feedback     `json:"overall"`
	DetailedReview []models.ReviewItem `json:"detailed_review"`
}

type transcriptItem struct {
	QuestionID     string   `json:"question_id"`
	Question       string   `json:"question"`
	ExpectedPoints []string `json:"expected_points"`
	Answer         string   `json:"answer"`
	TimeSpent      int      `json:"time_spent"`
}

// InterviewFeedback asks the model to review a completed session.
func (a *Assistant) InterviewFeedback(ctx context.Context, s *models.InterviewSession) (models.Feedback, []models.ReviewItem, error) {
	answers := make(map[string]models.Answer, len(s.Answers))
	for _, ans := range s.Answers {
		answers[ans.QuestionID] = ans
	}
	items := make([]transcriptItem, 0, len(s.Questions))
	for _, q := range s.Questions {
		ans := answers[q.ID]
		items = append(items, transcriptItem{
			QuestionID:     q.ID,
			Question:       q.Text,
			ExpectedPoints: q.ExpectedPoints,
			Answer:         ans.Text,
			TimeSpent:      ans.TimeSpent,
		})
	}
	payload, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return models.Feedback{}, nil, err
	}

	prompt := fmt.Sprintf("Interview topic: %s\nQuestions and answers:\n%s", s.Topic, payload)
	reply, err := a.ask(ctx, feedbackSystemPrompt, prompt)
	if err != nil {
		return models.Feedback{}, nil, err
	}

	var out feedbackReply
	if err := ExtractJSON(reply, &out); err != nil {
		return models.Feedback{}, nil, err
	}
	if out.Overall.OverallAssessment == "" && len(out.Overall.Strengths) == 0 {
		return models.Feedback{}, nil, ErrNoJSON
	}
	if out.DetailedReview == nil {
		out.DetailedReview = []models.ReviewItem{}
	}
	return out.Overall, out.DetailedReview, nil
}

const hintSystemPrompt = `You are a supportive interview coach. Give one short hint (two sentences at most)
that nudges the candidate toward a complete answer without giving the answer away.`

// Hint suggests a nudge for a question given the candidate's draft.
func (a *Assistant) Hint(ctx context.Context, q models.Question, currentAnswer string) (string, error) {
	prompt := fmt.Sprintf("Question: %s\nCandidate's current answer: %s", q.Text, currentAnswer)
	if strings.TrimSpace(currentAnswer) == "" {
		prompt = fmt.Sprintf("Question: %s\nThe candidate has not started answering yet.", q.Text)
	}
	reply, err := a.ask(ctx, hintSystemPrompt, prompt)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty hint")
	}
	return reply, nil
}
