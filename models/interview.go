package models

import (
	"errors"
	"math"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
)

const (
	SessionInProgress = "in_progress"
	SessionCompleted  = "completed"
	SessionAbandoned  = "abandoned"
)

const (
	// Answers longer than this many characters count towards the quality part of the score.
	QualityAnswerLength = 50
	// Sessions finished faster than this pass the time criterion.
	ReasonableDurationSec = 1800
)

var (
	ErrSessionNotActive = errors.New("interview session is not in progress")
	ErrUnknownQuestion  = errors.New("question does not belong to this session")
)

type Question struct {
	ID             string   `json:"id" yaml:"id"`
	Text           string   `json:"text" yaml:"text"`
	Category       string   `json:"category" yaml:"category"`
	ExpectedPoints []string `json:"expected_points" yaml:"expected_points"`
}

type Answer struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	TimeSpent  int    `json:"time_spent"`
}

type ChecklistItem struct {
	Criterion string `json:"criterion"`
	Passed    bool   `json:"passed"`
}

// Feedback is the overall AI assessment stored on a completed session.
type Feedback struct {
	Strengths         []string `json:"strengths"`
	Weaknesses        []string `json:"weaknesses"`
	Tips              []string `json:"tips"`
	OverallAssessment string   `json:"overall_assessment"`
	Recommendation    string   `json:"recommendation"`
}

// ReviewItem is per-question AI commentary.
type ReviewItem struct {
	QuestionID string  `json:"question_id"`
	Feedback   string  `json:"feedback"`
	Score      float64 `json:"score"`
}

type InterviewSession struct {
	ID             string                             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string                             `gorm:"type:uuid;not null;index" json:"user_id"`
	Topic          string                             `gorm:"size:50;not null" json:"topic"`
	Questions      datatypes.JSONSlice[Question]      `gorm:"type:jsonb;not null;default:'[]'" json:"questions"`
	Answers        datatypes.JSONSlice[Answer]        `gorm:"type:jsonb;not null;default:'[]'" json:"answers"`
	Status         string                             `gorm:"size:20;not null;default:'in_progress';index" json:"status"`
	StartedAt      time.Time                          `gorm:"not null;index" json:"started_at"`
	EndedAt        *time.Time                         `json:"ended_at"`
	DurationSec    *int                               `json:"duration_sec"`
	Score          *float64                           `gorm:"type:decimal(5,2)" json:"score"`
	Checklist      datatypes.JSONSlice[ChecklistItem] `gorm:"type:jsonb;not null;default:'[]'" json:"checklist"`
	AIFeedback     datatypes.JSONType[Feedback]       `gorm:"type:jsonb" json:"ai_feedback"`
	DetailedReview datatypes.JSONSlice[ReviewItem]    `gorm:"type:jsonb;not null;default:'[]'" json:"detailed_review"`
	CanRetake      bool                               `gorm:"not null;default:true" json:"can_retake"`
	RetakeOf       *string                            `gorm:"type:uuid" json:"retake_of,omitempty"`
	LastActivityAt time.Time                          `gorm:"not null" json:"-"`
	CreatedAt      time.Time                          `json:"-"`
	UpdatedAt      time.Time                          `json:"-"`
}

// NewInterviewSession starts an in-progress session over the given questions.
func NewInterviewSession(userID, topic string, questions []Question, now time.Time) *InterviewSession {
	return &InterviewSession{
		UserID:         userID,
		Topic:          topic,
		Questions:      append(datatypes.JSONSlice[Question]{}, questions...),
		Answers:        datatypes.JSONSlice[Answer]{},
		Status:         SessionInProgress,
		StartedAt:      now,
		Checklist:      datatypes.JSONSlice[ChecklistItem]{},
		DetailedReview: datatypes.JSONSlice[ReviewItem]{},
		CanRetake:      true,
		LastActivityAt: now,
	}
}

func (s *InterviewSession) Active() bool {
	return s.Status == SessionInProgress
}

func (s *InterviewSession) Question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// UpsertAnswer records an answer, replacing any previous answer to the same question.
func (s *InterviewSession) UpsertAnswer(a Answer, now time.Time) error {
	if !s.Active() {
		return ErrSessionNotActive
	}
	if _, ok := s.Question(a.QuestionID); !ok {
		return ErrUnknownQuestion
	}
	s.LastActivityAt = now
	for i := range s.Answers {
		if s.Answers[i].QuestionID == a.QuestionID {
			s.Answers[i].Text = a.Text
			s.Answers[i].TimeSpent = a.TimeSpent
			return nil
		}
	}
	s.Answers = append(s.Answers, a)
	return nil
}

// Evaluation is the rubric result for a finished session.
type Evaluation struct {
	Score     float64
	Checklist []ChecklistItem
}

// Evaluate scores answers against a question count. Completion is worth 70 points and
// answers longer than QualityAnswerLength share the remaining 30; the sum is capped at 100.
func Evaluate(totalQuestions int, answers []Answer, durationSec int) Evaluation {
	answered := len(answers)

	var base, quality float64
	if totalQuestions > 0 {
		base = float64(answered) / float64(totalQuestions) * 70
		for _, a := range answers {
			if utf8.RuneCountInString(a.Text) > QualityAnswerLength {
				quality += 30 / float64(totalQuestions)
			}
		}
	}

	score := math.Min(100, base+quality)
	return Evaluation{
		Score: math.Round(score*100) / 100,
		Checklist: []ChecklistItem{
			{Criterion: "All questions answered", Passed: answered == totalQuestions},
			{Criterion: "Average answer length > 50 chars", Passed: quality > 15},
			{Criterion: "Completed within reasonable time", Passed: durationSec < ReasonableDurationSec},
		},
	}
}

// Complete closes the session and stores its score and checklist.
func (s *InterviewSession) Complete(now time.Time) (Evaluation, error) {
	if !s.Active() {
		return Evaluation{}, ErrSessionNotActive
	}
	duration := int(now.Sub(s.StartedAt).Seconds())
	eval := Evaluate(len(s.Questions), s.Answers, duration)

	s.Status = SessionCompleted
	s.EndedAt = &now
	s.DurationSec = &duration
	s.Score = &eval.Score
	s.Checklist = eval.Checklist
	s.LastActivityAt = now
	return eval, nil
}

func (s *InterviewSession) Abandon(now time.Time) error {
	if !s.Active() {
		return ErrSessionNotActive
	}
	duration := int(now.Sub(s.StartedAt).Seconds())
	s.Status = SessionAbandoned
	s.EndedAt = &now
	s.DurationSec = &duration
	return nil
}

// Retake builds a fresh session over the same questions.
func (s *InterviewSession) Retake(now time.Time) *InterviewSession {
	next := NewInterviewSession(s.UserID, s.Topic, s.Questions, now)
	id := s.ID
	next.RetakeOf = &id
	return next
}

// FallbackFeedback is stored when no AI assessment could be produced.
func FallbackFeedback() Feedback {
	return Feedback{
		Strengths:         []string{"Completed the interview"},
		Weaknesses:        []string{"AI feedback not available"},
		Tips:              []string{"Practice explaining concepts with real-world examples"},
		OverallAssessment: "Unable to generate detailed feedback at this time.",
		Recommendation:    "Please try again or contact support.",
	}
}
