package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoQuestions() []Question {
	return []Question{
		{ID: "q1", Text: "First?", Category: "General"},
		{ID: "q2", Text: "Second?", Category: "General"},
	}
}

func TestEvaluate(t *testing.T) {
	long := strings.Repeat("a", 60)
	short := "too short"

	tests := []struct {
		name      string
		total     int
		answers   []Answer
		duration  int
		wantScore float64
		wantPass  []bool
	}{
		{
			name:      "all answered with long answers",
			total:     2,
			answers:   []Answer{{QuestionID: "q1", Text: long}, {QuestionID: "q2", Text: long}},
			duration:  600,
			wantScore: 100,
			wantPass:  []bool{true, true, true},
		},
		{
			name:      "length counts characters not bytes",
			total:     2,
			answers:   []Answer{{QuestionID: "q1", Text: strings.Repeat("я", 30)}, {QuestionID: "q2", Text: strings.Repeat("я", 30)}},
			duration:  100,
			wantScore: 70,
			wantPass:  []bool{true, false, true},
		},
		{
			name:      "long cyrillic answers",
			total:     2,
			answers:   []Answer{{QuestionID: "q1", Text: strings.Repeat("я", 51)}, {QuestionID: "q2", Text: strings.Repeat("я", 51)}},
			duration:  100,
			wantScore: 100,
			wantPass:  []bool{true, true, true},
		},
		{
			name:      "all answered but short",
			total:     2,
			answers:   []Answer{{QuestionID: "q1", Text: short}, {QuestionID: "q2", Text: short}},
			duration:  600,
			wantScore: 70,
			wantPass:  []bool{true, false, true},
		},
		{
			name:      "half answered with one long answer",
			total:     2,
			answers:   []Answer{{QuestionID: "q1", Text: long}},
			duration:  600,
			wantScore: 50,
			wantPass:  []bool{false, false, true},
		},
		{
			name:      "exactly fifty chars is not quality",
			total:     1,
			answers:   []Answer{{QuestionID: "q1", Text: strings.Repeat("b", 50)}},
			duration:  10,
			wantScore: 70,
			wantPass:  []bool{true, false, true},
		},
		{
			name:      "slow session",
			total:     1,
			answers:   []Answer{{QuestionID: "q1", Text: long}},
			duration:  1800,
			wantScore: 100,
			wantPass:  []bool{true, true, false},
		},
		{
			name:      "no questions",
			total:     0,
			answers:   nil,
			duration:  0,
			wantScore: 0,
			wantPass:  []bool{true, false, true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := Evaluate(tt.total, tt.answers, tt.duration)
			assert.InDelta(t, tt.wantScore, eval.Score, 0.001)
			require.Len(t, eval.Checklist, 3)
			for i, want := range tt.wantPass {
				assert.Equal(t, want, eval.Checklist[i].Passed, eval.Checklist[i].Criterion)
			}
		})
	}
}

func TestEvaluateNeverExceedsHundred(t *testing.T) {
	long := strings.Repeat("x", 80)
	answers := []Answer{
		{QuestionID: "q1", Text: long},
		{QuestionID: "q2", Text: long},
		{QuestionID: "q3", Text: long},
	}
	eval := Evaluate(2, answers, 0)
	assert.Equal(t, 100.0, eval.Score)
}

func TestUpsertAnswer(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewInterviewSession("u1", "frontend-basics", twoQuestions(), now)

	require.NoError(t, s.UpsertAnswer(Answer{QuestionID: "q1", Text: "draft", TimeSpent: 5}, now))
	require.NoError(t, s.UpsertAnswer(Answer{QuestionID: "q1", Text: "final", TimeSpent: 9}, now.Add(time.Minute)))
	require.Len(t, s.Answers, 1)
	assert.Equal(t, "final", s.Answers[0].Text)
	assert.Equal(t, 9, s.Answers[0].TimeSpent)
	assert.Equal(t, now.Add(time.Minute), s.LastActivityAt)

	err := s.UpsertAnswer(Answer{QuestionID: "nope", Text: "x"}, now)
	assert.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestAnswersFrozenAfterCompletion(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	s := NewInterviewSession("u1", "frontend-basics", twoQuestions(), start)
	long := strings.Repeat("a", 60)
	require.NoError(t, s.UpsertAnswer(Answer{QuestionID: "q1", Text: long}, start))
	require.NoError(t, s.UpsertAnswer(Answer{QuestionID: "q2", Text: long}, start))

	eval, err := s.Complete(start.Add(20 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 100.0, eval.Score)
	assert.Equal(t, SessionCompleted, s.Status)
	require.NotNil(t, s.DurationSec)
	assert.Equal(t, 1200, *s.DurationSec)
	for _, item := range s.Checklist {
		assert.True(t, item.Passed, item.Criterion)
	}

	assert.ErrorIs(t, s.UpsertAnswer(Answer{QuestionID: "q1", Text: "late"}, start), ErrSessionNotActive)
	_, err = s.Complete(start)
	assert.ErrorIs(t, err, ErrSessionNotActive)
	assert.ErrorIs(t, s.Abandon(start), ErrSessionNotActive)
}

func TestRetakeCopiesQuestions(t *testing.T) {
	now := time.Now()
	s := NewInterviewSession("u1", "algorithms", twoQuestions(), now)
	s.ID = "orig"
	_, err := s.Complete(now)
	require.NoError(t, err)

	next := s.Retake(now)
	assert.Equal(t, SessionInProgress, next.Status)
	assert.Equal(t, "algorithms", next.Topic)
	assert.Len(t, next.Questions, 2)
	assert.Empty(t, next.Answers)
	require.NotNil(t, next.RetakeOf)
	assert.Equal(t, "orig", *next.RetakeOf)
}
