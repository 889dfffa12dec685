package models

import (
	"math"
	"time"

	"gorm.io/datatypes"
)

const TrainerMaxScore = 100

// QuizQuestion is a multiple choice trainer question. Correct is the index into Options
// and is never sent to clients.
type QuizQuestion struct {
	ID      string   `json:"id" yaml:"id"`
	Text    string   `json:"text" yaml:"text"`
	Options []string `json:"options" yaml:"options"`
	Correct int      `json:"-" yaml:"correct"`
}

type QuizAnswer struct {
	QuestionID     string `json:"question_id"`
	SelectedOption *int   `json:"selected_option"`
}

type TrainerMetadata struct {
	CorrectCount   int          `json:"correct_count"`
	TotalQuestions int          `json:"total_questions"`
	TimeTaken      int          `json:"time_taken"`
	Answers        []QuizAnswer `json:"answers"`
}

// TrainerResult is written once per quiz submission and never updated.
type TrainerResult struct {
	ID        string                              `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string                              `gorm:"type:uuid;not null;index:idx_trainer_user_module" json:"user_id"`
	ModuleKey string                              `gorm:"size:50;not null;index:idx_trainer_user_module" json:"module_key"`
	Attempts  int                                 `gorm:"not null" json:"attempts"`
	Score     float64                             `gorm:"type:decimal(5,2);not null" json:"score"`
	MaxScore  float64                             `gorm:"type:decimal(5,2);not null;default:100" json:"max_score"`
	Metadata  datatypes.JSONType[TrainerMetadata] `gorm:"type:jsonb;not null" json:"metadata"`
	CreatedAt time.Time                           `json:"created_at"`
}

// ScoreQuiz grades answers against a bank. Each question counts at most once and answers
// to questions outside the bank are ignored.
func ScoreQuiz(bank []QuizQuestion, answers []QuizAnswer) (correct int, score float64) {
	key := make(map[string]int, len(bank))
	for _, q := range bank {
		key[q.ID] = q.Correct
	}
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		want, ok := key[a.QuestionID]
		if !ok || seen[a.QuestionID] {
			continue
		}
		seen[a.QuestionID] = true
		if a.SelectedOption != nil && *a.SelectedOption == want {
			correct++
		}
	}
	if len(bank) == 0 {
		return 0, 0
	}
	score = float64(correct) / float64(len(bank)) * TrainerMaxScore
	return correct, math.Round(score*100) / 100
}

// NewTrainerResult builds the result for a submission given how many results the user
// already has for the module.
func NewTrainerResult(userID, moduleKey string, previousAttempts int64, bank []QuizQuestion, answers []QuizAnswer, timeTaken int) *TrainerResult {
	correct, score := ScoreQuiz(bank, answers)
	if answers == nil {
		answers = []QuizAnswer{}
	}
	return &TrainerResult{
		UserID:    userID,
		ModuleKey: moduleKey,
		Attempts:  int(previousAttempts) + 1,
		Score:     score,
		MaxScore:  TrainerMaxScore,
		Metadata: datatypes.NewJSONType(TrainerMetadata{
			CorrectCount:   correct,
			TotalQuestions: len(bank),
			TimeTaken:      timeTaken,
			Answers:        answers,
		}),
	}
}
