package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/careerhub/backend/llm"
	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/questionbank"
	ws "github.com/careerhub/backend/websocket"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

var (
	ErrSessionNotFound  = errors.New("interview session not found")
	ErrQuestionRequired = errors.New("question_id is required")
	ErrNotCompleted     = errors.New("can only retake completed interviews")
	ErrRetakeDisabled   = errors.New("this interview cannot be retaken")
)

// InterviewService holds the interview rules shared by the REST endpoints and the live
// websocket channel.
type InterviewService struct {
	store     InterviewStore
	audit     AuditStore
	bank      *questionbank.Bank
	assistant *llm.Assistant
	hub       *ws.Hub
	now       func() time.Time
}

func NewInterviewService(store InterviewStore, audit AuditStore, bank *questionbank.Bank, assistant *llm.Assistant) *InterviewService {
	return &InterviewService{
		store:     store,
		audit:     audit,
		bank:      bank,
		assistant: assistant,
		now:       time.Now,
	}
}

// SetHub lets completions and abandons reach clients on the live channel.
func (s *InterviewService) SetHub(hub *ws.Hub) {
	s.hub = hub
}

func (s *InterviewService) notify(sessionID string, reply ws.Reply) {
	if s.hub != nil {
		s.hub.NotifySession(sessionID, reply)
	}
}

func (s *InterviewService) Start(ctx context.Context, userID, topic string) (*models.InterviewSession, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = s.bank.DefaultTopic()
	}
	resolved, questions := s.bank.InterviewQuestions(topic)
	if resolved != topic {
		slog.Info("Unknown interview topic, using default bank", "requested", topic, "topic", resolved)
	}

	session := models.NewInterviewSession(userID, topic, questions, s.now())
	session.ID = uuid.New().String()
	if err := s.store.CreateInterviewSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// activeSession loads a session that must still be in progress.
func (s *InterviewService) activeSession(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.store.GetInterviewSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil || !session.Active() {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// updateActive applies change to a session that must still be in progress. The check and
// the write happen under the store's row lock, so a request racing a submit or abandon
// cannot reopen or rewrite the finished session.
func (s *InterviewService) updateActive(ctx context.Context, userID, sessionID string, change func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	session, err := s.store.UpdateInterviewSession(ctx, sessionID, userID, func(session *models.InterviewSession) error {
		if !session.Active() {
			return ErrSessionNotFound
		}
		return change(session)
	})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// SaveAnswer upserts an answer on an in-progress session.
func (s *InterviewService) SaveAnswer(ctx context.Context, userID, sessionID string, answer models.Answer) (*models.InterviewSession, error) {
	if strings.TrimSpace(answer.QuestionID) == "" {
		return nil, ErrQuestionRequired
	}
	session, err := s.updateActive(ctx, userID, sessionID, func(session *models.InterviewSession) error {
		return session.UpsertAnswer(answer, s.now())
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Interview answer saved", "session_id", session.ID, "question_id", answer.QuestionID)
	return session, nil
}

// Submit completes the session and scores it with the canned feedback attached, then asks
// the model for feedback and stores that when it arrives.
func (s *InterviewService) Submit(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	var eval models.Evaluation
	session, err := s.updateActive(ctx, userID, sessionID, func(session *models.InterviewSession) error {
		var err error
		if eval, err = session.Complete(s.now()); err != nil {
			return err
		}
		session.AIFeedback = datatypes.NewJSONType(models.FallbackFeedback())
		session.DetailedReview = datatypes.JSONSlice[models.ReviewItem]{}
		return nil
	})
	if err != nil {
		return nil, err
	}

	feedback, review, err := s.assistant.InterviewFeedback(ctx, session)
	if err != nil {
		slog.Warn("AI feedback unavailable, keeping fallback", "error", err, "session_id", session.ID)
	} else if err := s.store.SaveInterviewFeedback(ctx, session.ID, feedback, review); err != nil {
		slog.Error("Failed to store AI feedback, keeping fallback", "error", err, "session_id", session.ID)
	} else {
		session.AIFeedback = datatypes.NewJSONType(feedback)
		session.DetailedReview = append(datatypes.JSONSlice[models.ReviewItem]{}, review...)
	}

	recordAudit(ctx, s.audit, userID, models.AuditInterviewComplete, map[string]any{"session_id": session.ID, "score": eval.Score})
	slog.Info("Interview completed", "session_id", session.ID, "score", eval.Score)
	s.notify(session.ID, ws.Reply{Type: ws.TypeSessionCompleted, Score: session.Score})
	return session, nil
}

// Hint returns a nudge for a question of an in-progress session, falling back to a canned
// hint when the model fails.
func (s *InterviewService) Hint(ctx context.Context, userID, sessionID, questionID, currentAnswer string) (string, error) {
	if strings.TrimSpace(questionID) == "" {
		return "", ErrQuestionRequired
	}
	session, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	q, ok := session.Question(questionID)
	if !ok {
		return "", models.ErrUnknownQuestion
	}

	hint, err := s.assistant.Hint(ctx, q, currentAnswer)
	if err != nil {
		slog.Warn("Hint generation failed, using fallback", "error", err, "session_id", sessionID)
		return llm.FallbackHint, nil
	}
	return hint, nil
}

func (s *InterviewService) Retake(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	original, err := s.store.GetInterviewSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, ErrSessionNotFound
	}
	if original.Status != models.SessionCompleted {
		return nil, ErrNotCompleted
	}
	if !original.CanRetake {
		return nil, ErrRetakeDisabled
	}

	next := original.Retake(s.now())
	next.ID = uuid.New().String()
	if err := s.store.CreateInterviewSession(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to create retake: %w", err)
	}
	recordAudit(ctx, s.audit, userID, models.AuditInterviewRetake, map[string]any{
		"original_session_id": original.ID,
		"new_session_id":      next.ID,
	})
	return next, nil
}

func (s *InterviewService) Abandon(ctx context.Context, userID, sessionID string) (*models.InterviewSession, error) {
	session, err := s.updateActive(ctx, userID, sessionID, func(session *models.InterviewSession) error {
		return session.Abandon(s.now())
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Interview abandoned", "session_id", session.ID)
	s.notify(session.ID, ws.Reply{Type: ws.TypeSessionAbandoned})
	return session, nil
}
