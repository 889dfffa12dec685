package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/careerhub/backend/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r *GORMRepository) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err)
		return err
	}
	slog.Info("Interview session created", "session_id", session.ID, "user_id", session.UserID, "topic", session.Topic)
	return nil
}

// ListInterviewSessions returns the user's sessions, newest first.
func (r *GORMRepository) ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	var sessions []models.InterviewSession
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("started_at DESC").Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to get interview sessions", "error", err, "user_id", userID)
		return nil, err
	}
	return sessions, nil
}

func (r *GORMRepository) GetInterviewSession(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID, userID).
		First(&session).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", sessionID, "user_id", userID)
		return nil, err
	}
	return &session, nil
}

// UpdateInterviewSession applies a change to the user's session under a row lock.
func (r *GORMRepository) UpdateInterviewSession(ctx context.Context, sessionID, userID string, apply func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	return updateLocked(ctx, r.db, "interview session", apply, "id = ? AND user_id = ?", sessionID, userID)
}

// SaveInterviewFeedback writes only the feedback columns of a completed session.
func (r *GORMRepository) SaveInterviewFeedback(ctx context.Context, sessionID string, feedback models.Feedback, review []models.ReviewItem) error {
	err := r.db.WithContext(ctx).Model(&models.InterviewSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionCompleted).
		Updates(map[string]any{
			"ai_feedback":     datatypes.NewJSONType(feedback),
			"detailed_review": append(datatypes.JSONSlice[models.ReviewItem]{}, review...),
		}).Error
	if err != nil {
		slog.Error("Failed to save interview feedback", "error", err, "session_id", sessionID)
		return err
	}
	return nil
}

// AbandonStaleSessions marks in-progress sessions idle since before cutoff as abandoned
// and returns their ids.
func (r *GORMRepository) AbandonStaleSessions(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	var abandoned []models.InterviewSession
	err := r.db.WithContext(ctx).Model(&abandoned).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("status = ? AND last_activity_at < ?", models.SessionInProgress, cutoff).
		Updates(map[string]any{
			"status":       models.SessionAbandoned,
			"ended_at":     now,
			"duration_sec": gorm.Expr("EXTRACT(EPOCH FROM (? - started_at))::int", now),
		}).Error
	if err != nil {
		slog.Error("Failed to abandon stale sessions", "error", err)
		return nil, err
	}
	ids := make([]string, 0, len(abandoned))
	for _, s := range abandoned {
		ids = append(ids, s.ID)
	}
	return ids, nil
}
