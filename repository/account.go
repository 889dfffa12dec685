package repository

import (
	"context"
	"log/slog"

	"github.com/careerhub/backend/models"
)

// Audit operations
func (r *GORMRepository) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		slog.Error("Failed to create audit event", "error", err, "type", event.Type)
		return err
	}
	return nil
}

// ListAuditEvents returns up to limit events for the user, newest first.
func (r *GORMRepository) ListAuditEvents(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&events).Error; err != nil {
		slog.Error("Failed to list audit events", "error", err, "user_id", userID)
		return nil, err
	}
	return events, nil
}

// Deletion request operations
func (r *GORMRepository) GetDeletionRequest(ctx context.Context, userID string) (*models.DeletionRequest, error) {
	var req models.DeletionRequest
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&req).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get deletion request", "error", err, "user_id", userID)
		return nil, err
	}
	return &req, nil
}

func (r *GORMRepository) CreateDeletionRequest(ctx context.Context, req *models.DeletionRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		slog.Error("Failed to create deletion request", "error", err, "user_id", req.UserID)
		return err
	}
	slog.Info("Deletion request created", "request_id", req.ID, "user_id", req.UserID)
	return nil
}

func (r *GORMRepository) SaveDeletionRequest(ctx context.Context, req *models.DeletionRequest) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		slog.Error("Failed to save deletion request", "error", err, "request_id", req.ID)
		return err
	}
	slog.Info("Deletion request updated", "request_id", req.ID, "status", req.Status)
	return nil
}
