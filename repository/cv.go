package repository

import (
	"context"
	"log/slog"

	"github.com/careerhub/backend/models"
)

func (r *GORMRepository) CreateCV(ctx context.Context, cv *models.CV) error {
	if err := r.db.WithContext(ctx).Create(cv).Error; err != nil {
		slog.Error("Failed to create cv", "error", err, "user_id", cv.UserID)
		return err
	}
	slog.Info("CV created", "cv_id", cv.ID, "user_id", cv.UserID)
	return nil
}

// ListCVs returns the user's CVs, most recently updated first.
func (r *GORMRepository) ListCVs(ctx context.Context, userID string) ([]models.CV, error) {
	var cvs []models.CV
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC").Find(&cvs).Error
	if err != nil {
		slog.Error("Failed to list cvs", "error", err, "user_id", userID)
		return nil, err
	}
	return cvs, nil
}

// GetCV loads a CV owned by userID. A CV belonging to someone else is reported as missing.
func (r *GORMRepository) GetCV(ctx context.Context, id, userID string) (*models.CV, error) {
	var cv models.CV
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&cv).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get cv", "error", err, "cv_id", id, "user_id", userID)
		return nil, err
	}
	return &cv, nil
}

// UpdateCV applies a change to the user's CV under a row lock, so every successful
// update sees the version written by the one before it.
func (r *GORMRepository) UpdateCV(ctx context.Context, id, userID string, apply func(*models.CV) error) (*models.CV, error) {
	return updateLocked(ctx, r.db, "cv", apply, "id = ? AND user_id = ?", id, userID)
}

// SetRenderedPDFURL records where the latest PDF export of a CV is stored.
func (r *GORMRepository) SetRenderedPDFURL(ctx context.Context, id, url string) error {
	err := r.db.WithContext(ctx).Model(&models.CV{}).Where("id = ?", id).
		UpdateColumn("rendered_pdf_url", url).Error
	if err != nil {
		slog.Error("Failed to record rendered pdf url", "error", err, "cv_id", id)
		return err
	}
	return nil
}

// DeleteCV reports whether a row owned by userID was removed.
func (r *GORMRepository) DeleteCV(ctx context.Context, id, userID string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CV{})
	if res.Error != nil {
		slog.Error("Failed to delete cv", "error", res.Error, "cv_id", id)
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		slog.Info("CV deleted", "cv_id", id, "user_id", userID)
	}
	return res.RowsAffected > 0, nil
}
