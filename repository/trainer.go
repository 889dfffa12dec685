package repository

import (
	"context"
	"log/slog"

	"github.com/careerhub/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateTrainerResult counts the user's earlier results for the module and inserts the
// result built from that count in one transaction. The user row is locked so concurrent
// submissions see each other's attempts.
func (r *GORMRepository) CreateTrainerResult(ctx context.Context, userID, moduleKey string, build func(previousAttempts int64) *models.TrainerResult) (*models.TrainerResult, error) {
	var result *models.TrainerResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
			return err
		}
		var previous int64
		if err := tx.Model(&models.TrainerResult{}).
			Where("user_id = ? AND module_key = ?", userID, moduleKey).
			Count(&previous).Error; err != nil {
			return err
		}
		result = build(previous)
		return tx.Create(result).Error
	})
	if err != nil {
		slog.Error("Failed to create trainer result", "error", err, "user_id", userID, "module_key", moduleKey)
		return nil, err
	}
	slog.Info("Trainer result created", "result_id", result.ID, "user_id", userID, "module_key", moduleKey, "attempt", result.Attempts)
	return result, nil
}

// ListTrainerResults returns the user's results, newest first.
func (r *GORMRepository) ListTrainerResults(ctx context.Context, userID string) ([]models.TrainerResult, error) {
	var results []models.TrainerResult
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&results).Error; err != nil {
		slog.Error("Failed to list trainer results", "error", err, "user_id", userID)
		return nil, err
	}
	return results, nil
}

func (r *GORMRepository) GetTrainerResult(ctx context.Context, id, userID string) (*models.TrainerResult, error) {
	var result models.TrainerResult
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&result).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get trainer result", "error", err, "result_id", id)
		return nil, err
	}
	return &result, nil
}
