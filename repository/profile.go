package repository

import (
	"context"
	"log/slog"

	"github.com/careerhub/backend/models"
	"gorm.io/gorm/clause"
)

func (r *GORMRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get profile", "error", err, "user_id", userID)
		return nil, err
	}
	return &profile, nil
}

// GetOrCreateProfile returns the user's profile, inserting an empty one on first access.
func (r *GORMRepository) GetOrCreateProfile(ctx context.Context, userID string) (*models.Profile, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err != nil || profile != nil {
		return profile, err
	}

	profile = models.NewProfile(userID)
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(profile).Error
	if err != nil {
		slog.Error("Failed to create profile", "error", err, "user_id", userID)
		return nil, err
	}
	slog.Info("Profile created", "user_id", userID)
	// a concurrent request may have won the insert
	return r.GetProfile(ctx, userID)
}

// UpdateProfile creates the profile if needed, then applies a change to it under a row
// lock so concurrent edits keep each other's history entries.
func (r *GORMRepository) UpdateProfile(ctx context.Context, userID string, apply func(*models.Profile) error) (*models.Profile, error) {
	if _, err := r.GetOrCreateProfile(ctx, userID); err != nil {
		return nil, err
	}
	return updateLocked(ctx, r.db, "profile", apply, "user_id = ?", userID)
}
