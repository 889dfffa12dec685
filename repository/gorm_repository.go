package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/careerhub/backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GORMRepository struct {
	db *gorm.DB
}

func NewGORMRepository(db *gorm.DB) *GORMRepository {
	return &GORMRepository{db: db}
}

// Ping checks the underlying connection pool.
func (r *GORMRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// updateLocked loads the row matching query with SELECT ... FOR UPDATE, runs apply on it
// and saves it in the same transaction. Concurrent updates of one row run one after the
// other, each seeing the previous result. A missing row yields nil, nil; an error from
// apply rolls back and is returned as is.
func updateLocked[T any](ctx context.Context, db *gorm.DB, what string, apply func(*T) error, query string, args ...any) (*T, error) {
	var (
		row      T
		applyErr error
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, args...).First(&row).Error; err != nil {
			return err
		}
		if applyErr = apply(&row); applyErr != nil {
			return applyErr
		}
		return tx.Save(&row).Error
	})
	switch {
	case err == nil:
		return &row, nil
	case applyErr != nil:
		return nil, applyErr
	case notFound(err):
		return nil, nil
	default:
		slog.Error("Failed to update "+what, "error", err)
		return nil, err
	}
}

// User operations
func (r *GORMRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		slog.Error("Failed to create user", "error", err)
		return err
	}
	slog.Info("User created", "user_id", user.ID, "email", user.Email)
	return nil
}

func (r *GORMRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		slog.Error("Failed to update user", "error", err, "user_id", user.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get user by email", "error", err, "email", email)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get user by ID", "error", err, "user_id", id)
		return nil, err
	}
	return &user, nil
}

func (r *GORMRepository) GetUserByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("google_sub = ?", sub).First(&user).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get user by google subject", "error", err)
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes the user row. Profile, CVs, sessions, trainer results and tokens go
// with it through ON DELETE CASCADE; audit events keep their rows with user_id cleared.
func (r *GORMRepository) DeleteUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", userID).Delete(&models.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to delete user", "error", err, "user_id", userID)
		return err
	}
	slog.Info("User deleted", "user_id", userID)
	return nil
}

// Token operations
func (r *GORMRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		slog.Error("Failed to create refresh token", "error", err)
		return err
	}
	return nil
}

func (r *GORMRepository) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var refreshToken models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token = ? AND expires_at > ?", token, time.Now()).First(&refreshToken).Error; err != nil {
		if notFound(err) {
			return nil, nil
		}
		slog.Error("Failed to get refresh token", "error", err)
		return nil, err
	}
	return &refreshToken, nil
}

func (r *GORMRepository) DeleteAllUserTokens(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.RefreshToken{}).Error; err != nil {
		slog.Error("Failed to delete user refresh tokens", "error", err, "user_id", userID)
		return err
	}
	return nil
}
