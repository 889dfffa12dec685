package services

import (
	"context"
	"time"

	"github.com/careerhub/backend/models"
)

// The store interfaces are satisfied by *repository.GORMRepository. Lookups return nil,
// nil when the row does not exist or belongs to another user. Update methods taking an
// apply func run it on a row locked for the duration of the write and return the saved row; an error from
// apply aborts the write and comes back unchanged.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByGoogleSub(ctx context.Context, sub string) (*models.User, error)
	DeleteUser(ctx context.Context, userID string) error

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteAllUserTokens(ctx context.Context, userID string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetOrCreateProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, apply func(*models.Profile) error) (*models.Profile, error)
}

type CVStore interface {
	CreateCV(ctx context.Context, cv *models.CV) error
	ListCVs(ctx context.Context, userID string) ([]models.CV, error)
	GetCV(ctx context.Context, id, userID string) (*models.CV, error)
	UpdateCV(ctx context.Context, id, userID string, apply func(*models.CV) error) (*models.CV, error)
	SetRenderedPDFURL(ctx context.Context, id, url string) error
	DeleteCV(ctx context.Context, id, userID string) (bool, error)
}

type InterviewStore interface {
	CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error
	ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error)
	GetInterviewSession(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error)
	UpdateInterviewSession(ctx context.Context, sessionID, userID string, apply func(*models.InterviewSession) error) (*models.InterviewSession, error)
	SaveInterviewFeedback(ctx context.Context, sessionID string, feedback models.Feedback, review []models.ReviewItem) error
	AbandonStaleSessions(ctx context.Context, cutoff, now time.Time) ([]string, error)
}

type TrainerStore interface {
	CreateTrainerResult(ctx context.Context, userID, moduleKey string, build func(previousAttempts int64) *models.TrainerResult) (*models.TrainerResult, error)
	ListTrainerResults(ctx context.Context, userID string) ([]models.TrainerResult, error)
	GetTrainerResult(ctx context.Context, id, userID string) (*models.TrainerResult, error)
}

type AuditStore interface {
	CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error)
}

type DeletionStore interface {
	GetDeletionRequest(ctx context.Context, userID string) (*models.DeletionRequest, error)
	CreateDeletionRequest(ctx context.Context, req *models.DeletionRequest) error
	SaveDeletionRequest(ctx context.Context, req *models.DeletionRequest) error
}

// Store is everything the HTTP layer needs from persistence.
type Store interface {
	UserStore
	ProfileStore
	CVStore
	InterviewStore
	TrainerStore
	AuditStore
	DeletionStore
	Ping(ctx context.Context) error
}
