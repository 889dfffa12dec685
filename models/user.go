package models

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

const (
	RoleUser  = "user"
	RoleStaff = "staff"
)

type User struct {
	ID               string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	Password         string     `gorm:"size:255" json:"-"` // bcrypt hash, empty for OAuth-only accounts
	FullName         string     `gorm:"size:255" json:"full_name"`
	AvatarURL        string     `gorm:"size:500" json:"avatar_url"`
	GoogleSub        *string    `gorm:"size:255;uniqueIndex" json:"-"`
	Locale           string     `gorm:"size:10;not null;default:'en'" json:"locale"`
	ConsentAnalytics bool       `gorm:"not null;default:false" json:"consent_analytics"`
	Role             string     `gorm:"size:20;not null;default:'user'" json:"role"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt      *time.Time `json:"last_login_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relationships
	Profile       *Profile       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type RefreshToken struct {
	ID        string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"` // sha256 of the cookie value
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Audit event types.
const (
	AuditLogin             = "login"
	AuditLogout            = "logout"
	AuditExport            = "export"
	AuditErase             = "erase"
	AuditCVCreate          = "cv_create"
	AuditCVUpdate          = "cv_update"
	AuditCVDelete          = "cv_delete"
	AuditCVExport          = "cv_export"
	AuditInterviewComplete = "interview_complete"
	AuditInterviewRetake   = "interview_retake"
	AuditTrainerComplete   = "trainer_complete"
	AuditFileUpload        = "file_upload"
)

// AuditEvent is an append-only record of a significant account action. UserID is
// cleared when the account is erased so the trail outlives the user row.
type AuditEvent struct {
	ID      string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID  *string           `gorm:"type:uuid;index" json:"user_id"`
	Type    string            `gorm:"size:50;not null;index" json:"type"`
	Payload datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
	TS      time.Time         `gorm:"column:ts;not null;index" json:"ts"`
}

type DeletionStatus string

const (
	DeletionPending    DeletionStatus = "pending"
	DeletionProcessing DeletionStatus = "processing"
	DeletionCompleted  DeletionStatus = "completed"
	DeletionFailed     DeletionStatus = "failed"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var deletionTransitions = map[DeletionStatus][]DeletionStatus{
	DeletionPending:    {DeletionProcessing},
	DeletionProcessing: {DeletionCompleted, DeletionFailed},
}

// CanTransition reports whether a deletion request may move from one status to another.
func CanTransition(from, to DeletionStatus) bool {
	for _, next := range deletionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeletionRequest tracks a GDPR erase. It keeps the user id and email by value, not as a
// foreign key, so the record remains after the user is deleted.
type DeletionRequest struct {
	ID           string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       string         `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Email        string         `gorm:"size:255;not null" json:"email"`
	Status       DeletionStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	RequestedAt  time.Time      `gorm:"not null" json:"requested_at"`
	ProcessedAt  *time.Time     `json:"processed_at"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
}

// Advance moves the request to the next status. Terminal statuses stamp ProcessedAt.
func (d *DeletionRequest) Advance(to DeletionStatus, now time.Time) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	if to == DeletionCompleted || to == DeletionFailed {
		d.ProcessedAt = &now
	}
	return nil
}

// Fail marks a processing request as failed with the cause.
func (d *DeletionRequest) Fail(cause error, now time.Time) error {
	if err := d.Advance(DeletionFailed, now); err != nil {
		return err
	}
	d.ErrorMessage = cause.Error()
	return nil
}
