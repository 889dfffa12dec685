package services

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	exportFormatVersion = "1.0"
	defaultAuditLimit   = 100
)

type AccountEndpoints struct {
	store       Store
	authService *AuthService
	now         func() time.Time
}

func NewAccountEndpoints(store Store, authService *AuthService) *AccountEndpoints {
	return &AccountEndpoints{store: store, authService: authService, now: time.Now}
}

// DataExport is the GDPR portability bundle.
type DataExport struct {
	Version        string                    `json:"version"`
	ExportedAt     time.Time                 `json:"exported_at"`
	User           *models.User              `json:"user"`
	Profile        *models.Profile           `json:"profile"`
	CVs            []models.CV               `json:"cvs"`
	Interviews     []models.InterviewSession `json:"interviews"`
	TrainerResults []models.TrainerResult    `json:"trainer_results"`
}

func (e *AccountEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/account", func(r chi.Router) {
		r.Post("/export", e.ExportHandler)
		r.Post("/erase", e.EraseHandler)
		r.Get("/audit", e.AuditHandler)
	})
}

func (e *AccountEndpoints) collect(ctx context.Context, user *models.User) (*DataExport, error) {
	profile, err := e.store.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	cvs, err := e.store.ListCVs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	interviews, err := e.store.ListInterviewSessions(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	results, err := e.store.ListTrainerResults(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if cvs == nil {
		cvs = []models.CV{}
	}
	if interviews == nil {
		interviews = []models.InterviewSession{}
	}
	if results == nil {
		results = []models.TrainerResult{}
	}
	return &DataExport{
		Version:        exportFormatVersion,
		ExportedAt:     e.now().UTC(),
		User:           user,
		Profile:        profile,
		CVs:            cvs,
		Interviews:     interviews,
		TrainerResults: results,
	}, nil
}

func (e *AccountEndpoints) ExportHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	bundle, err := e.collect(r.Context(), user)
	if err != nil {
		slog.Error("Failed to collect export data", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to export data")
		return
	}

	recordAudit(r.Context(), e.store, user.ID, models.AuditExport, map[string]any{"format": "json"})
	slog.Info("User data exported", "user_id", user.ID)
	writeJSON(w, http.StatusOK, bundle)
}

// EraseHandler deletes the account and everything it owns. The deletion request row is kept
// as the record that the erase happened.
func (e *AccountEndpoints) EraseHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	existing, err := e.store.GetDeletionRequest(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check deletion status")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "Deletion request already exists")
		return
	}

	req := &models.DeletionRequest{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Email:       user.Email,
		Status:      models.DeletionPending,
		RequestedAt: e.now(),
	}
	if err := e.store.CreateDeletionRequest(ctx, req); err != nil {
		slog.Error("Failed to create deletion request", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to create deletion request")
		return
	}
	recordAudit(ctx, e.store, user.ID, models.AuditErase, map[string]any{"request_id": req.ID})

	if err := e.process(ctx, req); err != nil {
		slog.Error("Account erase failed", "error", err, "user_id", user.ID, "request_id", req.ID)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": string(models.DeletionFailed),
			"error":  err.Error(),
		})
		return
	}

	e.authService.ClearAuthCookies(w)
	slog.Info("Account erased", "user_id", user.ID, "request_id", req.ID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  string(models.DeletionCompleted),
		"message": "All data has been deleted",
	})
}

// process runs pending -> processing -> completed, recording failed with the cause when the
// delete does not go through.
func (e *AccountEndpoints) process(ctx context.Context, req *models.DeletionRequest) error {
	if err := req.Advance(models.DeletionProcessing, e.now()); err != nil {
		return err
	}
	if err := e.store.SaveDeletionRequest(ctx, req); err != nil {
		return err
	}

	if err := e.store.DeleteUser(ctx, req.UserID); err != nil {
		if ferr := req.Fail(err, e.now()); ferr != nil {
			return ferr
		}
		if serr := e.store.SaveDeletionRequest(ctx, req); serr != nil {
			slog.Error("Failed to record failed deletion", "error", serr, "request_id", req.ID)
		}
		return err
	}

	if err := req.Advance(models.DeletionCompleted, e.now()); err != nil {
		return err
	}
	return e.store.SaveDeletionRequest(ctx, req)
}

func (e *AccountEndpoints) AuditHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= defaultAuditLimit {
			limit = n
		}
	}

	events, err := e.store.ListAuditEvents(r.Context(), user.ID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get audit events")
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
