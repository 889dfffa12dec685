package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/google/uuid"
)

type contextKey string

const userContextKey contextKey = "user"

func withUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext returns the user placed on the request by AuthService.Middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	return user, ok && user != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requireUser writes a 401 and reports false when the request is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return user, true
}

// recordAudit appends an audit event. Failures are logged and never fail the request.
func recordAudit(ctx context.Context, store AuditStore, userID, eventType string, payload map[string]any) {
	if store == nil {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	event := &models.AuditEvent{
		ID:      uuid.New().String(),
		UserID:  &userID,
		Type:    eventType,
		Payload: payload,
		TS:      time.Now(),
	}
	if err := store.CreateAuditEvent(ctx, event); err != nil {
		slog.Error("Failed to record audit event", "error", err, "type", eventType, "user_id", userID)
	}
}
