package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/go-chi/chi/v5"
)

type ProfileEndpoints struct {
	profiles ProfileStore
}

func NewProfileEndpoints(profiles ProfileStore) *ProfileEndpoints {
	return &ProfileEndpoints{profiles: profiles}
}

func (e *ProfileEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/profile", e.GetProfileHandler)
	r.Put("/profile", e.UpdateProfileHandler)
}

func (e *ProfileEndpoints) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := e.profiles.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to get profile", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (e *ProfileEndpoints) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var updates map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var entries []models.HistoryEntry
	profile, err := e.profiles.UpdateProfile(r.Context(), user.ID, func(p *models.Profile) error {
		var err error
		entries, err = p.ApplyUpdate(updates, time.Now())
		return err
	})
	if errors.Is(err, models.ErrInvalidField) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to update profile", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}

	slog.Info("Profile updated", "user_id", user.ID, "changed_fields", len(entries))
	writeJSON(w, http.StatusOK, profile)
}
