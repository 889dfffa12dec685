package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/careerhub/backend/export"
	"github.com/careerhub/backend/llm"
	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CVEndpoints struct {
	cvs       CVStore
	profiles  ProfileStore
	audit     AuditStore
	renderer  export.Renderer
	storage   storage.Storage
	assistant *llm.Assistant
}

func NewCVEndpoints(store Store, renderer export.Renderer, files storage.Storage, assistant *llm.Assistant) *CVEndpoints {
	return &CVEndpoints{
		cvs:       store,
		profiles:  store,
		audit:     store,
		renderer:  renderer,
		storage:   files,
		assistant: assistant,
	}
}

type CreateCVRequest struct {
	Title       string          `json:"title"`
	TemplateKey string          `json:"template_key"`
	Sections    json.RawMessage `json:"sections"`
}

type GenerateCVRequest struct {
	JobDescription string `json:"job_description"`
}

type EnhanceSectionRequest struct {
	Section string `json:"section"`
	Content string `json:"content"`
	Context string `json:"context"`
}

func (e *CVEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/cvs", func(r chi.Router) {
		r.Get("/", e.ListCVsHandler)
		r.Post("/", e.CreateCVHandler)
		r.Get("/{id}", e.GetCVHandler)
		r.Put("/{id}", e.UpdateCVHandler)
		r.Delete("/{id}", e.DeleteCVHandler)
		r.Get("/{id}/export", e.ExportCVHandler)
		r.Post("/{id}/generate", e.GenerateCVHandler)
		r.Post("/{id}/enhance", e.EnhanceSectionHandler)
	})
}

// loadCV writes the 404 or 500 itself and returns nil in that case.
func (e *CVEndpoints) loadCV(w http.ResponseWriter, r *http.Request, userID string) *models.CV {
	id := chi.URLParam(r, "id")
	cv, err := e.cvs.GetCV(r.Context(), id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get CV")
		return nil
	}
	if cv == nil {
		writeError(w, http.StatusNotFound, "CV not found")
		return nil
	}
	return cv
}

func (e *CVEndpoints) ListCVsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	cvs, err := e.cvs.ListCVs(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list CVs")
		return
	}
	if cvs == nil {
		cvs = []models.CV{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cvs": cvs, "count": len(cvs)})
}

func (e *CVEndpoints) CreateCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateCVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cv, err := models.NewCV(user.ID, req.Title, req.TemplateKey, req.Sections)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cv.ID = uuid.New().String()

	if err := e.cvs.CreateCV(r.Context(), cv); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create CV")
		return
	}
	recordAudit(r.Context(), e.audit, user.ID, models.AuditCVCreate, map[string]any{"cv_id": cv.ID, "title": cv.Title})
	writeJSON(w, http.StatusCreated, cv)
}

func (e *CVEndpoints) GetCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if cv := e.loadCV(w, r, user.ID); cv != nil {
		writeJSON(w, http.StatusOK, cv)
	}
}

func (e *CVEndpoints) UpdateCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var updates map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e.applyAndSave(w, r, user.ID, chi.URLParam(r, "id"), func(*models.CV) (map[string]json.RawMessage, error) {
		return updates, nil
	})
}

// applyAndSave runs a CV update through the versioning rules and persists it. build sees
// the CV as locked by the store and returns the fields to change.
func (e *CVEndpoints) applyAndSave(w http.ResponseWriter, r *http.Request, userID, cvID string, build func(*models.CV) (map[string]json.RawMessage, error)) {
	var entry *models.ChangelogEntry
	cv, err := e.cvs.UpdateCV(r.Context(), cvID, userID, func(cv *models.CV) error {
		updates, err := build(cv)
		if err != nil {
			return err
		}
		entry, err = cv.ApplyUpdate(updates, time.Now())
		return err
	})
	if errors.Is(err, models.ErrInvalidField) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("Failed to update cv", "error", err, "cv_id", cvID)
		writeError(w, http.StatusInternalServerError, "Failed to update CV")
		return
	}
	if cv == nil {
		writeError(w, http.StatusNotFound, "CV not found")
		return
	}

	slog.Info("CV updated", "cv_id", cv.ID, "version", cv.Version, "changed", entry != nil)
	recordAudit(r.Context(), e.audit, userID, models.AuditCVUpdate, map[string]any{"cv_id": cv.ID, "version": cv.Version})
	writeJSON(w, http.StatusOK, cv)
}

func (e *CVEndpoints) DeleteCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	deleted, err := e.cvs.DeleteCV(r.Context(), id, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete CV")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "CV not found")
		return
	}
	recordAudit(r.Context(), e.audit, user.ID, models.AuditCVDelete, map[string]any{"cv_id": id})
	w.WriteHeader(http.StatusNoContent)
}

const (
	contentTypePDF  = "application/pdf"
	contentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

func (e *CVEndpoints) ExportCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "pdf"
	}
	if format != "pdf" && format != "docx" {
		writeError(w, http.StatusBadRequest, `Invalid format. Use "pdf" or "docx".`)
		return
	}

	cv := e.loadCV(w, r, user.ID)
	if cv == nil {
		return
	}

	var (
		data        []byte
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		if e.renderer == nil {
			writeError(w, http.StatusServiceUnavailable, "PDF export is not available")
			return
		}
		contentType = contentTypePDF
		data, err = export.PDF(r.Context(), e.renderer, cv)
	case "docx":
		contentType = contentTypeDOCX
		data, err = export.DOCX(cv)
	}
	if err != nil {
		slog.Error("CV export failed", "error", err, "cv_id", cv.ID, "format", format)
		writeError(w, http.StatusInternalServerError, "Failed to export CV")
		return
	}

	if format == "pdf" && e.storage != nil {
		e.storeRenderedPDF(r, cv, data)
	}
	recordAudit(r.Context(), e.audit, user.ID, models.AuditCVExport, map[string]any{"cv_id": cv.ID, "format": format})

	filename := export.Filename(cv.Title, format, time.Now())
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", export.ContentDisposition(filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// storeRenderedPDF keeps the latest PDF and records its URL. Failures only cost the cached
// copy, so they are logged.
func (e *CVEndpoints) storeRenderedPDF(r *http.Request, cv *models.CV, data []byte) {
	url, err := e.storage.Save(r.Context(), storage.CVKey(cv.UserID, cv.ID, cv.Version, "pdf"), data, contentTypePDF)
	if err != nil {
		slog.Error("Failed to store rendered pdf", "error", err, "cv_id", cv.ID)
		return
	}
	if err := e.cvs.SetRenderedPDFURL(r.Context(), cv.ID, url); err != nil {
		return
	}
	cv.RenderedPDFURL = url
}

func (e *CVEndpoints) GenerateCVHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !e.assistant.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "AI service is not configured")
		return
	}

	var req GenerateCVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cv := e.loadCV(w, r, user.ID)
	if cv == nil {
		return
	}
	profile, err := e.profiles.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	content, err := e.assistant.GenerateCV(r.Context(), profileDocument(user, profile), req.JobDescription)
	if err != nil {
		slog.Error("CV generation failed", "error", err, "cv_id", cv.ID)
		writeError(w, http.StatusBadGateway, "Failed to generate CV content")
		return
	}

	e.applyAndSave(w, r, user.ID, cv.ID, func(locked *models.CV) (map[string]json.RawMessage, error) {
		sections, err := json.Marshal(mergeGenerated(locked.SectionsMap(), content))
		if err != nil {
			return nil, err
		}
		return map[string]json.RawMessage{"sections": sections}, nil
	})
}

func (e *CVEndpoints) EnhanceSectionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req EnhanceSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Section) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "section and content are required")
		return
	}
	if cv := e.loadCV(w, r, user.ID); cv == nil {
		return
	}

	enhanced, err := e.assistant.EnhanceSection(r.Context(), req.Section, req.Content, req.Context)
	if err != nil {
		slog.Warn("Section enhancement failed, returning original", "error", err, "section", req.Section)
		writeJSON(w, http.StatusOK, map[string]any{"section": req.Section, "content": req.Content, "enhanced": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"section": req.Section, "content": enhanced, "enhanced": true})
}

// profileDocument flattens the profile into the map the CV generator prompts with.
func profileDocument(user *models.User, p *models.Profile) map[string]any {
	doc := map[string]any{
		"name":    user.FullName,
		"email":   user.Email,
		"summary": p.Summary,
	}
	for name, raw := range map[string][]byte{
		"links":      p.Links,
		"education":  p.Education,
		"experience": p.Experience,
		"skills":     p.Skills,
		"projects":   p.Projects,
	} {
		var v any
		if len(raw) > 0 && json.Unmarshal(raw, &v) == nil {
			doc[name] = v
		}
	}
	return doc
}

// mergeGenerated overlays generated content on existing sections. Personal details the
// user entered are never replaced.
func mergeGenerated(sections map[string]any, c *llm.CVContent) map[string]any {
	if c.Summary != "" {
		sections["summary"] = c.Summary
	}
	if len(c.Experience) > 0 {
		sections["experience"] = c.Experience
	}
	var skills []map[string]string
	for _, group := range []struct {
		category string
		names    []string
	}{
		{"Technical", c.Skills.Technical},
		{"Soft", c.Skills.Soft},
		{"Tools", c.Skills.Tools},
	} {
		for _, name := range group.names {
			skills = append(skills, map[string]string{"name": name, "category": group.category})
		}
	}
	if len(skills) > 0 {
		sections["skills"] = skills
	}
	if len(c.Projects) > 0 {
		sections["projects"] = c.Projects
	}
	return sections
}
