package services

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/careerhub/backend/export"
	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/storage"
	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 10 << 20

var uploadContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type FileEndpoints struct {
	files storage.Storage
	audit AuditStore
}

func NewFileEndpoints(files storage.Storage, audit AuditStore) *FileEndpoints {
	return &FileEndpoints{files: files, audit: audit}
}

func (e *FileEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/files/upload", e.UploadHandler)
}

// UploadHandler stores a resume and returns its extracted text so the client can prefill
// the profile.
func (e *FileEndpoints) UploadHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1024)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := uploadContentTypes[ext]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid file type. Only PDF and DOCX are allowed")
		return
	}
	if header.Size > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}
	if len(data) > maxUploadSize {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 10MB")
		return
	}

	text, err := export.ExtractText(header.Filename, data)
	if errors.Is(err, export.ErrDocumentTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Document content is too large")
		return
	}
	if err != nil {
		slog.Warn("Failed to extract text from upload", "error", err, "filename", header.Filename)
		writeError(w, http.StatusBadRequest, "Could not read the uploaded document")
		return
	}

	key := storage.NewKey("uploads/"+user.ID, header.Filename)
	url, err := e.files.Save(r.Context(), key, data, contentType)
	if err != nil {
		slog.Error("Failed to store upload", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	recordAudit(r.Context(), e.audit, user.ID, models.AuditFileUpload, map[string]any{
		"key":      key,
		"filename": header.Filename,
		"size":     len(data),
	})
	slog.Info("File uploaded", "user_id", user.ID, "key", key, "size", len(data))
	writeJSON(w, http.StatusCreated, map[string]string{
		"key":  key,
		"url":  url,
		"text": text,
	})
}

// serveMedia streams a locally stored object to the user who owns it. Anything else,
// including directories, is a 404.
func serveMedia(local *storage.Local) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r)
		if !ok {
			return
		}
		key := chi.URLParam(r, "*")
		if owner, ok := storage.KeyOwner(key); !ok || owner != user.ID {
			slog.Warn("Media access denied", "key", key, "user_id", user.ID)
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		f, info, err := local.Open(key)
		if err != nil {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		defer f.Close()

		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}
