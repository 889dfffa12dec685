package services

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/careerhub/backend/llm"
	"github.com/go-chi/chi/v5"
)

type AIEndpoints struct {
	assistant *llm.Assistant
}

func NewAIEndpoints(assistant *llm.Assistant) *AIEndpoints {
	return &AIEndpoints{assistant: assistant}
}

func (e *AIEndpoints) RegisterRoutes(r chi.Router) {
	r.Get("/ai/ask", e.AskHandler)
}

func (e *AIEndpoints) AskHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	if !e.assistant.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "AI is not configured")
		return
	}
	prompt := strings.TrimSpace(r.URL.Query().Get("prompt"))
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	answer, err := e.assistant.Ask(r.Context(), prompt)
	if err != nil {
		slog.Error("AI request failed", "error", err)
		writeError(w, http.StatusBadGateway, "AI request failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}
