package services

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/questionbank"
	"github.com/go-chi/chi/v5"
)

type InterviewEndpoints struct {
	interviews *InterviewService
	store      InterviewStore
	bank       *questionbank.Bank
}

func NewInterviewEndpoints(interviews *InterviewService, store InterviewStore, bank *questionbank.Bank) *InterviewEndpoints {
	return &InterviewEndpoints{interviews: interviews, store: store, bank: bank}
}

type StartInterviewRequest struct {
	Topic string `json:"topic"`
}

type AnswerRequest struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text"`
	TimeSpent  int    `json:"time_spent"`
}

type HintRequest struct {
	QuestionID    string `json:"question_id"`
	CurrentAnswer string `json:"current_answer"`
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interview", func(r chi.Router) {
		r.Get("/topics", e.TopicsHandler)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", e.StartSessionHandler)
			r.Get("/", e.ListSessionsHandler)
			r.Get("/{id}", e.GetSessionHandler)
			r.Put("/{id}/answer", e.AnswerHandler)
			r.Post("/{id}/submit", e.SubmitHandler)
			r.Post("/{id}/hint", e.HintHandler)
			r.Post("/{id}/retake", e.RetakeHandler)
			r.Post("/{id}/abandon", e.AbandonHandler)
		})
	})
}

// writeInterviewError maps service errors onto status codes.
func writeInterviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "Active session not found")
	case errors.Is(err, ErrQuestionRequired):
		writeError(w, http.StatusBadRequest, "question_id is required")
	case errors.Is(err, models.ErrUnknownQuestion):
		writeError(w, http.StatusBadRequest, "Unknown question_id")
	case errors.Is(err, ErrNotCompleted):
		writeError(w, http.StatusBadRequest, "Can only retake completed interviews")
	case errors.Is(err, ErrRetakeDisabled):
		writeError(w, http.StatusForbidden, "This interview cannot be retaken")
	default:
		slog.Error("Interview operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Interview operation failed")
	}
}

func (e *InterviewEndpoints) TopicsHandler(w http.ResponseWriter, r *http.Request) {
	topics := make([]map[string]any, 0, len(e.bank.Topics()))
	for _, t := range e.bank.Topics() {
		topics = append(topics, map[string]any{"key": t.Key, "name": t.Name, "question_count": len(t.Questions)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"topics": topics, "default": e.bank.DefaultTopic()})
}

func (e *InterviewEndpoints) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req StartInterviewRequest
	// an empty body starts the default topic
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := e.interviews.Start(r.Context(), user.ID, req.Topic)
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (e *InterviewEndpoints) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	sessions, err := e.store.ListInterviewSessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get sessions")
		return
	}
	if sessions == nil {
		sessions = []models.InterviewSession{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions, "count": len(sessions)})
}

func (e *InterviewEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := e.store.GetInterviewSession(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *InterviewEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := e.interviews.SaveAnswer(r.Context(), user.ID, chi.URLParam(r, "id"), models.Answer{
		QuestionID: req.QuestionID,
		Text:       req.Text,
		TimeSpent:  req.TimeSpent,
	})
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *InterviewEndpoints) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := e.interviews.Submit(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (e *InterviewEndpoints) HintHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req HintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	hint, err := e.interviews.Hint(r.Context(), user.ID, chi.URLParam(r, "id"), req.QuestionID, req.CurrentAnswer)
	if errors.Is(err, models.ErrUnknownQuestion) {
		writeError(w, http.StatusNotFound, "Question not found")
		return
	}
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"hint": hint})
}

func (e *InterviewEndpoints) RetakeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := e.interviews.Retake(r.Context(), user.ID, chi.URLParam(r, "id"))
	if errors.Is(err, ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (e *InterviewEndpoints) AbandonHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	session, err := e.interviews.Abandon(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}
