package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/careerhub/backend/models"
	ws "github.com/careerhub/backend/websocket"
)

const liveRequestTimeout = 30 * time.Second

// WebSocketHandler runs client messages of the live interview channel through the same
// InterviewService the REST endpoints use.
type WebSocketHandler struct {
	interviews *InterviewService
}

func NewWebSocketHandler(interviews *InterviewService) *WebSocketHandler {
	return &WebSocketHandler{interviews: interviews}
}

// liveError turns a service error into the text sent back over the socket.
func liveError(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "Active session not found"
	case errors.Is(err, ErrQuestionRequired):
		return "question_id is required"
	case errors.Is(err, models.ErrUnknownQuestion):
		return "Unknown question_id"
	default:
		return "Request failed"
	}
}

func (h *WebSocketHandler) HandleWebSocketMessage(client *ws.Client, msg ws.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), liveRequestTimeout)
	defer cancel()

	switch msg.Type {
	case ws.TypeAnswer:
		session, err := h.interviews.SaveAnswer(ctx, client.UserID, client.SessionID, models.Answer{
			QuestionID: msg.QuestionID,
			Text:       msg.Text,
			TimeSpent:  msg.TimeSpent,
		})
		if err != nil {
			slog.Warn("Live answer rejected", "error", err, "session_id", client.SessionID)
			client.Reply(ws.Reply{Type: ws.TypeError, QuestionID: msg.QuestionID, Error: liveError(err)})
			return
		}
		client.Reply(ws.Reply{Type: ws.TypeAnswerSaved, QuestionID: msg.QuestionID, Answered: len(session.Answers)})

	case ws.TypeHint:
		hint, err := h.interviews.Hint(ctx, client.UserID, client.SessionID, msg.QuestionID, msg.CurrentAnswer)
		if err != nil {
			slog.Warn("Live hint rejected", "error", err, "session_id", client.SessionID)
			client.Reply(ws.Reply{Type: ws.TypeError, QuestionID: msg.QuestionID, Error: liveError(err)})
			return
		}
		client.Reply(ws.Reply{Type: ws.TypeHint, QuestionID: msg.QuestionID, Hint: hint})

	default:
		slog.Warn("Unknown message type", "type", msg.Type, "session_id", client.SessionID)
		client.Reply(ws.Reply{Type: ws.TypeError, Error: "unknown message type"})
	}
}
