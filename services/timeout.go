package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	ws "github.com/careerhub/backend/websocket"
)

const (
	DefaultStaleAfter = 2 * time.Hour
	sweepInterval     = time.Minute
)

// SessionTimeoutService abandons interviews whose last answer is older than StaleAfter.
// Sessions with a live connection are tracked in memory so their clients can be told.
type SessionTimeoutService struct {
	store      InterviewStore
	hub        *ws.Hub
	staleAfter time.Duration
	now        func() time.Time

	activeSessions map[string]*ActiveSession
	mutex          sync.RWMutex
}

type ActiveSession struct {
	SessionID   string
	UserID      string
	ConnectedAt time.Time
}

func NewSessionTimeoutService(store InterviewStore, hub *ws.Hub, staleAfter time.Duration) *SessionTimeoutService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &SessionTimeoutService{
		store:          store,
		hub:            hub,
		staleAfter:     staleAfter,
		now:            time.Now,
		activeSessions: make(map[string]*ActiveSession),
	}
}

func (s *SessionTimeoutService) RegisterSession(sessionID, userID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.activeSessions[sessionID] = &ActiveSession{
		SessionID:   sessionID,
		UserID:      userID,
		ConnectedAt: s.now(),
	}
	slog.Info("Session registered for timeout tracking", "session_id", sessionID, "user_id", userID)
}

func (s *SessionTimeoutService) EndSession(sessionID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.activeSessions[sessionID]; exists {
		delete(s.activeSessions, sessionID)
		slog.Info("Session removed from timeout tracking", "session_id", sessionID)
	}
}

func (s *SessionTimeoutService) Tracked(sessionID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.activeSessions[sessionID]
	return ok
}

// Run sweeps once a minute until ctx is cancelled.
func (s *SessionTimeoutService) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkTimeouts(ctx)
		}
	}
}

// checkTimeouts abandons stale sessions in the store. Only the sessions the store reports
// as abandoned are announced, since last_activity_at there also moves on REST answers.
func (s *SessionTimeoutService) checkTimeouts(ctx context.Context) {
	now := s.now()
	cutoff := now.Add(-s.staleAfter)

	ids, err := s.store.AbandonStaleSessions(ctx, cutoff, now)
	if err != nil {
		slog.Error("Failed to abandon stale sessions", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	slog.Info("Abandoned stale interview sessions", "count", len(ids), "stale_after", s.staleAfter)

	for _, id := range ids {
		if !s.Tracked(id) {
			continue
		}
		if s.hub != nil {
			s.hub.NotifySession(id, ws.Reply{Type: ws.TypeSessionAbandoned})
		}
		s.EndSession(id)
	}
}
