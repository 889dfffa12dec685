package services

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/careerhub/backend/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	tokens     map[string]*models.RefreshToken
	profiles   map[string]*models.Profile
	cvs        map[string]*models.CV
	sessions   map[string]*models.InterviewSession
	results    []models.TrainerResult
	audit      []models.AuditEvent
	deletions  map[string]*models.DeletionRequest
	deleteErr  error
	pingErr    error
	staleCalls int

	// onRead runs after a plain lookup returns, outside the lock. Tests use it to hold
	// readers so they overlap with writers.
	onRead func()
}

func (m *memStore) afterRead() {
	if m.onRead != nil {
		m.onRead()
	}
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		tokens:    map[string]*models.RefreshToken{},
		profiles:  map[string]*models.Profile{},
		cvs:       map[string]*models.CV{},
		sessions:  map[string]*models.InterviewSession{},
		deletions: map[string]*models.DeletionRequest{},
	}
}

func (m *memStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return errors.New("duplicate email")
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) UpdateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) findUser(match func(*models.User) bool) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Email == email }), nil
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.ID == id }), nil
}

func (m *memStore) GetUserByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.GoogleSub != nil && *u.GoogleSub == sub }), nil
}

func (m *memStore) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.users[userID]; !ok {
		return errors.New("record not found")
	}
	delete(m.users, userID)
	delete(m.profiles, userID)
	for id, cv := range m.cvs {
		if cv.UserID == userID {
			delete(m.cvs, id)
		}
	}
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
		}
	}
	kept := m.results[:0]
	for _, r := range m.results {
		if r.UserID != userID {
			kept = append(kept, r)
		}
	}
	m.results = kept
	for i := range m.audit {
		if m.audit[i].UserID != nil && *m.audit[i].UserID == userID {
			m.audit[i].UserID = nil
		}
	}
	return nil
}

func (m *memStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *token
	m.tokens[token.Token] = &cp
	return nil
}

func (m *memStore) GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok || t.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memStore) DeleteAllUserTokens(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, k)
		}
	}
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetOrCreateProfile(ctx context.Context, userID string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[userID]; !ok {
		p := models.NewProfile(userID)
		p.ID = uuid.New().String()
		m.profiles[userID] = p
	}
	cp := *m.profiles[userID]
	return &cp, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, userID string, apply func(*models.Profile) error) (*models.Profile, error) {
	if _, err := m.GetOrCreateProfile(ctx, userID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.profiles[userID]
	cp.HistoryLog = slices.Clone(cp.HistoryLog)
	if err := apply(&cp); err != nil {
		return nil, err
	}
	stored := cp
	m.profiles[userID] = &stored
	return &cp, nil
}

func (m *memStore) CreateCV(ctx context.Context, cv *models.CV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	cv.CreatedAt, cv.UpdatedAt = now, now
	cp := *cv
	m.cvs[cv.ID] = &cp
	return nil
}

func (m *memStore) ListCVs(ctx context.Context, userID string) ([]models.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.CV
	for _, cv := range m.cvs {
		if cv.UserID == userID {
			out = append(out, *cv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) GetCV(ctx context.Context, id, userID string) (*models.CV, error) {
	defer m.afterRead()
	m.mu.Lock()
	defer m.mu.Unlock()
	cv, ok := m.cvs[id]
	if !ok || cv.UserID != userID {
		return nil, nil
	}
	cp := *cv
	return &cp, nil
}

func (m *memStore) UpdateCV(ctx context.Context, id, userID string, apply func(*models.CV) error) (*models.CV, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cv, ok := m.cvs[id]
	if !ok || cv.UserID != userID {
		return nil, nil
	}
	cp := *cv
	cp.Changelog = slices.Clone(cp.Changelog)
	if err := apply(&cp); err != nil {
		return nil, err
	}
	cp.UpdatedAt = time.Now()
	stored := cp
	m.cvs[id] = &stored
	return &cp, nil
}

func (m *memStore) SetRenderedPDFURL(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cv, ok := m.cvs[id]; ok {
		cv.RenderedPDFURL = url
	}
	return nil
}

func (m *memStore) DeleteCV(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cv, ok := m.cvs[id]
	if !ok || cv.UserID != userID {
		return false, nil
	}
	delete(m.cvs, id)
	return true, nil
}

func (m *memStore) CreateInterviewSession(ctx context.Context, session *models.InterviewSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[session.ID] = &cp
	return nil
}

func (m *memStore) ListInterviewSessions(ctx context.Context, userID string) ([]models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InterviewSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *memStore) GetInterviewSession(ctx context.Context, sessionID, userID string) (*models.InterviewSession, error) {
	defer m.afterRead()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	cp.Answers = append(cp.Answers[:0:0], s.Answers...)
	return &cp, nil
}

func (m *memStore) UpdateInterviewSession(ctx context.Context, sessionID, userID string, apply func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	cp.Answers = slices.Clone(s.Answers)
	if err := apply(&cp); err != nil {
		return nil, err
	}
	stored := cp
	stored.Answers = slices.Clone(cp.Answers)
	m.sessions[sessionID] = &stored
	return &cp, nil
}

func (m *memStore) SaveInterviewFeedback(ctx context.Context, sessionID string, feedback models.Feedback, review []models.ReviewItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok && s.Status == models.SessionCompleted {
		s.AIFeedback = datatypes.NewJSONType(feedback)
		s.DetailedReview = append(datatypes.JSONSlice[models.ReviewItem]{}, review...)
	}
	return nil
}

func (m *memStore) AbandonStaleSessions(ctx context.Context, cutoff, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleCalls++
	var ids []string
	for id, s := range m.sessions {
		if s.Status == models.SessionInProgress && s.LastActivityAt.Before(cutoff) {
			duration := int(now.Sub(s.StartedAt).Seconds())
			s.Status = models.SessionAbandoned
			s.EndedAt = &now
			s.DurationSec = &duration
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) CreateTrainerResult(ctx context.Context, userID, moduleKey string, build func(previousAttempts int64) *models.TrainerResult) (*models.TrainerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var previous int64
	for _, r := range m.results {
		if r.UserID == userID && r.ModuleKey == moduleKey {
			previous++
		}
	}
	result := build(previous)
	result.CreatedAt = time.Now()
	m.results = append(m.results, *result)
	return result, nil
}

func (m *memStore) ListTrainerResults(ctx context.Context, userID string) ([]models.TrainerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TrainerResult
	for i := len(m.results) - 1; i >= 0; i-- {
		if m.results[i].UserID == userID {
			out = append(out, m.results[i])
		}
	}
	return out, nil
}

func (m *memStore) GetTrainerResult(ctx context.Context, id, userID string) (*models.TrainerResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == id && r.UserID == userID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CreateAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *event)
	return nil
}

func (m *memStore) ListAuditEvents(ctx context.Context, userID string, limit int) ([]models.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEvent
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].UserID != nil && *m.audit[i].UserID == userID {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

// auditTypes lists recorded event types in order.
func (m *memStore) auditTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.audit {
		out = append(out, e.Type)
	}
	return out
}

func (m *memStore) lastAudit(eventType string) *models.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.audit) - 1; i >= 0; i-- {
		if m.audit[i].Type == eventType {
			cp := m.audit[i]
			return &cp
		}
	}
	return nil
}

func (m *memStore) GetDeletionRequest(ctx context.Context, userID string) (*models.DeletionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deletions[userID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) CreateDeletionRequest(ctx context.Context, req *models.DeletionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deletions[req.UserID]; ok {
		return errors.New("duplicate deletion request")
	}
	cp := *req
	m.deletions[req.UserID] = &cp
	return nil
}

func (m *memStore) SaveDeletionRequest(ctx context.Context, req *models.DeletionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.deletions[req.UserID] = &cp
	return nil
}

var _ Store = (*memStore)(nil)
