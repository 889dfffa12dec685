package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/careerhub/backend/llm"
	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/storage"
	ws "github.com/careerhub/backend/websocket"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

func testConfig() *Config {
	return &Config{
		Environment: "development",
		Debug:       true,
		Server:      ServerConfig{WebOrigin: testOrigin, CORSAllowedOrigins: testOrigin},
		JWT:         JWTConfig{Secret: testSecret},
		WebSocket:   WebSocketConfig{AllowedOrigins: testOrigin},
		RateLimit:   RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

func newTestServer(t *testing.T, store *memStore) *Server {
	t.Helper()
	files, err := storage.NewLocal(t.TempDir(), "/media/")
	require.NoError(t, err)
	server := NewServer(testConfig(), Dependencies{
		Store:     store,
		Assistant: llm.NewAssistant(nil),
		Bank:      loadBank(t),
		Files:     files,
	})
	require.NoError(t, server.InitializeServices())
	return server
}

func TestInitializeServicesRequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.Secret = ""
	server := NewServer(cfg, Dependencies{Store: newMemStore(), Bank: loadBank(t)})
	assert.Error(t, server.InitializeServices())
}

func TestHealth(t *testing.T) {
	store := newMemStore()
	server := newTestServer(t, store)
	server.now = func() time.Time { return time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC) }
	h := server.SetupRoutes()

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{
		"status":    "healthy",
		"timestamp": "2025-06-01T08:30:00Z",
		"database":  "connected",
	}, decodeBody[map[string]string](t, rec))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	store.pingErr = errors.New("connection refused")
	rec = doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "disconnected", body["database"])
}

func TestProtectedRoutesNeedCookies(t *testing.T) {
	h := newTestServer(t, newMemStore()).SetupRoutes()

	for _, path := range []string{"/api/v1/profile", "/api/v1/cvs", "/api/v1/interview/sessions", "/api/v1/account/audit", "/api/v1/ws"} {
		rec := doJSON(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := doJSON(t, h, http.MethodGet, "/api/v1/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, newMemStore()).SetupRoutes()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cvs", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// liveClient is an http client holding the auth cookies of a logged-in user.
type liveClient struct {
	t      *testing.T
	base   *url.URL
	client *http.Client
}

func newLiveClient(t *testing.T, srv *httptest.Server, email, password string) *liveClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c := &liveClient{t: t, base: base, client: &http.Client{Jar: jar}}

	resp := c.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: email, Password: password})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return c
}

func (c *liveClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, c.base.String()+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	return resp
}

func (c *liveClient) dial(sessionID string) (*websocket.Conn, *http.Response, error) {
	header := http.Header{}
	header.Set("Origin", testOrigin)
	var cookies []string
	for _, ck := range c.client.Jar.Cookies(c.base) {
		cookies = append(cookies, ck.Name+"="+ck.Value)
	}
	header.Set("Cookie", strings.Join(cookies, "; "))

	wsURL := "ws://" + c.base.Host + "/api/v1/ws?session_id=" + url.QueryEscape(sessionID)
	return websocket.DefaultDialer.Dial(wsURL, header)
}

func readReply(t *testing.T, conn *websocket.Conn) ws.Reply {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply ws.Reply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func TestLiveInterviewChannel(t *testing.T) {
	store := newMemStore()
	seedPasswordUser(t, store, "live@example.com", "password123")
	server := newTestServer(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.RunBackground(ctx)
	srv := httptest.NewServer(server.SetupRoutes())
	defer srv.Close()

	c := newLiveClient(t, srv, "live@example.com", "password123")
	resp := c.do(http.MethodPost, "/api/v1/interview/sessions", StartInterviewRequest{Topic: "frontend-basics"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session models.InterviewSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	resp.Body.Close()

	_, resp, err := c.dial("no-such-session")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := c.dial(session.ID)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeAnswer, QuestionID: "fe1", Text: "let and const are block scoped", TimeSpent: 42}))
	reply := readReply(t, conn)
	assert.Equal(t, ws.TypeAnswerSaved, reply.Type)
	assert.Equal(t, session.ID, reply.SessionID)
	assert.Equal(t, 1, reply.Answered)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeAnswer, QuestionID: "nope"}))
	reply = readReply(t, conn)
	assert.Equal(t, ws.TypeError, reply.Type)
	assert.Equal(t, "Unknown question_id", reply.Error)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.TypeHint, QuestionID: "fe2"}))
	reply = readReply(t, conn)
	assert.Equal(t, ws.TypeHint, reply.Type)
	assert.Equal(t, llm.FallbackHint, reply.Hint)

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "dance"}))
	assert.Equal(t, "unknown message type", readReply(t, conn).Error)
	assert.True(t, server.timeoutService.Tracked(session.ID))

	// the answer sent over the socket is visible to REST and completing notifies the socket
	resp = c.do(http.MethodPost, "/api/v1/interview/sessions/"+session.ID+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var done models.InterviewSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&done))
	resp.Body.Close()
	require.Len(t, done.Answers, 1)
	assert.Equal(t, 42, done.Answers[0].TimeSpent)

	reply = readReply(t, conn)
	assert.Equal(t, ws.TypeSessionCompleted, reply.Type)
	require.NotNil(t, reply.Score)
	assert.Equal(t, *done.Score, *reply.Score)
}

func TestLiveChannelRejectsForeignOrigin(t *testing.T) {
	store := newMemStore()
	seedPasswordUser(t, store, "origin@example.com", "password123")
	server := newTestServer(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.RunBackground(ctx)
	srv := httptest.NewServer(server.SetupRoutes())
	defer srv.Close()

	c := newLiveClient(t, srv, "origin@example.com", "password123")
	resp := c.do(http.MethodPost, "/api/v1/interview/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session models.InterviewSession
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	resp.Body.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	for _, ck := range c.client.Jar.Cookies(c.base) {
		header.Add("Cookie", ck.Name+"="+ck.Value)
	}
	_, resp, err := websocket.DefaultDialer.Dial("ws://"+c.base.Host+"/api/v1/ws?session_id="+session.ID, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTimeoutSweepAbandonsStaleSessions(t *testing.T) {
	store := newMemStore()
	user := seedUser(t, store, "stale@example.com")
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	stale := models.NewInterviewSession(user.ID, "algorithms", nil, now.Add(-3*time.Hour))
	stale.ID = "stale"
	fresh := models.NewInterviewSession(user.ID, "algorithms", nil, now.Add(-10*time.Minute))
	fresh.ID = "fresh"
	require.NoError(t, store.CreateInterviewSession(context.Background(), stale))
	require.NoError(t, store.CreateInterviewSession(context.Background(), fresh))

	svc := NewSessionTimeoutService(store, nil, 2*time.Hour)
	svc.now = func() time.Time { return now }
	svc.RegisterSession("stale", user.ID)
	svc.RegisterSession("fresh", user.ID)

	svc.checkTimeouts(context.Background())

	assert.Equal(t, 1, store.staleCalls)
	assert.Equal(t, models.SessionAbandoned, store.sessions["stale"].Status)
	require.NotNil(t, store.sessions["stale"].DurationSec)
	assert.Equal(t, int((3 * time.Hour).Seconds()), *store.sessions["stale"].DurationSec)
	assert.Equal(t, models.SessionInProgress, store.sessions["fresh"].Status)
	assert.False(t, svc.Tracked("stale"))
	assert.True(t, svc.Tracked("fresh"))
}

func TestTimeoutSweepSparesSessionsAnsweredOverREST(t *testing.T) {
	store := newMemStore()
	user := seedUser(t, store, "busy@example.com")
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	// Both sockets connected three hours ago, but busy kept answering through the API.
	busy := models.NewInterviewSession(user.ID, "algorithms", nil, now.Add(-3*time.Hour))
	busy.ID = "busy"
	busy.LastActivityAt = now.Add(-5 * time.Minute)
	stale := models.NewInterviewSession(user.ID, "algorithms", nil, now.Add(-3*time.Hour))
	stale.ID = "stale"
	require.NoError(t, store.CreateInterviewSession(context.Background(), busy))
	require.NoError(t, store.CreateInterviewSession(context.Background(), stale))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := ws.NewHub()
	go hub.Run(ctx)
	busyClient := hub.RegisterClient(nil, user.ID, "busy")
	staleClient := hub.RegisterClient(nil, user.ID, "stale")
	require.Eventually(t, func() bool {
		return hub.ClientCount("busy") == 1 && hub.ClientCount("stale") == 1
	}, time.Second, 10*time.Millisecond)

	svc := NewSessionTimeoutService(store, hub, 2*time.Hour)
	svc.now = func() time.Time { return now.Add(-3 * time.Hour) }
	svc.RegisterSession("busy", user.ID)
	svc.RegisterSession("stale", user.ID)
	svc.now = func() time.Time { return now }

	svc.checkTimeouts(context.Background())

	select {
	case payload := <-staleClient.Send:
		var reply ws.Reply
		require.NoError(t, json.Unmarshal(payload, &reply))
		assert.Equal(t, ws.TypeSessionAbandoned, reply.Type)
		assert.Equal(t, "stale", reply.SessionID)
	case <-time.After(time.Second):
		t.Fatal("stale session was not told it was abandoned")
	}
	// Notifications go out in id order, so anything for busy would already be queued.
	assert.Empty(t, busyClient.Send)

	assert.Equal(t, models.SessionInProgress, store.sessions["busy"].Status)
	assert.Equal(t, models.SessionAbandoned, store.sessions["stale"].Status)
	assert.True(t, svc.Tracked("busy"))
	assert.False(t, svc.Tracked("stale"))
}

func TestMediaIsServedOnlyToItsOwner(t *testing.T) {
	store := newMemStore()
	owner := seedPasswordUser(t, store, "owner@example.com", "password123")
	seedPasswordUser(t, store, "other@example.com", "password123")
	server := newTestServer(t, store)
	srv := httptest.NewServer(server.SetupRoutes())
	defer srv.Close()

	files := server.deps.Files.(*storage.Local)
	key := "uploads/" + owner.ID + "/resume.pdf"
	_, err := files.Save(context.Background(), key, []byte("%PDF-1.4 owner"), "application/pdf")
	require.NoError(t, err)

	ownerClient := newLiveClient(t, srv, "owner@example.com", "password123")
	resp := ownerClient.do(http.MethodGet, "/media/"+key, nil)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "%PDF-1.4 owner", string(body))
	assert.Equal(t, "private, no-store", resp.Header.Get("Cache-Control"))

	for _, path := range []string{"/media/", "/media/uploads/", "/media/uploads/" + owner.ID + "/", "/media/uploads/" + owner.ID + "/missing.pdf"} {
		resp := ownerClient.do(http.MethodGet, path, nil)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	otherClient := newLiveClient(t, srv, "other@example.com", "password123")
	resp = otherClient.do(http.MethodGet, "/media/"+key, nil)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(body), "%PDF")

	resp, err = http.Get(srv.URL + "/media/" + key)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
