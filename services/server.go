package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/careerhub/backend/export"
	"github.com/careerhub/backend/llm"
	"github.com/careerhub/backend/questionbank"
	"github.com/careerhub/backend/storage"
	ws "github.com/careerhub/backend/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

// Pinger reports database reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators built in main. Assistant, Renderer and Counter may
// be nil; the matching features then degrade.
type Dependencies struct {
	Store     Store
	DBPinger  Pinger
	Assistant *llm.Assistant
	Bank      *questionbank.Bank
	Renderer  export.Renderer
	Files     storage.Storage
	Counter   Counter
}

// Server holds all server dependencies
type Server struct {
	config *Config
	deps   Dependencies

	authService        *AuthService
	interviews         *InterviewService
	timeoutService     *SessionTimeoutService
	websocketHandler   *WebSocketHandler
	limiter            *RateLimiter
	authEndpoints      *AuthEndpoints
	profileEndpoints   *ProfileEndpoints
	cvEndpoints        *CVEndpoints
	interviewEndpoints *InterviewEndpoints
	trainerEndpoints   *TrainerEndpoints
	accountEndpoints   *AccountEndpoints
	aiEndpoints        *AIEndpoints
	fileEndpoints      *FileEndpoints
	wsHub              *ws.Hub
	upgrader           websocket.Upgrader
	now                func() time.Time
}

func NewServer(config *Config, deps Dependencies) *Server {
	if deps.DBPinger == nil {
		deps.DBPinger = deps.Store
	}
	if deps.Counter == nil {
		deps.Counter = NewMemoryCounter()
	}
	return &Server{
		config: config,
		deps:   deps,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, config.WebSocket.AllowedOrigins)
			},
		},
		now: time.Now,
	}
}

// InitializeServices wires handlers to the dependencies. It fails when the JWT secret is
// missing since nothing but /health works without it.
func (s *Server) InitializeServices() error {
	if s.config.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if s.deps.Store == nil || s.deps.Bank == nil || s.deps.Files == nil {
		return errors.New("store, question bank and storage are required")
	}
	store := s.deps.Store

	s.authService = NewAuthService(store, s.config.JWT.Secret, s.config.Production())

	var oauth *GoogleOAuth
	if s.config.OAuth.GoogleClientID != "" {
		var err error
		if oauth, err = NewGoogleOAuth(s.config.OAuth, s.config.Production()); err != nil {
			return err
		}
		slog.Info("Google sign-in enabled")
	} else {
		slog.Warn("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}

	if !s.deps.Assistant.Enabled() {
		slog.Warn("No AI provider configured, using canned feedback and hints")
	}
	if s.deps.Renderer == nil {
		slog.Warn("PDF renderer not configured, PDF export disabled")
	}

	s.wsHub = ws.NewHub()
	s.interviews = NewInterviewService(store, store, s.deps.Bank, s.deps.Assistant)
	s.interviews.SetHub(s.wsHub)
	s.timeoutService = NewSessionTimeoutService(store, s.wsHub, s.config.Interview.StaleAfter)
	s.websocketHandler = NewWebSocketHandler(s.interviews)
	s.limiter = NewRateLimiter(s.deps.Counter, s.config.RateLimit.Requests, s.config.RateLimit.Window)

	s.authEndpoints = NewAuthEndpoints(s.authService, oauth, store, s.config.Server.WebOrigin)
	s.profileEndpoints = NewProfileEndpoints(store)
	s.cvEndpoints = NewCVEndpoints(store, s.deps.Renderer, s.deps.Files, s.deps.Assistant)
	s.interviewEndpoints = NewInterviewEndpoints(s.interviews, store, s.deps.Bank)
	s.trainerEndpoints = NewTrainerEndpoints(store, store, s.deps.Bank)
	s.accountEndpoints = NewAccountEndpoints(store, s.authService)
	s.aiEndpoints = NewAIEndpoints(s.deps.Assistant)
	s.fileEndpoints = NewFileEndpoints(s.deps.Files, store)

	slog.Info("Services initialized")
	return nil
}

// RunBackground starts the hub and the stale session sweeper. They stop with ctx.
func (s *Server) RunBackground(ctx context.Context) {
	go s.wsHub.Run(ctx)
	go s.timeoutService.Run(ctx)
	if mc, ok := s.deps.Counter.(*MemoryCounter); ok {
		go func() {
			ticker := time.NewTicker(s.limiter.window)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mc.Prune()
				}
			}
		}()
	}
}

// securityHeaders sets the browser hardening headers. CSP and HSTS are left off in debug
// so local tooling keeps working.
func securityHeaders(debug bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "1; mode=block")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if !debug {
				h.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: https:; style-src 'self' 'unsafe-inline'; script-src 'self'; connect-src 'self' wss:")
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func splitOrigins(csv string) []string {
	var out []string
	for _, o := range strings.Split(csv, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(s.config.Debug))

	r.Get("/health", s.healthHandler)

	if local, ok := s.deps.Files.(*storage.Local); ok {
		r.With(s.authService.Middleware).Get(local.BaseURL+"*", serveMedia(local))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authService.OptionalMiddleware)
		r.Use(s.limiter.Middleware)

		r.Get("/", s.apiV1Handler)
		s.authEndpoints.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Get("/ws", s.websocketHandlerFunc)
			s.profileEndpoints.RegisterRoutes(r)
			s.cvEndpoints.RegisterRoutes(r)
			s.interviewEndpoints.RegisterRoutes(r)
			s.trainerEndpoints.RegisterRoutes(r)
			s.accountEndpoints.RegisterRoutes(r)
			s.aiEndpoints.RegisterRoutes(r)
			s.fileEndpoints.RegisterRoutes(r)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   splitOrigins(s.config.Server.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           600,
	})
	return c.Handler(r)
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	s.RunBackground(ctx)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

// CheckOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func CheckOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range splitOrigins(allowedOriginsStr) {
		if allowed == origin {
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "connected"

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if s.deps.DBPinger == nil {
		dbStatus = "not configured"
		status = "degraded"
	} else if err := s.deps.DBPinger.Ping(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		dbStatus = "disconnected"
		status = "unhealthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"database":  dbStatus,
	})
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API v1", "version": "1.0.0"})
}

// websocketHandlerFunc attaches the caller to the live channel of one of their
// in-progress interviews.
func (s *Server) websocketHandlerFunc(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	session, err := s.deps.Store.GetInterviewSession(r.Context(), sessionID, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	if session == nil || !session.Active() {
		writeError(w, http.StatusNotFound, "Active session not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	slog.Info("WebSocket connection established", "user_id", user.ID, "session_id", sessionID)

	client := s.wsHub.RegisterClient(conn, user.ID, sessionID)
	client.MessageHandler = s.websocketHandler.HandleWebSocketMessage
	s.timeoutService.RegisterSession(sessionID, user.ID)

	go client.WritePump()
	go func() {
		client.ReadPump()
		if s.wsHub.ClientCount(sessionID) == 0 {
			s.timeoutService.EndSession(sessionID)
		}
	}()
}
