package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/careerhub/backend/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AuthEndpoints struct {
	authService *AuthService
	oauth       *GoogleOAuth
	users       UserStore
	profiles    ProfileStore
	audit       AuditStore
	webOrigin   string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthEndpoints(authService *AuthService, oauth *GoogleOAuth, store Store, webOrigin string) *AuthEndpoints {
	return &AuthEndpoints{
		authService: authService,
		oauth:       oauth,
		users:       store,
		profiles:    store,
		audit:       store,
		webOrigin:   strings.TrimSuffix(webOrigin, "/"),
	}
}

// RegisterRoutes mounts the public auth routes. /me and /logout need the auth middleware.
func (e *AuthEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		if e.oauth != nil {
			r.Get("/google/start", e.GoogleStartHandler)
			r.Get("/google/callback", e.GoogleCallbackHandler)
		}
		r.Post("/login", e.LoginHandler)
		r.Post("/refresh", e.RefreshHandler)

		r.Group(func(r chi.Router) {
			r.Use(e.authService.Middleware)
			r.Get("/me", e.MeHandler)
			r.Post("/logout", e.LogoutHandler)
		})
	})
}

func (e *AuthEndpoints) GoogleStartHandler(w http.ResponseWriter, r *http.Request) {
	authURL, err := e.oauth.Begin(w, r)
	if err != nil {
		slog.Error("Failed to start google oauth", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start Google sign-in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": authURL})
}

func (e *AuthEndpoints) GoogleCallbackHandler(w http.ResponseWriter, r *http.Request) {
	guser, err := e.oauth.Complete(w, r)
	if errors.Is(err, ErrInvalidState) {
		slog.Warn("Google callback with invalid state")
		http.Redirect(w, r, e.webOrigin+"/login?error=invalid_state", http.StatusFound)
		return
	}
	if err != nil {
		slog.Error("Google callback failed", "error", err)
		http.Redirect(w, r, e.webOrigin+"/login?error=oauth_failed", http.StatusFound)
		return
	}

	user, err := e.upsertGoogleUser(r, guser)
	if err == nil && !user.IsActive {
		err = ErrInactiveUser
	}
	var resp *AuthResponse
	if err == nil {
		resp, err = e.authService.StartSession(r.Context(), user)
	}
	if err != nil {
		slog.Error("Google sign-in failed", "error", err, "email", guser.Email)
		http.Redirect(w, r, e.webOrigin+"/login?error=oauth_failed", http.StatusFound)
		return
	}

	recordAudit(r.Context(), e.audit, user.ID, models.AuditLogin, map[string]any{"method": "google_oauth"})
	e.authService.SetAuthCookies(w, resp.AccessToken, resp.RefreshToken)
	http.Redirect(w, r, e.webOrigin+"/", http.StatusFound)
}

// upsertGoogleUser finds the account by Google subject, then by email, creating it when
// neither exists. Email, name and avatar are refreshed from Google on every login.
func (e *AuthEndpoints) upsertGoogleUser(r *http.Request, g *GoogleUser) (*models.User, error) {
	ctx := r.Context()
	user, err := e.users.GetUserByGoogleSub(ctx, g.Sub)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if user, err = e.users.GetUserByEmail(ctx, g.Email); err != nil {
			return nil, err
		}
	}

	if user == nil {
		sub := g.Sub
		user = &models.User{
			ID:        uuid.New().String(),
			Email:     g.Email,
			FullName:  g.Name,
			AvatarURL: g.Picture,
			GoogleSub: &sub,
			Locale:    "en",
			Role:      models.RoleUser,
			IsActive:  true,
		}
		if err := e.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
	} else {
		sub := g.Sub
		user.GoogleSub = &sub
		user.Email = g.Email
		if g.Name != "" {
			user.FullName = g.Name
		}
		if g.Picture != "" {
			user.AvatarURL = g.Picture
		}
		if err := e.users.UpdateUser(ctx, user); err != nil {
			return nil, err
		}
	}

	if _, err := e.profiles.GetOrCreateProfile(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (e *AuthEndpoints) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	authResponse, err := e.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Error("Login failed", "error", err, "email", req.Email)
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	e.authService.SetAuthCookies(w, authResponse.AccessToken, authResponse.RefreshToken)
	recordAudit(r.Context(), e.audit, authResponse.User.ID, models.AuditLogin, map[string]any{"method": "password"})

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    authResponse.User,
		"message": "Login successful",
	})
}

func (e *AuthEndpoints) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	refreshToken := GetTokenFromCookie(r, refreshCookieName)
	if refreshToken == "" {
		writeError(w, http.StatusUnauthorized, "No refresh token provided")
		return
	}

	authResponse, err := e.authService.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		slog.Error("Token refresh failed", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	e.authService.SetAuthCookies(w, authResponse.AccessToken, "")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Token refreshed successfully"})
}

func (e *AuthEndpoints) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	recordAudit(r.Context(), e.audit, user.ID, models.AuditLogout, nil)
	if err := e.authService.Logout(r.Context(), user.ID); err != nil {
		slog.Error("Logout failed", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	e.authService.ClearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (e *AuthEndpoints) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := e.profiles.GetOrCreateProfile(r.Context(), user.ID)
	if err != nil {
		slog.Error("Failed to load profile", "error", err, "user_id", user.ID)
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"profile": profile,
	})
}
