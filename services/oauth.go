package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const oauthSessionName = "oauth_state"

// GoogleUser is the subset of the userinfo response an account is built from.
type GoogleUser struct {
	Sub     string
	Email   string
	Name    string
	Picture string
}

// GoogleOAuth runs the authorization code flow. The state value round-trips through a
// signed cookie session.
type GoogleOAuth struct {
	config   *oauth2.Config
	sessions sessions.Store

	// replaced in tests
	exchange  func(ctx context.Context, code string) (*oauth2.Token, error)
	fetchUser func(ctx context.Context, token *oauth2.Token) (*GoogleUser, error)
}

func NewGoogleOAuth(cfg OAuthConfig, secure bool) (*GoogleOAuth, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required for the OAuth state cookie")
	}

	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	g := &GoogleOAuth{
		config: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		sessions: store,
	}
	g.exchange = func(ctx context.Context, code string) (*oauth2.Token, error) {
		return g.config.Exchange(ctx, code)
	}
	g.fetchUser = g.userInfo
	return g, nil
}

// Begin stores a fresh state in the session cookie and returns the consent URL.
func (g *GoogleOAuth) Begin(w http.ResponseWriter, r *http.Request) (string, error) {
	state, err := generateSecureToken()
	if err != nil {
		return "", err
	}
	sess, _ := g.sessions.Get(r, oauthSessionName)
	sess.Values["state"] = state
	if err := sess.Save(r, w); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

var ErrInvalidState = errors.New("oauth state mismatch")

// Complete checks the state, exchanges the code and fetches the Google profile.
func (g *GoogleOAuth) Complete(w http.ResponseWriter, r *http.Request) (*GoogleUser, error) {
	sess, _ := g.sessions.Get(r, oauthSessionName)
	expected, _ := sess.Values["state"].(string)
	state := r.URL.Query().Get("state")
	if expected == "" || state != expected {
		return nil, ErrInvalidState
	}
	// one use only
	delete(sess.Values, "state")
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		slog.Warn("Failed to clear oauth state", "error", err)
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	token, err := g.exchange(r.Context(), code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	user, err := g.fetchUser(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	if user.Sub == "" || user.Email == "" {
		return nil, errors.New("userinfo is missing subject or email")
	}
	return user, nil
}

func (g *GoogleOAuth) userInfo(ctx context.Context, token *oauth2.Token) (*GoogleUser, error) {
	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(g.config.TokenSource(ctx, token)))
	if err != nil {
		return nil, err
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &GoogleUser{Sub: info.Id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}
