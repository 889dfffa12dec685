package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/careerhub/backend/models"
	"github.com/careerhub/backend/questionbank"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, userPrompt)
	return f.reply, f.err
}

func seedUser(t *testing.T, store *memStore, email string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       uuid.New().String(),
		Email:    email,
		FullName: "Test User",
		Role:     models.RoleUser,
		IsActive: true,
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

// routerAs mounts routes behind a middleware that authenticates every request as user.
func routerAs(user *models.User, register func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if user != nil {
				r = r.WithContext(withUser(r.Context(), user))
			}
			next.ServeHTTP(w, r)
		})
	})
	register(r)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[map[string]string](t, rec)["error"]
}

func loadBank(t *testing.T) *questionbank.Bank {
	t.Helper()
	bank, err := questionbank.Load()
	require.NoError(t, err)
	return bank
}
