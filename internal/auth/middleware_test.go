package auth

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) (*Middleware, *PasetoService) {
	t.Helper()

	tokenService, err := NewPasetoService(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	return NewMiddleware(tokenService), tokenService
}

func TestRequireAuth_PutsIdentityIntoContext(t *testing.T) {
	mw, tokenService := newTestMiddleware(t)

	userID := uuid.New()
	token, err := tokenService.CreateToken(userID, "mira@example.com", time.Hour)
	require.NoError(t, err)

	var gotID uuid.UUID
	var gotEmail string
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserIDFromContext(r.Context())
		gotEmail, _ = GetUserEmailFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/profile/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotID)
	assert.Equal(t, "mira@example.com", gotEmail)
}

func TestRequireAuth_Rejections(t *testing.T) {
	mw, tokenService := newTestMiddleware(t)

	expired, err := tokenService.CreateToken(uuid.New(), "mira@example.com", -time.Minute)
	require.NoError(t, err)

	otherService, err := NewPasetoService(bytes.Repeat([]byte("x"), 32))
	require.NoError(t, err)
	foreign, err := otherService.CreateToken(uuid.New(), "mira@example.com", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-token"},
		{"expired token", "Bearer " + expired},
		{"wrong key", "Bearer " + foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/profile/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}
