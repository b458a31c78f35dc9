package auth

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasetoService_KeyLength(t *testing.T) {
	_, err := NewPasetoService([]byte("too-short"))
	assert.Error(t, err)

	_, err = NewPasetoService(bytes.Repeat([]byte("k"), 32))
	assert.NoError(t, err)
}

func TestPasetoService_RoundTrip(t *testing.T) {
	svc, err := NewPasetoService(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	userID := uuid.New()
	token, err := svc.CreateToken(userID, "mira@example.com", time.Hour)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "mira@example.com", claims.Email)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestPasetoService_WrongKey(t *testing.T) {
	issuer, err := NewPasetoService(bytes.Repeat([]byte("a"), 32))
	require.NoError(t, err)
	verifier, err := NewPasetoService(bytes.Repeat([]byte("b"), 32))
	require.NoError(t, err)

	token, err := issuer.CreateToken(uuid.New(), "mira@example.com", time.Hour)
	require.NoError(t, err)

	_, err = verifier.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasetoService_ExpiredToken(t *testing.T) {
	svc, err := NewPasetoService(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	token, err := svc.CreateToken(uuid.New(), "mira@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasetoService_Garbage(t *testing.T) {
	svc, err := NewPasetoService(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	_, err = svc.VerifyToken("v4.local.not-a-real-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
