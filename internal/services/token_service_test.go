package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret")
	userID, workspaceID, deviceID := uuid.New(), uuid.New(), uuid.New()

	token, err := svc.Issue(userID, workspaceID, deviceID, time.Hour)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, workspaceID, claims.WorkspaceID)
	assert.Equal(t, deviceID, claims.DeviceID)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").Issue(uuid.New(), uuid.New(), uuid.New(), time.Hour)
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenExpired(t *testing.T) {
	svc := NewTokenService("test-secret")
	token, err := svc.Issue(uuid.New(), uuid.New(), uuid.New(), -time.Minute)
	require.NoError(t, err)

	_, err = svc.VerifyToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenGarbage(t *testing.T) {
	_, err := NewTokenService("test-secret").VerifyToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
