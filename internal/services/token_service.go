package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService verifies bearer tokens carrying the sync session: user,
// workspace and device ids. Identity and token issuance live outside this
// system; the engine only checks the signature and extracts the ids.
type TokenService struct {
	secret string
}

type TokenClaims struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	DeviceID    uuid.UUID
}

func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: secret}
}

// Issue signs a token for the given session. Used by the device demo binary
// and tests; production tokens come from the external identity provider
// sharing the same secret.
func (s *TokenService) Issue(userID, workspaceID, deviceID uuid.UUID, expiry time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":          userID.String(),
		"workspace_id": workspaceID.String(),
		"device_id":    deviceID.String(),
		"exp":          time.Now().Add(expiry).Unix(),
		"iat":          time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

func (s *TokenService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	userID, err := claimUUID(claims, "sub")
	if err != nil {
		return nil, err
	}
	workspaceID, err := claimUUID(claims, "workspace_id")
	if err != nil {
		return nil, err
	}
	deviceID, err := claimUUID(claims, "device_id")
	if err != nil {
		return nil, err
	}

	return &TokenClaims{
		UserID:      userID,
		WorkspaceID: workspaceID,
		DeviceID:    deviceID,
	}, nil
}

func claimUUID(claims jwt.MapClaims, key string) (uuid.UUID, error) {
	value, ok := claims[key].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
