// Package handlers exposes the sync engine over HTTP.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fieldledger/fieldledger/internal/models"
	"github.com/fieldledger/fieldledger/internal/repositories"
	"github.com/fieldledger/fieldledger/internal/services"
)

type Pusher interface {
	Push(ctx context.Context, workspaceID, deviceID uuid.UUID, changes []models.ChangeEvent) (*models.PushResponse, error)
}

type Puller interface {
	Pull(ctx context.Context, workspaceID uuid.UUID, since *time.Time) (*models.PullResponse, error)
}

type TokenVerifier interface {
	VerifyToken(tokenString string) (*services.TokenClaims, error)
}

type Deps struct {
	Pusher     Pusher
	Puller     Puller
	Tokens     TokenVerifier
	Workspaces repositories.WorkspaceRepository
	Devices    repositories.DeviceRepository
	Presence   repositories.PresenceRepository
	Logger     *logrus.Logger
}

func NewRouter(deps Deps) chi.Router {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	router.Route("/v1", func(r chi.Router) {
		r.Use(deps.authMiddleware)
		r.Post("/sync/push", deps.handlePush)
		r.Get("/sync/pull", deps.handlePull)
		r.Post("/devices", deps.handleEnrollDevice)
		r.Get("/devices", deps.handleListDevices)
		r.Post("/devices/{deviceID}/revoke", deps.handleRevokeDevice)
	})

	return router
}

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware verifies the bearer token and checks the caller is a member
// of the workspace it names. Identity issuance is external; this only gates.
func (d *Deps) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := d.Tokens.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if _, err := d.Workspaces.GetMembership(r.Context(), claims.WorkspaceID, claims.UserID); err != nil {
			if err == repositories.ErrNotFound {
				writeError(w, http.StatusForbidden, "not a workspace member")
				return
			}
			d.Logger.WithError(err).Error("membership lookup failed")
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(r *http.Request) *services.TokenClaims {
	claims, _ := r.Context().Value(claimsKey).(*services.TokenClaims)
	return claims
}
