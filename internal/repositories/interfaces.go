package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldledger/fieldledger/internal/models"
)

var ErrNotFound = errors.New("not found")

// EntityRepository is the backend's upsert/query surface over the six
// canonical tables. Every operation is scoped by workspace.
type EntityRepository interface {
	Create(ctx context.Context, workspaceID uuid.UUID, row models.EntityRow) error
	Update(ctx context.Context, workspaceID uuid.UUID, row models.EntityRow) error
	SoftDelete(ctx context.Context, workspaceID uuid.UUID, kind models.EntityKind, id string, deletedAt time.Time) error
	ListActive(ctx context.Context, workspaceID uuid.UUID, kind models.EntityKind) ([]models.EntityRow, error)
}

// SyncLogRepository is the append-only durable change log, the source of
// truth for incremental pulls and audit.
type SyncLogRepository interface {
	AppendBatch(ctx context.Context, records []*models.SyncEventRecord) error
	ListSince(ctx context.Context, workspaceID uuid.UUID, since time.Time) ([]*models.SyncEventRecord, error)
}

type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *models.Workspace) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	AddMember(ctx context.Context, membership *models.Membership) error
	GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (*models.Membership, error)
	ListMembers(ctx context.Context, workspaceID uuid.UUID) ([]*models.Membership, error)
}

type DeviceRepository interface {
	Create(ctx context.Context, device *models.Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	ListByWorkspaceID(ctx context.Context, workspaceID uuid.UUID) ([]*models.Device, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

type PresenceRepository interface {
	SetPresence(ctx context.Context, presence *models.Presence) error
	GetPresence(ctx context.Context, deviceID uuid.UUID) (*models.Presence, error)
	GetBulkPresence(ctx context.Context, deviceIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}
