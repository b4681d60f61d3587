package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncEventRecord is one entry in the append-only server-side change log.
// It is the source of truth for incremental pulls and audit; canonical rows
// are derived from it.
type SyncEventRecord struct {
	ID          uuid.UUID  `json:"id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	DeviceID    uuid.UUID  `json:"device_id"`
	EntityKind  EntityKind `json:"entity_kind"`
	Operation   Operation  `json:"operation"`
	EntityID    string     `json:"entity_id"`
	RowData     []byte     `json:"row_data"`
	CreatedAt   time.Time  `json:"created_at"`
}