package models

import (
	"time"

	"github.com/google/uuid"
)

// Presence records when a device in a workspace last completed a sync pass.
type Presence struct {
	WorkspaceID uuid.UUID `json:"workspace_id"`
	DeviceID    uuid.UUID `json:"device_id"`
	Status      string    `json:"status"`
	LastSeen    time.Time `json:"last_seen"`
}

type PresenceStatus string

const (
	StatusSyncing PresenceStatus = "syncing"
	StatusIdle    PresenceStatus = "idle"
	StatusOffline PresenceStatus = "offline"
)
