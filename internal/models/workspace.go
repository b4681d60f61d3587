package models

import (
	"time"

	"github.com/google/uuid"
)

// Workspace is the tenant boundary: every entity and log record belongs to
// exactly one.
type Workspace struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type MembershipRole string

const (
	RoleOwner  MembershipRole = "owner"
	RoleMember MembershipRole = "member"
)

type Membership struct {
	WorkspaceID uuid.UUID      `json:"workspace_id"`
	UserID      uuid.UUID      `json:"user_id"`
	Role        MembershipRole `json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
}
