package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the access level a user holds on an event.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// RoleNone marks the absence of any grant. It is never persisted.
const RoleNone Role = ""

// Valid reports whether the role is one of the grantable values.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleViewer
}

// CanRead reports whether the role may read the event, its versions,
// changelog and diffs.
func (r Role) CanRead() bool {
	return r == RoleOwner || r == RoleEditor || r == RoleViewer
}

// CanWrite reports whether the role may update or roll back the event.
func (r Role) CanWrite() bool {
	return r == RoleOwner || r == RoleEditor
}

// CanShare reports whether the role may share or delete the event.
func (r Role) CanShare() bool {
	return r == RoleOwner
}

// Permission is a role grant on an event, keyed by (event, user).
type Permission struct {
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PermissionRequest is a single entry in a share call
type PermissionRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   Role      `json:"role" validate:"required,oneof=owner editor viewer"`
}

// ShareRequest batches grants applied all-or-nothing
type ShareRequest struct {
	Permissions []PermissionRequest `json:"permissions" validate:"required,min=1,dive"`
}

// EventWithPermissions is the single-event response payload.
type EventWithPermissions struct {
	Event
	Permissions []Permission `json:"permissions"`
}
