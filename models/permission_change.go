package models

import (
	"strings"
	"time"
)

// PermissionAction names the kind of administrator change being recorded.
type PermissionAction string

const (
	PermissionActionGranted          PermissionAction = "permission_granted"
	PermissionActionRevoked          PermissionAction = "permission_revoked"
	PermissionActionAuthorityChanged PermissionAction = "authority_changed"
	PermissionActionGroupAdded       PermissionAction = "group_added"
	PermissionActionGroupRemoved     PermissionAction = "group_removed"
)

// IsValidPermissionAction checks if the provided action string is a valid PermissionAction.
func IsValidPermissionAction(actionStr string) (PermissionAction, bool) {
	pa := PermissionAction(strings.ToLower(strings.TrimSpace(actionStr)))
	switch pa {
	case PermissionActionGranted, PermissionActionRevoked, PermissionActionAuthorityChanged,
		PermissionActionGroupAdded, PermissionActionGroupRemoved:
		return pa, true
	default:
		return "", false
	}
}

// PermissionChange is one immutable entry in the administrator audit trail.
type PermissionChange struct {
	ID             string           `json:"id"`
	SubjectAdminID string           `json:"subject_admin_id"`
	ChangedBy      string           `json:"changed_by"`
	Action         PermissionAction `json:"action"`
	Details        string           `json:"details,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}
